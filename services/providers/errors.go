package providers

import "fmt"

// Common error types for provider simulators
type (
	ErrNoRequestData  struct{ Alias string }
	ErrInvalidRequest struct {
		Alias string
		Err   error
	}
	ErrUnknownStatus struct {
		Alias  string
		Status string
	}
)

func (e ErrNoRequestData) Error() string {
	return fmt.Sprintf("%s: no request data, the create handler has not run yet", e.Alias)
}

func (e ErrInvalidRequest) Error() string {
	return fmt.Sprintf("%s: invalid create request: %v", e.Alias, e.Err)
}

func (e ErrInvalidRequest) Unwrap() error {
	return e.Err
}

func (e ErrUnknownStatus) Error() string {
	return fmt.Sprintf("%s: unknown status %q", e.Alias, e.Status)
}
