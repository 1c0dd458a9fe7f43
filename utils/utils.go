package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
)

// TestPANs are the card numbers the platform's sandbox accepts. They must never be
// persisted or logged in clear by the platform.
var TestPANs = []string{"4242424242424242", "5555555555554444"}

// ErrBadStatus is returned when a remote answered with a server error
type ErrBadStatus struct {
	URL  string
	Code int
	Body string
}

func (e ErrBadStatus) Error() string {
	return fmt.Sprintf("bad status %d from %s: %s", e.Code, e.URL, e.Body)
}

// CheckStatus turns a >=500 answer into ErrBadStatus. 4xx answers are a valid
// error path of the remote and are returned to the caller as is.
func CheckStatus(url string, code int, body string) error {
	if code >= http.StatusInternalServerError {
		return ErrBadStatus{URL: url, Code: code, Body: body}
	}
	return nil
}

// Delay waits for d unless ctx is done first
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ToSubunit converts a major-unit amount to minor units with the given number of decimals
func ToSubunit(amount decimal.Decimal, decimals int32) int64 {
	return amount.Shift(decimals).Round(0).IntPart()
}

// FromSubunit converts a minor-unit amount back to major units
func FromSubunit(amount int64, decimals int32) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-decimals)
}

// StructToMap converts a struct to a map[string]interface{} following its json tags
func StructToMap(input interface{}) map[string]interface{} {
	result := make(map[string]interface{})

	b, err := json.Marshal(input)
	if err != nil {
		return result
	}
	_ = json.Unmarshal(b, &result)

	return result
}

// ReadResponseBody reads and closes a response body
func ReadResponseBody(res *http.Response) ([]byte, error) {
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}

// APIResponse is a helper function to return an API response
func APIResponse(ctx *gin.Context, code int, status string, message string, data interface{}) {
	ctx.JSON(code, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// ValidateJSONSchema validates document against the JSON schema in schema
func ValidateJSONSchema(schema []byte, document []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(schema)
	documentLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, e := range result.Errors() {
			errors = append(errors, e.String())
		}
		return fmt.Errorf("schema validation failed: %v", errors)
	}

	return nil
}

// CurlCommand reconstructs a request as a curl command line
func CurlCommand(r *http.Request, body []byte) string {
	var sb strings.Builder

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	sb.WriteString("curl -X ")
	sb.WriteString(r.Method)
	sb.WriteString(" '")
	sb.WriteString(fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI()))
	sb.WriteString("'")

	keys := make([]string, 0, len(r.Header))
	for key := range r.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, value := range r.Header[key] {
			sb.WriteString(fmt.Sprintf(" \\\n  -H '%s: %s'", key, shellEscape(value)))
		}
	}

	if len(body) > 0 {
		sb.WriteString(fmt.Sprintf(" \\\n  --data-raw '%s'", shellEscape(string(body))))
	}

	return sb.String()
}

func shellEscape(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}

// PrettyJSON indents a JSON document, returning the input unchanged when it is not JSON
func PrettyJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// FindPANs returns which of the given card numbers appear in text
func FindPANs(text string, pans ...string) []string {
	if len(pans) == 0 {
		pans = TestPANs
	}

	var found []string
	for _, pan := range pans {
		if strings.Contains(text, pan) {
			found = append(found, pan)
		}
	}
	return found
}

// MaskPAN masks a card number the way gateways display it: first six and last four digits
func MaskPAN(pan string) string {
	if len(pan) < 10 {
		return pan
	}
	return pan[:6] + strings.Repeat("*", len(pan)-10) + pan[len(pan)-4:]
}
