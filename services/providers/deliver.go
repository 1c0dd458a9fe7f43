package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/logger"
)

// DeliveryTimeout bounds one webhook POST
var DeliveryTimeout = 30 * time.Second

// Delivery is the platform's answer to a webhook
type Delivery struct {
	Code int
	Body string
}

// Options configure a provider simulator
type Options struct {
	// CallbackURL is used when the create request did not carry one
	CallbackURL string
}

// Option configures a provider simulator
type Option func(*Options)

// WithCallbackURL sets the fixed webhook endpoint of the platform
func WithCallbackURL(callbackURL string) Option {
	return func(o *Options) {
		o.CallbackURL = callbackURL
	}
}

// ApplyOptions folds opts into Options
func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Deliver POSTs a signed webhook body to targetURL.
// Network errors and >=500 answers are returned as errors; a 4xx answer is returned
// to the caller for inspection.
func Deliver(ctx context.Context, targetURL string, body []byte, headers map[string]string) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Deliver: %w", err)
	}

	target, err := url.Parse(targetURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("Deliver: invalid callback url %q", targetURL)
	}
	origin := fmt.Sprintf("%s://%s", target.Scheme, target.Host)

	res, err := fastshot.NewClient(origin).
		Config().SetTimeout(DeliveryTimeout).
		Header().AddAll(headers).
		Build().POST(target.Path).
		Query().SetRawString(target.RawQuery).
		Body().AsString(string(body)).
		Send()
	if err != nil {
		return nil, fmt.Errorf("Deliver: %w", err)
	}

	raw, err := utils.ReadResponseBody(res.RawResponse)
	if err != nil {
		return nil, fmt.Errorf("Deliver: %w", err)
	}
	responseBody := string(raw)
	code := res.StatusCode()

	logger.WithFields(logger.Fields{
		"URL":    targetURL,
		"Status": code,
	}).Infof("webhook delivered")

	if err := utils.CheckStatus(targetURL, code, responseBody); err != nil {
		return nil, err
	}

	return &Delivery{Code: code, Body: responseBody}, nil
}
