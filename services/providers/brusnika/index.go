package brusnika

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paycrest/e2e/services/providers"
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/crypto"
	"github.com/shopspring/decimal"
)

// Alias of the brusnika gateway
const Alias = "brusnika"

//go:embed create_request.json
var createRequestSchema []byte

// Status is a brusnika payment status
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// CreateRequest is what the platform sends to create a payment
type CreateRequest struct {
	OrderID       string          `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CallbackURL   string          `json:"callback_url"`
	PaymentMethod string          `json:"payment_method,omitempty"`
}

// Payment is the brusnika view of a payment
type Payment struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   Status `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Provider simulates one brusnika merchant account
type Provider struct {
	Secret    string
	GatewayID string

	opts    providers.Options
	mu      sync.Mutex
	request *CreateRequest
}

// New returns a simulator for the account identified by secret
func New(secret string, opts ...providers.Option) *Provider {
	return &Provider{
		Secret:    secret,
		GatewayID: uuid.New().String(),
		opts:      providers.ApplyOptions(opts...),
	}
}

// RequestData returns the stored create request
func (p *Provider) RequestData() (*CreateRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.request == nil {
		return nil, providers.ErrNoRequestData{Alias: Alias}
	}
	return p.request, nil
}

func (p *Provider) payment(request *CreateRequest, status Status) Payment {
	return Payment{
		ID:       p.GatewayID,
		OrderID:  request.OrderID,
		Status:   status,
		Amount:   request.Amount.StringFixed(2),
		Currency: request.Currency,
	}
}

// CreateResponse validates and stores a create request and builds the answer
func (p *Provider) CreateResponse(body []byte, status Status) (map[string]interface{}, error) {
	if err := utils.ValidateJSONSchema(createRequestSchema, body); err != nil {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: err}
	}

	var request CreateRequest
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: err}
	}

	p.mu.Lock()
	p.request = &request
	p.mu.Unlock()

	response := utils.StructToMap(p.payment(&request, status))
	response["payment_details"] = providers.RequisiteFor(request.OrderID)

	return response, nil
}

// CreateHandler answers the create call with the given status
func (p *Provider) CreateHandler(status Status) types.Handler {
	return func(c *gin.Context) error {
		body, err := c.GetRawData()
		if err != nil {
			return fmt.Errorf("CreateHandler: %w", err)
		}

		response, err := p.CreateResponse(body, status)
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, response)
		return nil
	}
}

// StatusResponse answers a status poll
func (p *Provider) StatusResponse(status Status) (map[string]interface{}, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, err
	}
	return utils.StructToMap(p.payment(request, status)), nil
}

// StatusHandler answers a status poll with the given status
func (p *Provider) StatusHandler(status Status) types.Handler {
	return func(c *gin.Context) error {
		response, err := p.StatusResponse(status)
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, response)
		return nil
	}
}

// Callback builds the webhook body and its headers.
// The signature is the hex HMAC-SHA256 of the exact body under the account secret.
func (p *Provider) Callback(status Status) ([]byte, map[string]string, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(p.payment(request, status))
	if err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	return body, map[string]string{
		"Content-Type": "application/json",
		"X-Signature":  crypto.HMACSHA256Hex([]byte(p.Secret), body),
	}, nil
}

// SendCallback delivers the webhook to the url from the create request
func (p *Provider) SendCallback(ctx context.Context, status Status) (*providers.Delivery, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, err
	}

	body, headers, err := p.Callback(status)
	if err != nil {
		return nil, err
	}

	target := request.CallbackURL
	if target == "" {
		target = p.opts.CallbackURL
	}

	return providers.Deliver(ctx, target, body, headers)
}

// Definition routes merchant settings to the brusnika mock
type Definition struct {
	// BaseURL is where the platform reaches the mock
	BaseURL string
}

func (Definition) Alias() string {
	return Alias
}

func (d Definition) Settings(secret string) map[string]interface{} {
	return map[string]interface{}{
		"class":    Alias,
		"base_url": d.BaseURL,
		"token":    secret,
	}
}

func (Definition) MockParams(secret string) types.MockProviderParams {
	return types.MockProviderParams{
		Alias: Alias,
		Filter: func(r *http.Request) bool {
			return r.Header.Get("Authorization") == "Bearer "+secret
		},
	}
}
