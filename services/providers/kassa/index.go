package kassa

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/paycrest/e2e/services/providers"
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils/crypto"
	"github.com/shopspring/decimal"
)

// Alias of the kassa gateway
const Alias = "kassa"

var validate = validator.New()

// Status is a kassa invoice status
type Status string

const (
	StatusCreated  Status = "created"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
)

// CreateRequest is the XML invoice request
type CreateRequest struct {
	XMLName     xml.Name `xml:"request"`
	Merchant    string   `xml:"merchant" validate:"required"`
	OrderID     string   `xml:"order_id" validate:"required"`
	Amount      string   `xml:"amount" validate:"required,numeric"`
	Currency    string   `xml:"currency" validate:"required,len=3"`
	CallbackURL string   `xml:"callback_url,omitempty" validate:"omitempty,url"`
}

// Invoice is the kassa answer to create and status calls
type Invoice struct {
	XMLName   xml.Name             `xml:"response"`
	InvoiceID string               `xml:"invoice_id"`
	OrderID   string               `xml:"order_id"`
	Status    Status               `xml:"status"`
	Amount    string               `xml:"amount"`
	Requisite *providers.Requisite `xml:"requisite,omitempty"`
}

// Notification is the XML webhook
type Notification struct {
	XMLName   xml.Name `xml:"notification"`
	InvoiceID string   `xml:"invoice_id"`
	OrderID   string   `xml:"order_id"`
	Amount    string   `xml:"amount"`
	Status    Status   `xml:"status"`
	Signature string   `xml:"signature"`
}

// Provider simulates one kassa merchant
type Provider struct {
	Secret    string
	GatewayID string

	opts    providers.Options
	mu      sync.Mutex
	request *CreateRequest
	amount  decimal.Decimal
}

// New returns a simulator for the merchant identified by secret
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

// CreateResponse validates and stores an invoice request
func (p *Provider) CreateResponse(body []byte, status Status) (*Invoice, error) {
	var request CreateRequest
	if err := xml.Unmarshal(body, &request); err != nil {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: err}
	}

	if err := validate.Struct(request); err != nil {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: err}
	}

	amount, err := decimal.NewFromString(request.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: fmt.Errorf("amount %q is not positive", request.Amount)}
	}

	p.mu.Lock()
	p.request = &request
	p.amount = amount
	p.mu.Unlock()

	requisite := providers.RequisiteFor(request.OrderID)
	return &Invoice{
		InvoiceID: p.GatewayID,
		OrderID:   request.OrderID,
		Status:    status,
		Amount:    amount.StringFixed(2),
		Requisite: &requisite,
	}, nil
}

// CreateHandler answers the invoice request with the given status
func (p *Provider) CreateHandler(status Status) types.Handler {
	return func(c *gin.Context) error {
		body, err := c.GetRawData()
		if err != nil {
			return fmt.Errorf("CreateHandler: %w", err)
		}

		invoice, err := p.CreateResponse(body, status)
		if err != nil {
			return err
		}

		c.XML(http.StatusOK, invoice)
		return nil
	}
}

// StatusResponse answers an invoice status poll
func (p *Provider) StatusResponse(status Status) (*Invoice, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, err
	}

	return &Invoice{
		InvoiceID: p.GatewayID,
		OrderID:   request.OrderID,
		Status:    status,
		Amount:    p.amount.StringFixed(2),
	}, nil
}

// StatusHandler answers a status poll with the given status
func (p *Provider) StatusHandler(status Status) types.Handler {
	return func(c *gin.Context) error {
		invoice, err := p.StatusResponse(status)
		if err != nil {
			return err
		}

		c.XML(http.StatusOK, invoice)
		return nil
	}
}

// Signature is the base64 HMAC-SHA256 over the sorted key=value pairs of the notification
func Signature(n Notification, secret string) string {
	return crypto.HMACSHA256Base64([]byte(secret), []byte(crypto.CanonicalQuery(map[string]string{
		"amount":     n.Amount,
		"invoice_id": n.InvoiceID,
		"order_id":   n.OrderID,
		"status":     string(n.Status),
	})))
}

// Callback builds the XML notification
func (p *Provider) Callback(status Status) ([]byte, map[string]string, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, nil, err
	}

	n := Notification{
		InvoiceID: p.GatewayID,
		OrderID:   request.OrderID,
		Amount:    p.amount.StringFixed(2),
		Status:    status,
	}
	n.Signature = Signature(n, p.Secret)

	var body bytes.Buffer
	body.WriteString(xml.Header)
	if err := xml.NewEncoder(&body).Encode(n); err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	return body.Bytes(), map[string]string{"Content-Type": "application/xml"}, nil
}

// SendCallback delivers the notification
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

// Definition routes merchant settings to the kassa mock
type Definition struct {
	BaseURL string
}

func (Definition) Alias() string {
	return Alias
}

func (d Definition) Settings(secret string) map[string]interface{} {
	return map[string]interface{}{
		"class":    Alias,
		"endpoint": d.BaseURL,
		"merchant": secret,
		"key":      secret,
	}
}

func (Definition) MockParams(secret string) types.MockProviderParams {
	return types.MockProviderParams{
		Alias: Alias,
		Filter: func(r *http.Request) bool {
			if r.Body == nil {
				return false
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				return false
			}

			var body struct {
				Merchant string `xml:"merchant"`
			}
			if err := xml.Unmarshal(raw, &body); err != nil {
				return false
			}
			return body.Merchant == secret
		},
	}
}
