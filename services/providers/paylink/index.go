package paylink

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/paycrest/e2e/services/providers"
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils/crypto"
	"github.com/shopspring/decimal"
)

// Alias of the paylink gateway
const Alias = "paylink"

var validate = validator.New()

// Status is a paylink invoice status
type Status string

const (
	StatusWait   Status = "wait"
	StatusPaid   Status = "paid"
	StatusCancel Status = "cancel"
)

// CreateRequest is the form the platform posts to open an invoice
type CreateRequest struct {
	ShopID      string `validate:"required"`
	OrderID     string `validate:"required"`
	Amount      string `validate:"required,numeric"`
	Currency    string `validate:"required,len=3,uppercase"`
	Description string
	SuccessURL  string `validate:"omitempty,url"`
}

// Provider simulates one paylink shop
type Provider struct {
	Secret    string
	GatewayID string

	opts    providers.Options
	mu      sync.Mutex
	request *CreateRequest
	amount  decimal.Decimal
}

// New returns a simulator for the shop identified by secret
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

func parseRequest(form url.Values) (*CreateRequest, error) {
	request := &CreateRequest{
		ShopID:      form.Get("shop_id"),
		OrderID:     form.Get("order_id"),
		Amount:      form.Get("amount"),
		Currency:    form.Get("currency"),
		Description: form.Get("description"),
		SuccessURL:  form.Get("success_url"),
	}

	if err := validate.Struct(request); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok {
			var fields []string
			for _, e := range fieldErrors {
				fields = append(fields, fmt.Sprintf("%s failed on %s", e.Field(), e.Tag()))
			}
			return nil, fmt.Errorf("%s", strings.Join(fields, ", "))
		}
		return nil, err
	}

	return request, nil
}

// CreateResponse validates and stores a create form and builds the answer
func (p *Provider) CreateResponse(body []byte, status Status) (map[string]interface{}, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: err}
	}

	request, err := parseRequest(form)
	if err != nil {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: err}
	}

	amount, err := decimal.NewFromString(request.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, providers.ErrInvalidRequest{Alias: Alias, Err: fmt.Errorf("amount %q is not positive", request.Amount)}
	}

	p.mu.Lock()
	p.request = request
	p.amount = amount
	p.mu.Unlock()

	requisite := providers.RequisiteFor(request.OrderID)

	return map[string]interface{}{
		"result":     "ok",
		"payment_id": p.GatewayID,
		"order_id":   request.OrderID,
		"status":     status,
		"amount":     amount.StringFixed(2),
		"requisites": map[string]interface{}{
			"card_number": requisite.Card,
			"sbp_phone":   requisite.Phone,
			"bank_name":   requisite.Bank,
			"card_holder": requisite.Holder,
		},
	}, nil
}

// CreateHandler answers the invoice form with the given status
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

// StatusResponse answers an invoice status poll
func (p *Provider) StatusResponse(status Status) (map[string]interface{}, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"result":     "ok",
		"payment_id": p.GatewayID,
		"order_id":   request.OrderID,
		"status":     status,
		"amount":     p.amount.StringFixed(2),
	}, nil
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

// Sign is the paylink digest: md5 of order_id:amount:status:secret
func Sign(orderID, amount string, status Status, secret string) string {
	return crypto.MD5Hex(strings.Join([]string{orderID, amount, string(status), secret}, ":"))
}

// Callback builds the form-encoded notification and its headers
func (p *Provider) Callback(status Status) ([]byte, map[string]string, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, nil, err
	}

	amount := p.amount.StringFixed(2)
	form := url.Values{}
	form.Set("payment_id", p.GatewayID)
	form.Set("order_id", request.OrderID)
	form.Set("amount", amount)
	form.Set("status", string(status))
	form.Set("sign", Sign(request.OrderID, amount, status, p.Secret))

	return []byte(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	}, nil
}

// SendCallback delivers the notification to the platform's fixed paylink endpoint
func (p *Provider) SendCallback(ctx context.Context, status Status) (*providers.Delivery, error) {
	body, headers, err := p.Callback(status)
	if err != nil {
		return nil, err
	}

	if p.opts.CallbackURL == "" {
		return nil, fmt.Errorf("SendCallback: %s has no callback url configured", Alias)
	}

	return providers.Deliver(ctx, p.opts.CallbackURL, body, headers)
}

// Definition routes merchant settings to the paylink mock
type Definition struct {
	BaseURL string
}

func (Definition) Alias() string {
	return Alias
}

func (d Definition) Settings(secret string) map[string]interface{} {
	return map[string]interface{}{
		"class":   Alias,
		"api_url": d.BaseURL,
		"shop_id": secret,
		"secret":  secret,
	}
}

func (Definition) MockParams(secret string) types.MockProviderParams {
	return types.MockProviderParams{
		Alias: Alias,
		Filter: func(r *http.Request) bool {
			if err := r.ParseForm(); err != nil {
				return false
			}
			return r.PostForm.Get("shop_id") == secret || r.URL.Query().Get("shop_id") == secret
		},
	}
}
