package aurapay

import (
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
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

// Alias of the aurapay gateway
const Alias = "aurapay"

//go:embed create_request.json
var createRequestSchema []byte

// Status is an aurapay order status
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

// CreateRequest opens a pay-in or payout order
type CreateRequest struct {
	MerchantKey string          `json:"merchant_key"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        string          `json:"type,omitempty"`
	CallbackURL string          `json:"callback_url,omitempty"`
}

// Order is the decrypted callback data
type Order struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   Status `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Notification is the callback envelope
type Notification struct {
	MerchantKey string `json:"merchant_key"`
	Data        string `json:"data"`
	Sign        string `json:"sign"`
}

// Provider simulates one aurapay merchant
type Provider struct {
	Secret    string
	GatewayID string

	opts    providers.Options
	mu      sync.Mutex
	request *CreateRequest
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

func (p *Provider) order(request *CreateRequest, status Status) Order {
	return Order{
		ID:       p.GatewayID,
		OrderID:  request.OrderID,
		Status:   status,
		Amount:   request.Amount.StringFixed(2),
		Currency: request.Currency,
	}
}

// CreateResponse validates and stores an order. Pay-ins carry requisites, payouts do not.
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

	response := map[string]interface{}{
		"code":  0,
		"order": p.order(&request, status),
	}
	if request.Type != "PAYOUT" {
		response["requisites"] = providers.RequisiteFor(request.OrderID)
	}

	return response, nil
}

// CreateHandler answers the order with the given status
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

// StatusResponse answers an order status poll
func (p *Provider) StatusResponse(status Status) (map[string]interface{}, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"code":  0,
		"order": p.order(request, status),
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

// EncryptionKey is the AES-128 key: the first 16 bytes of the secret, zero padded
func EncryptionKey(secret string) []byte {
	key := make([]byte, 16)
	copy(key, secret)
	return key
}

// Sign is the hex sha256 of the encrypted data followed by the secret
func Sign(data, secret string) string {
	return crypto.SHA256Hex([]byte(data + secret))
}

// Callback builds the encrypted notification
func (p *Provider) Callback(status Status) ([]byte, map[string]string, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, nil, err
	}

	plaintext, err := json.Marshal(p.order(request, status))
	if err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	ciphertext, err := crypto.EncryptAESECB(plaintext, EncryptionKey(p.Secret))
	if err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	data := base64.StdEncoding.EncodeToString(ciphertext)
	body, err := json.Marshal(Notification{
		MerchantKey: p.Secret,
		Data:        data,
		Sign:        Sign(data, p.Secret),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	return body, map[string]string{"Content-Type": "application/json"}, nil
}

// Decrypt opens a notification the way the platform does
func Decrypt(n Notification, secret string) (*Order, error) {
	if Sign(n.Data, secret) != n.Sign {
		return nil, fmt.Errorf("sign mismatch")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(n.Data)
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.DecryptAESECB(ciphertext, EncryptionKey(secret))
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(plaintext, &order); err != nil {
		return nil, err
	}
	return &order, nil
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

// Definition routes merchant settings to the aurapay mock
type Definition struct {
	BaseURL string
}

func (Definition) Alias() string {
	return Alias
}

func (d Definition) Settings(secret string) map[string]interface{} {
	return map[string]interface{}{
		"class":        Alias,
		"host":         d.BaseURL,
		"merchant_key": secret,
		"secret_key":   secret,
	}
}

func (Definition) MockParams(secret string) types.MockProviderParams {
	return types.MockProviderParams{
		Alias: Alias,
		Filter: func(r *http.Request) bool {
			if r.URL.Query().Get("merchant_key") == secret {
				return true
			}
			if r.Body == nil {
				return false
			}

			raw, err := io.ReadAll(r.Body)
			if err != nil {
				return false
			}

			var body struct {
				MerchantKey string `json:"merchant_key"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return false
			}
			return body.MerchantKey == secret
		},
	}
}
