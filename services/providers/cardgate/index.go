package cardgate

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paycrest/e2e/services/providers"
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/crypto"
)

// Alias of the cardgate acquirer
const Alias = "cardgate"

//go:embed create_request.json
var createRequestSchema []byte

// fixture_key.pem is the acquirer's signing key. It is fixed so callback
// signatures can be compared against reference values.
//
//go:embed fixture_key.pem
var privateKeyPEM string

var (
	publicKeyOnce sync.Once
	publicKeyPEM  string
	publicKeyErr  error
)

// PublicKey returns the PEM public key the platform verifies callbacks with
func PublicKey() (string, error) {
	publicKeyOnce.Do(func() {
		publicKeyPEM, publicKeyErr = crypto.PublicKeyPEM(privateKeyPEM)
	})
	return publicKeyPEM, publicKeyErr
}

// Status is a cardgate transaction status
type Status string

const (
	StatusProcessing  Status = "processing"
	Status3DSRequired Status = "3ds_required"
	StatusApproved    Status = "approved"
	StatusDeclined    Status = "declined"
)

// Card is the card block of a create request
type Card struct {
	PAN      string `json:"pan"`
	ExpMonth string `json:"exp_month"`
	ExpYear  string `json:"exp_year"`
	CVV      string `json:"cvv"`
	Holder   string `json:"holder,omitempty"`
}

// CreateRequest is a host-to-host card charge
type CreateRequest struct {
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url,omitempty"`
	Card        Card   `json:"card"`
}

// Transaction is the cardgate view of a charge
type Transaction struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	Status     Status `json:"status"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	MaskedCard string `json:"masked_card"`
}

var acsPage = template.Must(template.New("acs").Parse(`<!DOCTYPE html>
<html>
<body onload="document.forms[0].submit()">
<form method="POST" action="{{.Action}}">
<input type="hidden" name="PaRes" value="{{.PaRes}}">
<input type="hidden" name="MD" value="{{.MD}}">
<noscript><button type="submit">Continue</button></noscript>
</form>
</body>
</html>
`))

// Provider simulates one cardgate terminal
type Provider struct {
	Secret    string
	GatewayID string
	// ACSURL overrides the 3-DS page address. By default it is served by the mock itself.
	ACSURL string

	opts    providers.Options
	mu      sync.Mutex
	request *CreateRequest
}

// New returns a simulator for the terminal identified by secret
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

func (p *Provider) transaction(request *CreateRequest, status Status) Transaction {
	return Transaction{
		ID:         p.GatewayID,
		OrderID:    request.OrderID,
		Status:     status,
		Amount:     request.Amount,
		Currency:   request.Currency,
		MaskedCard: utils.MaskPAN(request.Card.PAN),
	}
}

func (p *Provider) acsURL(host string) string {
	if p.ACSURL != "" {
		return p.ACSURL
	}
	return fmt.Sprintf("http://%s/acs/%s?key=%s", host, p.GatewayID, url.QueryEscape(p.Secret))
}

// PaReq is the payer authentication request handed to the ACS
func (p *Provider) PaReq(request *CreateRequest) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join([]string{p.GatewayID, request.OrderID, request.Amount}, "|")))
}

// CreateResponse validates and stores a charge. A 3ds_required answer points the payer to the ACS page.
func (p *Provider) CreateResponse(body []byte, status Status, host string) (map[string]interface{}, error) {
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

	response := utils.StructToMap(p.transaction(&request, status))
	if status == Status3DSRequired {
		response["acs_url"] = p.acsURL(host)
		response["pa_req"] = p.PaReq(&request)
		response["md"] = p.GatewayID
		response["term_url"] = request.ReturnURL
	}

	return response, nil
}

// CreateHandler answers the charge with the given status
func (p *Provider) CreateHandler(status Status) types.Handler {
	return func(c *gin.Context) error {
		body, err := c.GetRawData()
		if err != nil {
			return fmt.Errorf("CreateHandler: %w", err)
		}

		response, err := p.CreateResponse(body, status, c.Request.Host)
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, response)
		return nil
	}
}

// ACSHandler renders the 3-DS page which posts the authentication result back to the return url
func (p *Provider) ACSHandler(authenticated bool) types.Handler {
	return func(c *gin.Context) error {
		request, err := p.RequestData()
		if err != nil {
			return err
		}

		result := "N"
		if authenticated {
			result = "Y"
		}

		var page bytes.Buffer
		if err := acsPage.Execute(&page, map[string]string{
			"Action": request.ReturnURL,
			"PaRes":  base64.StdEncoding.EncodeToString([]byte(result + "|" + p.GatewayID)),
			"MD":     p.GatewayID,
		}); err != nil {
			return fmt.Errorf("ACSHandler: %w", err)
		}

		c.Data(http.StatusOK, "text/html; charset=utf-8", page.Bytes())
		return nil
	}
}

// StatusResponse answers a transaction status poll
func (p *Provider) StatusResponse(status Status) (map[string]interface{}, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, err
	}
	return utils.StructToMap(p.transaction(request, status)), nil
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

// SignatureBase is the string cardgate signs: id|order_id|amount|status
func SignatureBase(id, orderID, amount string, status Status) string {
	return strings.Join([]string{id, orderID, amount, string(status)}, "|")
}

// Callback builds the notification and its RSA-SHA256 signature header
func (p *Provider) Callback(status Status) ([]byte, map[string]string, error) {
	request, err := p.RequestData()
	if err != nil {
		return nil, nil, err
	}

	body, err := json.Marshal(p.transaction(request, status))
	if err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	signature, err := crypto.SignRSA([]byte(SignatureBase(p.GatewayID, request.OrderID, request.Amount, status)), privateKeyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("Callback: %w", err)
	}

	return body, map[string]string{
		"Content-Type": "application/json",
		"X-Signature":  signature,
	}, nil
}

// SendCallback delivers the notification to the request's callback url or the fixed endpoint
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

// Definition routes merchant settings to the cardgate mock
type Definition struct {
	BaseURL string
}

func (Definition) Alias() string {
	return Alias
}

func (d Definition) Settings(secret string) map[string]interface{} {
	publicKey, _ := PublicKey()
	return map[string]interface{}{
		"class":      Alias,
		"url":        d.BaseURL,
		"api_key":    secret,
		"public_key": publicKey,
	}
}

func (Definition) MockParams(secret string) types.MockProviderParams {
	return types.MockProviderParams{
		Alias: Alias,
		Filter: func(r *http.Request) bool {
			// the ACS page is opened by the payer's browser, which only carries the query key
			return r.Header.Get("X-Api-Key") == secret || r.URL.Query().Get("key") == secret
		},
	}
}
