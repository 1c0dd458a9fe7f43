package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/paycrest/e2e/utils/logger"
	"github.com/shopspring/decimal"
)

// Merchant is a merchant created through the admin API
type Merchant struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// CoreClient drives the core admin API with an admin session
type CoreClient struct {
	client   *client
	login    string
	password string
}

// Login opens the admin session. Subsequent calls of every client sharing the session reuse it.
func (c *CoreClient) Login(ctx context.Context) error {
	_, err := c.client.send(ctx, http.MethodPost, "/admin/login", nil, formBody(url.Values{
		"login":    {c.login},
		"password": {c.password},
	}))
	if err != nil {
		return fmt.Errorf("Login: %w", err)
	}
	if c.client.session.Cookie() == "" {
		return fmt.Errorf("Login: no session cookie was set")
	}
	return nil
}

// CreateMerchant creates a merchant with a fresh API secret
func (c *CoreClient) CreateMerchant(ctx context.Context, name string) (*Merchant, error) {
	raw, err := c.client.send(ctx, http.MethodPost, "/admin/merchants", nil, formBody(url.Values{
		"name": {name},
	}))
	if err != nil {
		return nil, fmt.Errorf("CreateMerchant: %w", err)
	}

	var merchant Merchant
	if err := decode(raw, &merchant); err != nil {
		return nil, fmt.Errorf("CreateMerchant: %w", err)
	}
	if merchant.ID == 0 || merchant.Secret == "" {
		return nil, fmt.Errorf("CreateMerchant: incomplete merchant in response %s", string(raw))
	}

	logger.WithFields(logger.Fields{
		"MerchantID": merchant.ID,
		"Name":       name,
	}).Infof("merchant created")

	return &merchant, nil
}

// Cashin credits amount, in major units, to the merchant's wallet in currency
func (c *CoreClient) Cashin(ctx context.Context, merchantID int64, currency string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("Cashin: amount must be positive, got %s", amount)
	}

	_, err := c.client.send(ctx, http.MethodPost, fmt.Sprintf("/admin/merchants/%d/cashin", merchantID), nil, formBody(url.Values{
		"currency": {currency},
		"amount":   {amount.String()},
	}))
	if err != nil {
		return fmt.Errorf("Cashin: %w", err)
	}
	return nil
}
