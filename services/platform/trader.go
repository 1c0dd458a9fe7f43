package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/paycrest/e2e/services/providers"
)

// Trader is a P2P marketplace trader
type Trader struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TraderClient drives the trader marketplace with the admin session
type TraderClient struct {
	client *client
}

// CreateTrader registers a trader
func (c *TraderClient) CreateTrader(ctx context.Context, name string) (*Trader, error) {
	raw, err := c.client.send(ctx, http.MethodPost, "/traders", nil, formBody(url.Values{"name": {name}}))
	if err != nil {
		return nil, fmt.Errorf("CreateTrader: %w", err)
	}

	var trader Trader
	if err := decode(raw, &trader); err != nil {
		return nil, fmt.Errorf("CreateTrader: %w", err)
	}
	return &trader, nil
}

// AddRequisite publishes a payment destination of the trader for currency
func (c *TraderClient) AddRequisite(ctx context.Context, traderID int64, currency string, requisite providers.Requisite) error {
	values := url.Values{
		"currency":    {currency},
		"card_number": {requisite.Card},
		"phone":       {requisite.Phone},
		"bank":        {requisite.Bank},
		"holder":      {requisite.Holder},
	}
	if _, err := c.client.send(ctx, http.MethodPost, fmt.Sprintf("/traders/%d/requisites", traderID), nil, formBody(values)); err != nil {
		return fmt.Errorf("AddRequisite: %w", err)
	}
	return nil
}

// ConfirmDeal marks the deal of a payment as paid by the trader
func (c *TraderClient) ConfirmDeal(ctx context.Context, traderID int64, token string) error {
	path := fmt.Sprintf("/traders/%d/deals/%s/confirm", traderID, token)
	if _, err := c.client.send(ctx, http.MethodPost, path, nil, formBody(url.Values{})); err != nil {
		return fmt.Errorf("ConfirmDeal: %w", err)
	}
	return nil
}
