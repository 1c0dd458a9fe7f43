package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/paycrest/e2e/services/settings"
	"github.com/paycrest/e2e/storage"
)

// SettingsClient writes merchant settings and rules
type SettingsClient struct {
	client *client
	cache  *storage.SettingsCache
}

// SetMerchantSettings replaces the settings document of a merchant and drops the
// platform's cached copy
func (c *SettingsClient) SetMerchantSettings(ctx context.Context, merchantID int64, doc map[string]interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("SetMerchantSettings: %w", err)
	}

	_, err = c.client.send(ctx, http.MethodPut, fmt.Sprintf("/merchants/%d/settings", merchantID), nil, formBody(url.Values{
		"settings": {string(raw)},
	}))
	if err != nil {
		return fmt.Errorf("SetMerchantSettings: %w", err)
	}

	if err := c.cache.Invalidate(ctx, merchantID); err != nil {
		return fmt.Errorf("SetMerchantSettings: %w", err)
	}
	return nil
}

// Apply builds b and writes the result
func (c *SettingsClient) Apply(ctx context.Context, merchantID int64, b *settings.SettingsBuilder) error {
	doc, err := b.Build()
	if err != nil {
		return err
	}
	return c.SetMerchantSettings(ctx, merchantID, doc)
}

// RulesClient writes guard engine rules
type RulesClient struct {
	client *client
}

// SetRules replaces the rule set of a merchant
func (c *RulesClient) SetRules(ctx context.Context, merchantID int64, rules ...settings.Rule) error {
	if rules == nil {
		rules = []settings.Rule{}
	}

	b, err := jsonBody(map[string]interface{}{"rules": rules})
	if err != nil {
		return fmt.Errorf("SetRules: %w", err)
	}

	if _, err := c.client.send(ctx, http.MethodPut, fmt.Sprintf("/merchants/%d/rules", merchantID), nil, b); err != nil {
		return fmt.Errorf("SetRules: %w", err)
	}
	return nil
}
