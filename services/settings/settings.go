package settings

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/paycrest/e2e/types"
)

// DefaultGateway is the platform's built-in test gateway
const DefaultGateway = "default"

var validate = validator.New()

type currencySettings struct {
	Code       string `validate:"required,len=3,uppercase"`
	Pay        string `validate:"required"`
	Payout     string
	Commission map[types.OperationType]commission
}

type commission struct {
	SelfRate float64 `validate:"gte=0,lte=100"`
}

// SettingsBuilder assembles the merchant settings document:
//
//	{<currency>: {gateways: {pay: {default: alias}, payout: {default: alias}}, commission: {...}},
//	 gateways: {<alias>: {...}, allow_host2host: bool}}
type SettingsBuilder struct {
	currencies     []*currencySettings
	current        *currencySettings
	gateways       map[string]map[string]interface{}
	allowHost2Host bool
}

// NewSettingsBuilder returns an empty builder. Host-to-host is allowed by default.
func NewSettingsBuilder() *SettingsBuilder {
	return &SettingsBuilder{
		gateways:       map[string]map[string]interface{}{},
		allowHost2Host: true,
	}
}

func (b *SettingsBuilder) currency(code string) *currencySettings {
	for _, c := range b.currencies {
		if c.Code == code {
			return c
		}
	}
	c := &currencySettings{Code: code, Commission: map[types.OperationType]commission{}}
	b.currencies = append(b.currencies, c)
	return c
}

// Currency selects the currency the following Pay and Payout calls configure
func (b *SettingsBuilder) Currency(code string) *SettingsBuilder {
	b.current = b.currency(code)
	return b
}

// Pay sets the default pay gateway of the selected currency
func (b *SettingsBuilder) Pay(alias string) *SettingsBuilder {
	if b.current != nil {
		b.current.Pay = alias
	}
	return b
}

// Payout sets the default payout gateway of the selected currency
func (b *SettingsBuilder) Payout(alias string) *SettingsBuilder {
	if b.current != nil {
		b.current.Payout = alias
	}
	return b
}

// Gateway adds the settings fragment of one gateway
func (b *SettingsBuilder) Gateway(alias string, settings map[string]interface{}) *SettingsBuilder {
	if settings == nil {
		settings = map[string]interface{}{}
	}
	b.gateways[alias] = settings
	return b
}

// Commission sets the merchant's own commission rate, in percent, for one operation type
func (b *SettingsBuilder) Commission(code string, opType types.OperationType, selfRate float64) *SettingsBuilder {
	b.currency(code).Commission[opType] = commission{SelfRate: selfRate}
	return b
}

// AllowHost2Host toggles direct API payments
func (b *SettingsBuilder) AllowHost2Host(allow bool) *SettingsBuilder {
	b.allowHost2Host = allow
	return b
}

// Build validates and renders the settings document
func (b *SettingsBuilder) Build() (map[string]interface{}, error) {
	result := map[string]interface{}{}

	gateways := map[string]interface{}{"allow_host2host": b.allowHost2Host}
	for alias, settings := range b.gateways {
		gateways[alias] = settings
	}
	result["gateways"] = gateways

	for _, c := range b.currencies {
		if err := validate.Struct(c); err != nil {
			return nil, fmt.Errorf("Build: currency %q: %w", c.Code, err)
		}

		routes := map[string]interface{}{
			"pay": map[string]interface{}{"default": c.Pay},
		}
		if c.Payout != "" {
			routes["payout"] = map[string]interface{}{"default": c.Payout}
		}

		for _, alias := range []string{c.Pay, c.Payout} {
			if _, ok := b.gateways[alias]; alias != "" && alias != DefaultGateway && !ok {
				return nil, fmt.Errorf("Build: currency %q routes to %q which has no gateway settings", c.Code, alias)
			}
		}

		entry := map[string]interface{}{"gateways": routes}
		if len(c.Commission) > 0 {
			commissions := map[string]interface{}{}
			for opType, rate := range c.Commission {
				if err := validate.Struct(rate); err != nil {
					return nil, fmt.Errorf("Build: %s commission: %w", opType, err)
				}
				commissions[string(opType)] = map[string]interface{}{"self_rate": rate.SelfRate}
			}
			entry["commission"] = commissions
		}

		result[c.Code] = entry
	}

	return result, nil
}

// Provider pairs a provider definition with the secret a merchant uses for it
type Provider struct {
	Definition types.ProviderDefinition
	Secret     string
}

// Providers routes currency to the given mocks. The first one is the default for pay and payout.
func Providers(currency string, providers ...Provider) *SettingsBuilder {
	b := NewSettingsBuilder().Currency(currency)
	for i, p := range providers {
		alias := p.Definition.Alias()
		b.Gateway(alias, p.Definition.Settings(p.Secret))
		if i == 0 {
			b.Pay(alias).Payout(alias)
		}
	}
	return b
}

// DefaultSettings routes currency to the platform's built-in test gateway
func DefaultSettings(currency string) *SettingsBuilder {
	return NewSettingsBuilder().
		Currency(currency).
		Pay(DefaultGateway).
		Payout(DefaultGateway).
		Gateway(DefaultGateway, map[string]interface{}{})
}

// Aliases lists the gateways configured on b, sorted
func (b *SettingsBuilder) Aliases() []string {
	aliases := make([]string, 0, len(b.gateways))
	for alias := range b.gateways {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}
