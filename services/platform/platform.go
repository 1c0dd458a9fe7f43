package platform

import (
	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/storage"
)

// Clients groups the driver clients of one platform, sharing the admin session
type Clients struct {
	Session  *Session
	Core     *CoreClient
	Settings *SettingsClient
	Rules    *RulesClient
	Trader   *TraderClient

	conf *config.PlatformConfiguration
}

// New builds the driver clients for conf. cache may be nil.
func New(conf *config.PlatformConfiguration, cache *storage.SettingsCache) *Clients {
	session := &Session{}
	return &Clients{
		Session: session,
		Core: &CoreClient{
			client:   newClient(conf.CoreURL, conf.RequestTimeout, session),
			login:    conf.AdminLogin,
			password: conf.AdminPassword,
		},
		Settings: &SettingsClient{client: newClient(conf.SettingsURL, conf.RequestTimeout, session), cache: cache},
		Rules:    &RulesClient{client: newClient(conf.RulesURL, conf.RequestTimeout, session)},
		Trader:   &TraderClient{client: newClient(conf.TraderURL, conf.RequestTimeout, session)},
		conf:     conf,
	}
}

// Business returns a business API client authenticated as merchant
func (c *Clients) Business(merchant *Merchant) *BusinessClient {
	return &BusinessClient{
		client:     newClient(c.conf.BusinessURL, c.conf.RequestTimeout, nil),
		merchantID: merchant.ID,
		secret:     merchant.Secret,
	}
}
