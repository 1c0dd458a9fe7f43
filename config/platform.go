package config

import (
	"time"

	"github.com/spf13/viper"
)

// PlatformConfiguration type defines how the harness reaches the platform under test
type PlatformConfiguration struct {
	Enabled             bool
	CoreURL             string
	BusinessURL         string
	SettingsURL         string
	RulesURL            string
	TraderURL           string
	AdminLogin          string
	AdminPassword       string
	RedisURL            string
	SettingsCachePrefix string
	RequestTimeout      time.Duration
}

// PlatformConfig sets the platform configuration
func PlatformConfig() *PlatformConfiguration {
	viper.SetDefault("E2E_ENABLED", false)
	viper.SetDefault("CORE_URL", "http://localhost:3000")
	viper.SetDefault("BUSINESS_URL", "http://localhost:4000")
	viper.SetDefault("SETTINGS_URL", "http://localhost:4100")
	viper.SetDefault("RULES_URL", "http://localhost:4200")
	viper.SetDefault("TRADER_URL", "http://localhost:4300")
	viper.SetDefault("ADMIN_LOGIN", "admin@example.com")
	viper.SetDefault("ADMIN_PASSWORD", "admin")
	viper.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	viper.SetDefault("SETTINGS_CACHE_PREFIX", "merchant_settings:")
	viper.SetDefault("PLATFORM_REQUEST_TIMEOUT", 30)

	return &PlatformConfiguration{
		Enabled:             viper.GetBool("E2E_ENABLED"),
		CoreURL:             viper.GetString("CORE_URL"),
		BusinessURL:         viper.GetString("BUSINESS_URL"),
		SettingsURL:         viper.GetString("SETTINGS_URL"),
		RulesURL:            viper.GetString("RULES_URL"),
		TraderURL:           viper.GetString("TRADER_URL"),
		AdminLogin:          viper.GetString("ADMIN_LOGIN"),
		AdminPassword:       viper.GetString("ADMIN_PASSWORD"),
		RedisURL:            viper.GetString("REDIS_URL"),
		SettingsCachePrefix: viper.GetString("SETTINGS_CACHE_PREFIX"),
		RequestTimeout:      time.Duration(viper.GetInt("PLATFORM_REQUEST_TIMEOUT")) * time.Second,
	}
}
