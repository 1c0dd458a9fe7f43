package config

import (
	"github.com/spf13/viper"
)

// ServerConfiguration type defines the harness process settings
type ServerConfiguration struct {
	Environment string
	SentryDSN   string
	LogLevel    string
	ReportDir   string
	Timezone    string
	Project     string
}

// ServerConfig sets the harness process configuration
func ServerConfig() *ServerConfiguration {
	viper.SetDefault("ENVIRONMENT", "local")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TIMEZONE", "UTC")
	viper.SetDefault("PROJECT", "e2e")

	return &ServerConfiguration{
		Environment: viper.GetString("ENVIRONMENT"),
		SentryDSN:   viper.GetString("SENTRY_DSN"),
		LogLevel:    viper.GetString("LOG_LEVEL"),
		ReportDir:   viper.GetString("REPORT_DIR"),
		Timezone:    viper.GetString("TIMEZONE"),
		Project:     viper.GetString("PROJECT"),
	}
}
