package config

import (
	"time"

	"github.com/spf13/viper"
)

// BrowserConfiguration type defines the shared browser process settings
type BrowserConfiguration struct {
	RemoteURL string
	Headless  bool
	Timeout   time.Duration
}

// BrowserConfig sets the browser configuration
func BrowserConfig() *BrowserConfiguration {
	viper.SetDefault("BROWSER_HEADLESS", true)
	viper.SetDefault("BROWSER_TIMEOUT", 30)

	return &BrowserConfiguration{
		RemoteURL: viper.GetString("BROWSER_REMOTE_URL"),
		Headless:  viper.GetBool("BROWSER_HEADLESS"),
		Timeout:   time.Duration(viper.GetInt("BROWSER_TIMEOUT")) * time.Second,
	}
}
