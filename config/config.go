package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Configuration groups every configuration section of the harness
type Configuration struct {
	Server   ServerConfiguration
	Mock     MockConfiguration
	Database DatabaseConfiguration
	Platform PlatformConfiguration
	Browser  BrowserConfiguration
}

// SetupConfig reads the .env file (if any) and the process environment.
// A missing .env file is not an error: CI injects everything through the environment.
func SetupConfig() error {
	viper.AddConfigPath("../../../..")
	viper.AddConfigPath("../../..")
	viper.AddConfigPath("../..")
	viper.AddConfigPath("..")
	viper.AddConfigPath(".")

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	viper.SetConfigName(envFilePath)
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Printf("Error to reading config file, %s", err)
			return err
		}
	}

	return nil
}

// Load builds the full configuration snapshot used by the suite setup
func Load() *Configuration {
	return &Configuration{
		Server:   *ServerConfig(),
		Mock:     *MockConfig(),
		Database: *DatabaseConfig(),
		Platform: *PlatformConfig(),
		Browser:  *BrowserConfig(),
	}
}

func init() {
	if err := SetupConfig(); err != nil {
		panic(fmt.Sprintf("config SetupConfig() error: %s", err))
	}
}
