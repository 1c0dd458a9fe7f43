package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MockConfiguration defines where the mock provider and merchant servers listen
type MockConfiguration struct {
	// Host is the interface the listeners bind to
	Host string
	// PublicHost is the host the platform uses to reach the listeners
	PublicHost string
	// MerchantPort is the single port of the merchant callback server
	MerchantPort int
	// ProviderPorts maps a provider alias to its fixed port
	ProviderPorts map[string]int
	// CallbackURL is the platform's well-known provider webhook endpoint
	CallbackURL string
	// CallbackDelay is the default latency before an out-of-band callback is delivered
	CallbackDelay time.Duration
}

// DefaultProviderPorts is the alias to port mapping used when MOCK_PROVIDER_PORTS is unset
const DefaultProviderPorts = "brusnika:18101,paylink:18102,cardgate:18103,aurapay:18104,kassa:18105"

// MockConfig sets the mock server configuration
func MockConfig() *MockConfiguration {
	viper.SetDefault("MOCK_HOST", "0.0.0.0")
	viper.SetDefault("MOCK_PUBLIC_HOST", "host.docker.internal")
	viper.SetDefault("MOCK_MERCHANT_PORT", 18100)
	viper.SetDefault("MOCK_PROVIDER_PORTS", DefaultProviderPorts)
	viper.SetDefault("MOCK_CALLBACK_URL", "http://localhost:3000/callbacks/provider")
	viper.SetDefault("MOCK_CALLBACK_DELAY", 1)

	ports, err := ParseProviderPorts(viper.GetString("MOCK_PROVIDER_PORTS"))
	if err != nil {
		panic(fmt.Sprintf("config MockConfig() error: %s", err))
	}

	return &MockConfiguration{
		Host:          viper.GetString("MOCK_HOST"),
		PublicHost:    viper.GetString("MOCK_PUBLIC_HOST"),
		MerchantPort:  viper.GetInt("MOCK_MERCHANT_PORT"),
		ProviderPorts: ports,
		CallbackURL:   viper.GetString("MOCK_CALLBACK_URL"),
		CallbackDelay: time.Duration(viper.GetInt("MOCK_CALLBACK_DELAY")) * time.Second,
	}
}

// ParseProviderPorts parses "alias:port,alias:port" into a map
func ParseProviderPorts(raw string) (map[string]int, error) {
	ports := make(map[string]int)
	seen := make(map[int]string)

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		alias, rawPort, ok := strings.Cut(pair, ":")
		if !ok || alias == "" {
			return nil, fmt.Errorf("invalid provider port entry %q", pair)
		}

		port, err := strconv.Atoi(rawPort)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port for provider %q: %q", alias, rawPort)
		}

		if other, dup := seen[port]; dup {
			return nil, fmt.Errorf("port %d assigned to both %q and %q", port, other, alias)
		}

		seen[port] = alias
		ports[alias] = port
	}

	return ports, nil
}

// Aliases returns the configured provider aliases in a stable order
func (c *MockConfiguration) Aliases() []string {
	aliases := make([]string, 0, len(c.ProviderPorts))
	for alias := range c.ProviderPorts {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}
