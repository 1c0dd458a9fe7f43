package mockserver

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/types"
)

// Registry owns one ProviderServer per alias. Servers are spawned on first use on the
// port configured for the alias and are shared by every test registering on that alias.
type Registry struct {
	conf *config.MockConfiguration

	mu      sync.Mutex
	servers map[string]*ProviderServer
}

// NewRegistry returns an empty registry over the configured alias ports
func NewRegistry(conf *config.MockConfiguration) *Registry {
	return &Registry{
		conf:    conf,
		servers: make(map[string]*ProviderServer),
	}
}

// Server returns the alias server, spawning it on first use
func (r *Registry) Server(alias string) (*ProviderServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if server, ok := r.servers[alias]; ok {
		return server, nil
	}

	port, ok := r.conf.ProviderPorts[alias]
	if !ok {
		return nil, fmt.Errorf("no port configured for provider alias %q", alias)
	}

	server, err := SpawnProviderServer(alias, net.JoinHostPort(r.conf.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	r.servers[alias] = server

	return server, nil
}

// Register appends a route on the alias server
func (r *Registry) Register(params types.MockProviderParams, scope types.TestScope, handler types.Handler) (remove func(), err error) {
	server, err := r.Server(params.Alias)
	if err != nil {
		return nil, err
	}
	return server.Add(params.Filter, scope, handler), nil
}

// URL is the origin the platform reaches the alias on
func (r *Registry) URL(alias string) (string, error) {
	server, err := r.Server(alias)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(r.conf.PublicHost, strconv.Itoa(server.Port()))), nil
}

// Aliases lists the aliases with a running server
func (r *Registry) Aliases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	aliases := make([]string, 0, len(r.servers))
	for alias := range r.servers {
		aliases = append(aliases, alias)
	}
	return aliases
}

// Close stops every spawned server
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for alias, server := range r.servers {
		_ = server.Close()
		delete(r.servers, alias)
	}
}
