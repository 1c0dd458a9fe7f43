package mockserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paycrest/e2e/types"
	u "github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/logger"
)

// bodyKey is the gin context key holding the buffered request body
const bodyKey = "mockserver.body"

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type route struct {
	id      uint64
	filter  types.Filter
	scope   types.TestScope
	handler types.Handler
}

// ProviderServer is one listener role-playing a provider alias. Requests go to the
// first registered route whose filter accepts them.
type ProviderServer struct {
	alias    string
	listener net.Listener
	server   *http.Server

	mu     sync.RWMutex
	routes []*route
	nextID uint64
}

// SpawnProviderServer binds addr and starts serving
func SpawnProviderServer(alias string, addr string) (*ProviderServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SpawnProviderServer %s: %w", alias, err)
	}

	s := &ProviderServer{alias: alias, listener: listener}

	engine := gin.New()
	engine.Use(RequestLogger(alias))
	engine.NoRoute(s.dispatch)

	s.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logger.Fields{
				"Error": fmt.Sprintf("%v", err),
				"Alias": alias,
			}).Errorf("Provider server stopped")
		}
	}()

	logger.WithFields(logger.Fields{
		"Alias": alias,
		"Addr":  listener.Addr().String(),
	}).Debugf("Provider server listening")

	return s, nil
}

// Alias is the provider this server plays
func (s *ProviderServer) Alias() string {
	return s.alias
}

// Port is the bound port
func (s *ProviderServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Add appends a route. The returned func removes it again.
func (s *ProviderServer) Add(filter types.Filter, scope types.TestScope, handler types.Handler) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.routes = append(s.routes, &route{id: id, filter: filter, scope: scope, handler: handler})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, r := range s.routes {
			if r.id == id {
				s.routes = append(s.routes[:i], s.routes[i+1:]...)
				return
			}
		}
	}
}

// Routes is the number of registered routes
func (s *ProviderServer) Routes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes)
}

// Close stops the listener. Only standalone runs and tests close servers.
func (s *ProviderServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *ProviderServer) dispatch(c *gin.Context) {
	// NoRoute starts at 404
	c.Status(http.StatusOK)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.WithFields(logger.Fields{
			"Error": fmt.Sprintf("%v", err),
			"Alias": s.alias,
		}).Warnf("Failed to read mock request body")
	}
	c.Set(bodyKey, body)

	s.mu.RLock()
	routes := append([]*route(nil), s.routes...)
	s.mu.RUnlock()

	for _, r := range routes {
		restoreBody(c.Request, body)
		if !s.matches(r, c.Request) {
			continue
		}

		restoreBody(c.Request, body)
		if err := runHandler(r.handler, c); err != nil {
			r.scope.Fail(fmt.Errorf("%s mock: %w", s.alias, err))
			if !c.Writer.Written() {
				u.APIResponse(c, http.StatusInternalServerError, "error", err.Error(), nil)
			}
		}
		return
	}

	logger.WithFields(logger.Fields{
		"Alias":  s.alias,
		"Method": c.Request.Method,
		"Path":   c.Request.URL.Path,
	}).Warnf("No mock handler matched")

	u.APIResponse(c, http.StatusOK, "error", "no mock handler matched", gin.H{
		"alias":  s.alias,
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
	})
}

// matches runs a filter; a panicking filter does not match and is reported to its owner
func (s *ProviderServer) matches(r *route, req *http.Request) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.scope.Fail(fmt.Errorf("%s mock filter panicked: %v", s.alias, rec))
			ok = false
		}
	}()
	return r.filter(req)
}

func runHandler(handler types.Handler, c *gin.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()
	return handler(c)
}

func restoreBody(r *http.Request, body []byte) {
	r.Body = io.NopCloser(bytes.NewReader(body))
}

// RequestBody returns the raw body of a mock request; the body stays readable for binding
func RequestBody(c *gin.Context) []byte {
	if raw, ok := c.Get(bodyKey); ok {
		body, _ := raw.([]byte)
		restoreBody(c.Request, body)
		return body
	}

	body, _ := io.ReadAll(c.Request.Body)
	restoreBody(c.Request, body)
	c.Set(bodyKey, body)
	return body
}
