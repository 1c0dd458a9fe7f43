package mockserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/paycrest/e2e/types"
	u "github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/logger"
)

// ErrUnexpectedRequest is reported when a provider was called with nothing queued
type ErrUnexpectedRequest struct {
	Alias  string
	Method string
	Path   string
}

func (e ErrUnexpectedRequest) Error() string {
	return fmt.Sprintf("unexpected request to %s: %s %s", e.Alias, e.Method, e.Path)
}

// Pending tracks one queued handler
type Pending struct {
	done chan struct{}
	once sync.Once
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) resolve() {
	p.once.Do(func() { close(p.done) })
}

// Done is closed once the handler ran and its response was flushed
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until Done or ctx ends
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queued struct {
	handler types.Handler
	pending *Pending
}

// ProviderInstance is one test's handle on a provider alias: a FIFO of one-shot
// handlers with transcript capture into the test's story
type ProviderInstance struct {
	alias          string
	url            string
	scope          types.TestScope
	defaultHandler types.Handler
	remove         func()

	mu    sync.Mutex
	queue []queued
}

// Option configures a ProviderInstance
type Option func(*ProviderInstance)

// WithDefaultHandler answers requests arriving while the queue is empty
func WithDefaultHandler(handler types.Handler) Option {
	return func(p *ProviderInstance) {
		p.defaultHandler = handler
	}
}

// NewProviderInstance registers a new instance on the alias server
func NewProviderInstance(registry *Registry, params types.MockProviderParams, scope types.TestScope, opts ...Option) (*ProviderInstance, error) {
	p := &ProviderInstance{
		alias: params.Alias,
		scope: scope,
	}
	for _, opt := range opts {
		opt(p)
	}

	baseURL, err := registry.URL(params.Alias)
	if err != nil {
		return nil, fmt.Errorf("NewProviderInstance: %w", err)
	}
	p.url = baseURL

	remove, err := registry.Register(params, scope, p.handle)
	if err != nil {
		return nil, fmt.Errorf("NewProviderInstance: %w", err)
	}
	p.remove = remove

	return p, nil
}

// Queue appends a one-shot handler
func (p *ProviderInstance) Queue(handler types.Handler) *Pending {
	pending := newPending()

	p.mu.Lock()
	p.queue = append(p.queue, queued{handler: handler, pending: pending})
	p.mu.Unlock()

	return pending
}

// URL is the origin the platform should call for this alias
func (p *ProviderInstance) URL() string {
	return p.url
}

// Alias is the provider alias
func (p *ProviderInstance) Alias() string {
	return p.alias
}

// Pending is the number of handlers not yet consumed
func (p *ProviderInstance) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close unregisters the instance from the alias server
func (p *ProviderInstance) Close() {
	if p.remove != nil {
		p.remove()
	}
}

func (p *ProviderInstance) next() (types.Handler, *Pending) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return p.defaultHandler, nil
	}

	item := p.queue[0]
	p.queue = p.queue[1:]
	return item.handler, item.pending
}

func (p *ProviderInstance) handle(c *gin.Context) error {
	handler, pending := p.next()

	if handler == nil {
		p.scope.Fail(ErrUnexpectedRequest{
			Alias:  p.alias,
			Method: c.Request.Method,
			Path:   c.Request.URL.Path,
		})
		u.APIResponse(c, http.StatusOK, "error", "no mock handler queued", gin.H{
			"alias":  p.alias,
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		return nil
	}

	p.captureRequest(c)

	writer := &capturingWriter{ResponseWriter: c.Writer}
	c.Writer = writer

	err := runHandler(handler, c)
	if err != nil {
		p.scope.Fail(fmt.Errorf("%s handler: %w", p.alias, err))
		if !writer.Written() {
			u.APIResponse(c, http.StatusInternalServerError, "error", err.Error(), nil)
		}
	}

	c.Writer = writer.ResponseWriter
	p.captureResponse(writer)

	if pending != nil {
		done := c.Request.Context().Done()
		if done == nil {
			pending.resolve()
		} else {
			go func() {
				<-done
				pending.resolve()
			}()
		}
	}

	return nil
}

func (p *ProviderInstance) captureRequest(c *gin.Context) {
	defer recoverCapture(p.alias, "request")

	body := RequestBody(c)
	content := map[string]interface{}{
		"curl": u.CurlCommand(c.Request, body),
	}

	if strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			logger.WithFields(logger.Fields{
				"Error": fmt.Sprintf("%v", err),
				"Alias": p.alias,
			}).Warnf("Failed to parse captured form body")
		} else {
			content["form"] = form
		}
	}

	p.scope.Chapter(fmt.Sprintf("%s %s %s", p.alias, c.Request.Method, c.Request.URL.Path), content)
}

func (p *ProviderInstance) captureResponse(w *capturingWriter) {
	defer recoverCapture(p.alias, "response")

	content := map[string]interface{}{
		"status":  w.Status(),
		"headers": w.Header().Clone(),
	}
	if strings.Contains(w.Header().Get("Content-Type"), "json") {
		content["body"] = u.PrettyJSON(w.body.Bytes())
	} else {
		content["body"] = w.body.String()
	}

	p.scope.Chapter(fmt.Sprintf("%s response %d", p.alias, w.Status()), content)
}

func recoverCapture(alias string, what string) {
	if rec := recover(); rec != nil {
		logger.WithFields(logger.Fields{
			"Alias": alias,
			"Panic": fmt.Sprintf("%v", rec),
		}).Warnf("Failed to capture %s transcript", what)
	}
}

// capturingWriter tees the response body for the transcript
type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
