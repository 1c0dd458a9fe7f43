package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paycrest/e2e/services/healthcheck"
	"github.com/paycrest/e2e/services/mockserver"
	"github.com/paycrest/e2e/services/platform"
	"github.com/paycrest/e2e/services/settings"
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils/logger"
)

// ErrBackground wraps a failure reported outside the test body: a mock handler,
// a delayed callback or a goroutine started with Go
type ErrBackground struct {
	Err error
}

func (e ErrBackground) Error() string {
	return fmt.Sprintf("background failure: %v", e.Err)
}

func (e ErrBackground) Unwrap() error {
	return e.Err
}

// Context is the per-test handle: identity, story, shared state and the one-shot
// error slot every asynchronous part of the test reports into
type Context struct {
	UUID    string
	Project string
	Story   *Story
	Shared  *SharedState

	ctx    context.Context
	cancel context.CancelCauseFunc

	once   sync.Once
	err    error
	failed chan struct{}

	wg        sync.WaitGroup
	mu        sync.Mutex
	instances []*mockserver.ProviderInstance
}

// NewContext returns a test context derived from parent
func NewContext(parent context.Context, shared *SharedState, project, name string) *Context {
	id := uuid.New().String()
	ctx, cancel := context.WithCancelCause(parent)

	return &Context{
		UUID:    id,
		Project: project,
		Story:   NewStory(name, id),
		Shared:  shared,
		ctx:     ctx,
		cancel:  cancel,
		failed:  make(chan struct{}),
	}
}

// Ctx is cancelled as soon as the test fails in the background
func (c *Context) Ctx() context.Context {
	return c.ctx
}

// Fail fills the error slot. Only the first error is kept.
func (c *Context) Fail(err error) {
	if err == nil {
		return
	}

	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()

		logger.WithFields(logger.Fields{
			"Test":  c.Story.Name,
			"UUID":  c.UUID,
			"Error": fmt.Sprintf("%v", err),
		}).Errorf("test failed in background")

		c.Story.Add("failure", err.Error())
		c.cancel(ErrBackground{Err: err})
		close(c.failed)
	})
}

// Err is the error in the slot, nil while the test is healthy
func (c *Context) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Failed is closed when the error slot is filled
func (c *Context) Failed() <-chan struct{} {
	return c.failed
}

// Chapter appends an entry to the story
func (c *Context) Chapter(name string, content interface{}) {
	c.Story.Add(name, content)
}

// After runs fn once after delay on the shared scheduler. An error fails the test.
func (c *Context) After(delay time.Duration, fn func(ctx context.Context) error) (<-chan struct{}, error) {
	return c.Shared.Scheduler.After(c.ctx, delay, c, fn)
}

// Go runs fn in a goroutine. An error fails the test. Run waits for it.
func (c *Context) Go(fn func(ctx context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.Fail(fmt.Errorf("panic: %v", r))
			}
		}()

		if err := fn(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Fail(err)
		}
	}()
}

// Secret is a fresh discriminator for one mock provider registration
func (c *Context) Secret() string {
	return "sk_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Provider registers a new instance of the provider behind def under a fresh secret.
// The instance is closed when the test ends.
func (c *Context) Provider(def types.ProviderDefinition, opts ...mockserver.Option) (*mockserver.ProviderInstance, string, error) {
	secret := c.Secret()

	instance, err := mockserver.NewProviderInstance(c.Shared.Mocks, def.MockParams(secret), c, opts...)
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	c.instances = append(c.instances, instance)
	c.mu.Unlock()

	c.Chapter("provider "+def.Alias(), map[string]interface{}{"url": instance.URL(), "secret": secret})
	return instance, secret, nil
}

// CreateMerchant creates a merchant routed by b. A nil b routes to the default gateway in RUB.
func (c *Context) CreateMerchant(b *settings.SettingsBuilder) (*platform.Merchant, *platform.BusinessClient, error) {
	merchant, err := c.Shared.Platform.Core.CreateMerchant(c.ctx, fmt.Sprintf("%s-%s", c.Project, c.UUID[:8]))
	if err != nil {
		return nil, nil, err
	}
	c.Chapter("merchant", merchant.ID)

	if b == nil {
		b = settings.DefaultSettings("RUB")
	}
	doc, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	if err := c.Shared.Platform.Settings.SetMerchantSettings(c.ctx, merchant.ID, doc); err != nil {
		return nil, nil, err
	}
	c.Chapter("merchant settings", doc)

	return merchant, c.Shared.Platform.Business(merchant), nil
}

// Healthcheck runs the basic healthcheck of token and records the result
func (c *Context) Healthcheck(token string) (*healthcheck.HealthcheckResult, error) {
	result, err := c.Shared.Checker.BasicHealthcheck(c.ctx, token)
	if err != nil {
		return nil, err
	}
	c.Chapter("healthcheck "+token, result.String())
	return result, nil
}

// close releases the test's registrations and waits for its goroutines
func (c *Context) close() {
	c.mu.Lock()
	instances := c.instances
	c.instances = nil
	c.mu.Unlock()

	for _, instance := range instances {
		instance.Close()
	}

	c.cancel(context.Canceled)
	c.wg.Wait()
}
