package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/utils/logger"
)

const defaultTimeout = 30 * time.Second

// Page is what a visit ended on, after redirects and auto-submitted forms
type Page struct {
	URL  string
	Text string
}

// Browser is the suite-wide browser process. It is started on first use.
type Browser struct {
	conf *config.BrowserConfiguration

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	closed      bool
}

// New returns a Browser for conf without starting it
func New(conf *config.BrowserConfiguration) *Browser {
	if conf == nil {
		conf = &config.BrowserConfiguration{Headless: true}
	}
	return &Browser{conf: conf}
}

// Started reports whether the browser process was allocated
func (b *Browser) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocCtx != nil
}

func (b *Browser) allocator() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("browser is closed")
	}
	if b.allocCtx != nil {
		return b.allocCtx, nil
	}

	if b.conf.RemoteURL != "" {
		b.allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(context.Background(), b.conf.RemoteURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", b.conf.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-first-run", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
		)
		b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	logger.WithFields(logger.Fields{
		"Remote":   b.conf.RemoteURL,
		"Headless": b.conf.Headless,
	}).Infof("browser allocated")

	return b.allocCtx, nil
}

// Visit opens url in a fresh tab, waits for the document body and returns where it ended
func (b *Browser) Visit(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocCtx, err := b.allocator()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logger.Debugf(format, args...)
	}))
	defer cancelTab()

	timeout := b.conf.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var page Page
	err = chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&page.URL),
		chromedp.Text("body", &page.Text, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("Visit %s: %w", url, err)
	}

	page.Text = strings.TrimSpace(page.Text)
	return &page, nil
}

// PageText is the visible text of the page url ends on
func (b *Browser) PageText(ctx context.Context, url string) (string, error) {
	page, err := b.Visit(ctx, url)
	if err != nil {
		return "", err
	}
	return page.Text, nil
}

// Close stops the browser process if it was started
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.allocCancel != nil {
		b.allocCancel()
	}
}
