// Package rod renders pages in headless Chrome. Search engines serve their
// result pages to scripted clients only after JavaScript runs, so discovery
// fetches them through a stealth browser.
package rod

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// DefaultFetchTimeout bounds a single page render.
const DefaultFetchTimeout = 30 * time.Second

var _ leadscout.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML through a recycled headless browser.
// Pages are opened with stealth evasions so automation checks see an
// ordinary browser. Fetcher is safe for concurrent use.
type Fetcher struct {
	manager *BrowserManager
	timeout time.Duration
	settle  time.Duration
	closed  atomic.Bool
}

// Option configures a Fetcher.
type Option func(*fetcherConfig)

type fetcherConfig struct {
	timeout  time.Duration
	settle   time.Duration
	maxPages int64
	browser  []ManagerOption
}

// WithFetchTimeout bounds each Fetch call.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *fetcherConfig) { c.timeout = d }
}

// WithSettle waits d after the load event so late scripts can finish
// rendering results.
func WithSettle(d time.Duration) Option {
	return func(c *fetcherConfig) { c.settle = d }
}

// WithBrowserPages recycles the browser after n rendered pages.
func WithBrowserPages(n int64) Option {
	return func(c *fetcherConfig) { c.maxPages = n }
}

// WithBrowserOptions passes options through to the BrowserManager.
func WithBrowserOptions(opts ...ManagerOption) Option {
	return func(c *fetcherConfig) { c.browser = append(c.browser, opts...) }
}

// NewFetcher launches a headless browser. Close must be called when the
// Fetcher is no longer needed.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	cfg := fetcherConfig{timeout: DefaultFetchTimeout, maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(&cfg)
	}
	bm, err := NewBrowserManager(append([]ManagerOption{WithMaxPages(cfg.maxPages)}, cfg.browser...)...)
	if err != nil {
		return nil, err
	}
	return &Fetcher{manager: bm, timeout: cfg.timeout, settle: cfg.settle}, nil
}

// Fetch navigates to the URL and returns the rendered HTML. Navigation
// failures are ETRANSIENT except unresolvable hosts, which are EPERMANENT.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.closed.Load() {
		return "", leadscout.Errorf(leadscout.EINVALID, "fetcher closed")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	page, err := stealth.Page(f.manager.Browser())
	if err != nil {
		return "", leadscout.Errorf(leadscout.ETRANSIENT, "open page: %v", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Navigate(url); err != nil {
		return "", classify(ctx, url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", classify(ctx, url, err)
	}
	if f.settle > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.settle):
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", classify(ctx, url, err)
	}
	f.manager.IncrementPageCount()
	return html, nil
}

func classify(ctx context.Context, url string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var nav *rod.NavigationError
	if errors.As(err, &nav) && strings.Contains(nav.Reason, "ERR_NAME_NOT_RESOLVED") {
		return leadscout.Errorf(leadscout.EPERMANENT, "render %s: %s", url, nav.Reason)
	}
	return leadscout.Errorf(leadscout.ETRANSIENT, "render %s: %v", url, err)
}

// LauncherPID returns the browser process ID.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}
