package rod

import (
	"sync"
	"sync/atomic"

	"github.com/fwojciec/leadscout"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultMaxPages is the number of rendered pages after which the browser
// is replaced with a fresh process.
const DefaultMaxPages = 50

// BrowserManager owns the headless Chrome process. Chrome memory grows with
// every rendered page and never drops back to its baseline, so the browser
// is relaunched once maxPages pages have been rendered.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	rendered atomic.Int64
	maxPages int64
	headless bool
	bin      string
	closed   atomic.Bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithMaxPages sets the recycling threshold.
func WithMaxPages(n int64) ManagerOption {
	return func(bm *BrowserManager) { bm.maxPages = n }
}

// WithHeadful shows the browser window, which is useful when a search
// engine challenge has to be solved by hand.
func WithHeadful() ManagerOption {
	return func(bm *BrowserManager) { bm.headless = false }
}

// WithBrowserBin uses the Chrome binary at path instead of the one the
// launcher downloads.
func WithBrowserBin(path string) ManagerOption {
	return func(bm *BrowserManager) { bm.bin = path }
}

// NewBrowserManager launches a browser. Close must be called when the
// BrowserManager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{maxPages: DefaultMaxPages, headless: true}
	for _, opt := range opts {
		opt(bm)
	}
	if bm.maxPages <= 0 {
		bm.maxPages = DefaultMaxPages
	}

	browser, l, err := bm.launch()
	if err != nil {
		return nil, err
	}
	bm.browser, bm.launcher = browser, l
	return bm, nil
}

// Browser returns the live browser, relaunching it first when the page
// budget is spent. Callers report each rendered page with
// IncrementPageCount.
func (bm *BrowserManager) Browser() *rod.Browser {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.rendered.Load() >= bm.maxPages {
		bm.recycle()
	}
	return bm.browser
}

// IncrementPageCount records one rendered page.
func (bm *BrowserManager) IncrementPageCount() {
	bm.rendered.Add(1)
}

// Close shuts the browser down. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	if !bm.closed.CompareAndSwap(false, true) {
		return nil
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()

	var err error
	if bm.browser != nil {
		err = bm.browser.Close()
		bm.browser = nil
	}
	if bm.launcher != nil {
		bm.launcher.Kill()
		bm.launcher = nil
	}
	return err
}

func (bm *BrowserManager) launch() (*rod.Browser, *launcher.Launcher, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Leakless(true).
		Headless(bm.headless)
	if bm.bin != "" {
		l = l.Bin(bm.bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, nil, leadscout.Errorf(leadscout.EINTERNAL, "launch browser: %v", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, nil, leadscout.Errorf(leadscout.EINTERNAL, "connect to browser: %v", err)
	}
	return browser, l, nil
}

// recycle swaps in a fresh browser. A failed relaunch keeps the old one
// so rendering can continue. Must be called with mu held.
func (bm *BrowserManager) recycle() {
	browser, l, err := bm.launch()
	if err != nil {
		return
	}
	if bm.browser != nil {
		_ = bm.browser.Close()
	}
	if bm.launcher != nil {
		bm.launcher.Kill()
	}
	bm.browser, bm.launcher = browser, l
	bm.rendered.Store(0)
}

// LauncherPID returns the browser process ID, or zero after Close.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.launcher == nil {
		return 0
	}
	return bm.launcher.PID()
}
