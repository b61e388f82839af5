// Package rod drives a real Chrome browser through github.com/go-rod/rod.
// Each crawl session gets its own Tab.
package rod

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fwojciec/pagewalk"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Ensure BrowserManager implements pagewalk.TabOpener at compile time.
var _ pagewalk.TabOpener = (*BrowserManager)(nil)

// DefaultMaxPages is the default number of tabs opened before browser recycling.
const DefaultMaxPages = 75

// BrowserManager manages browser lifecycle with automatic recycling to prevent
// memory accumulation. Chrome accumulates memory over time and the baseline
// never returns to initial levels even with proper page cleanup, so the
// browser is replaced once maxPages tabs were opened and none is in use.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	pageCount int64
	maxPages  int64
	active    int
	headless  bool
	stealth   bool
	tabOpts   []TabOption
	mu        sync.Mutex
	closed    atomic.Bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithMaxPages sets the number of tabs opened before the browser is recycled.
// Defaults to 75 if not specified.
func WithMaxPages(n int64) ManagerOption {
	return func(bm *BrowserManager) {
		bm.maxPages = n
	}
}

// WithHeadless controls whether Chrome runs without a window. Defaults to true.
func WithHeadless(headless bool) ManagerOption {
	return func(bm *BrowserManager) {
		bm.headless = headless
	}
}

// WithStealth controls whether tabs hide common automation fingerprints.
// Defaults to true.
func WithStealth(enabled bool) ManagerOption {
	return func(bm *BrowserManager) {
		bm.stealth = enabled
	}
}

// WithTabOptions applies opts to every tab the manager opens.
func WithTabOptions(opts ...TabOption) ManagerOption {
	return func(bm *BrowserManager) {
		bm.tabOpts = append(bm.tabOpts, opts...)
	}
}

// NewBrowserManager creates a new BrowserManager that launches a Chrome browser.
// Close must be called when the BrowserManager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{
		maxPages: DefaultMaxPages,
		headless: true,
		stealth:  true,
	}
	for _, opt := range opts {
		opt(bm)
	}

	if err := bm.launchBrowser(); err != nil {
		return nil, err
	}

	return bm, nil
}

// Browser returns the current browser instance, recycling it first if the
// tab count has reached maxPages and no tab is open.
func (bm *BrowserManager) Browser() *rod.Browser {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.current()
}

// current must be called with mu held.
func (bm *BrowserManager) current() *rod.Browser {
	if atomic.LoadInt64(&bm.pageCount) >= bm.maxPages && bm.active == 0 {
		bm.recycleBrowser()
	}
	return bm.browser
}

// NewTab opens a blank tab. The tab counts toward recycling and keeps the
// browser alive until it is closed.
func (bm *BrowserManager) NewTab(ctx context.Context) (pagewalk.Tab, error) {
	if bm.closed.Load() {
		return nil, fmt.Errorf("browser manager is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bm.mu.Lock()
	browser := bm.current()
	var (
		page *rod.Page
		err  error
	)
	if bm.stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		bm.mu.Unlock()
		return nil, fmt.Errorf("creating page: %w", err)
	}
	bm.active++
	bm.mu.Unlock()

	bm.IncrementPageCount()

	var once sync.Once
	release := func() {
		once.Do(func() {
			bm.mu.Lock()
			bm.active--
			bm.mu.Unlock()
		})
	}

	tab, err := newTab(page, release, bm.tabOpts...)
	if err != nil {
		_ = page.Close()
		release()
		return nil, err
	}
	return tab, nil
}

// IncrementPageCount increments the tab counter.
func (bm *BrowserManager) IncrementPageCount() {
	atomic.AddInt64(&bm.pageCount, 1)
}

// Close releases browser resources. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	if !bm.closed.CompareAndSwap(false, true) {
		return nil
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()

	return bm.closeBrowser()
}

// launchBrowser starts a new browser instance with stability flags.
func (bm *BrowserManager) launchBrowser() error {
	lnchr := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(bm.headless)

	u, err := lnchr.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		lnchr.Kill()
		return fmt.Errorf("connecting to browser: %w", err)
	}

	bm.browser = browser
	bm.launcher = lnchr
	return nil
}

// closeBrowser shuts down the current browser and launcher.
// Must be called with mu held.
func (bm *BrowserManager) closeBrowser() error {
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

// recycleBrowser starts a fresh browser and closes the old one.
// If launching the new browser fails, the old browser is kept.
// Must be called with mu held.
func (bm *BrowserManager) recycleBrowser() {
	oldBrowser := bm.browser
	oldLauncher := bm.launcher
	bm.browser = nil
	bm.launcher = nil

	if err := bm.launchBrowser(); err != nil {
		bm.browser = oldBrowser
		bm.launcher = oldLauncher
		return
	}

	if oldBrowser != nil {
		_ = oldBrowser.Close()
	}
	if oldLauncher != nil {
		oldLauncher.Kill()
	}
	atomic.StoreInt64(&bm.pageCount, 0)
}

// LauncherPID returns the process ID of the browser launcher.
// This method exists for testing purposes to verify proper cleanup.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.launcher == nil {
		return 0
	}
	return bm.launcher.PID()
}
