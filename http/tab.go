package http

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/goquery"
	"github.com/fwojciec/pagewalk/jsonparser"
)

// Compile-time interface verification.
var (
	_ pagewalk.Tab       = (*Tab)(nil)
	_ pagewalk.TabOpener = (*TabOpener)(nil)
)

const (
	acceptHTML = "text/html,application/xhtml+xml"
	acceptJSON = "application/json"
)

// TabOpener creates static tabs sharing one Fetcher.
type TabOpener struct {
	fetcher *Fetcher
}

// NewTabOpener creates a TabOpener whose tabs fetch with opts.
func NewTabOpener(opts ...Option) *TabOpener {
	return &TabOpener{fetcher: NewFetcher(opts...)}
}

// NewTab returns an empty tab with its own payload store.
func (o *TabOpener) NewTab(ctx context.Context) (pagewalk.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewTab(o.fetcher, jsonparser.NewPayloadStore()), nil
}

// Tab holds the last fetched document. Only URL navigation is possible:
// clicks follow the element's href, scrolling is not supported, and the
// document is ready as soon as it was fetched.
type Tab struct {
	fetcher  *Fetcher
	payloads pagewalk.PayloadStore

	mu   sync.Mutex
	url  string
	html string
}

// NewTab creates a tab fetching with f and recording API responses in
// payloads.
func NewTab(f *Fetcher, payloads pagewalk.PayloadStore) *Tab {
	return &Tab{fetcher: f, payloads: payloads}
}

// Open fetches rawURL as the current document.
func (t *Tab) Open(ctx context.Context, rawURL string) error {
	t.payloads.Reset()
	return t.load(ctx, rawURL)
}

func (t *Tab) load(ctx context.Context, rawURL string) error {
	resp, err := t.fetcher.Fetch(ctx, rawURL, acceptHTML)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.url = resp.URL
	t.html = string(resp.Body)
	return nil
}

// Snapshot parses the current document.
func (t *Tab) Snapshot(ctx context.Context) (pagewalk.PageContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	u, src := t.url, t.html
	t.mu.Unlock()
	if u == "" {
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "tab has no document")
	}
	page, err := goquery.NewPage(u, src, goquery.WithPayloads(t.payloads))
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Execute performs action by fetching the document or payload it leads to.
func (t *Tab) Execute(ctx context.Context, action pagewalk.NavigationAction) (bool, error) {
	if err := action.Validate(); err != nil {
		return false, err
	}
	switch action.Kind {
	case pagewalk.ActionGoTo:
		return t.goTo(ctx, action.URL)
	case pagewalk.ActionClick:
		return t.click(ctx, action.Locator)
	case pagewalk.ActionFetch:
		return t.fetch(ctx, action.URL)
	}
	return false, pagewalk.Errorf(pagewalk.ENOTIMPLEMENTED, "%s needs a browser", action.Kind)
}

func (t *Tab) goTo(ctx context.Context, rawURL string) (bool, error) {
	t.mu.Lock()
	current := t.url
	t.mu.Unlock()
	if current != "" && !pagewalk.SameSite(current, rawURL) {
		return false, pagewalk.Errorf(pagewalk.EINVALID, "refusing cross-site navigation from %q to %q", current, rawURL)
	}
	t.payloads.Reset()
	if err := t.load(ctx, rawURL); err != nil {
		return false, err
	}
	return true, nil
}

// click resolves locator in the current document and follows its href.
// A missing, hidden or disabled element yields false.
func (t *Tab) click(ctx context.Context, locator string) (bool, error) {
	pc, err := t.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	elements := pc.Find(locator)
	if len(elements) == 0 || !elements[0].Interactable() {
		return false, nil
	}
	href := elements[0].NavigableHref()
	if href == "" {
		return false, pagewalk.Errorf(pagewalk.ENOTIMPLEMENTED, "element %s has no link; scripted clicks need a browser", locator)
	}
	target := pagewalk.ResolveURL(pc.URL(), href)
	if target == "" {
		return false, pagewalk.Errorf(pagewalk.EINVALID, "element %s has a malformed link %q", locator, href)
	}
	return t.goTo(ctx, target)
}

func (t *Tab) fetch(ctx context.Context, rawURL string) (bool, error) {
	resp, err := t.fetcher.Fetch(ctx, rawURL, acceptJSON)
	if err != nil {
		return false, err
	}
	if !t.payloads.Observe(resp.URL, resp.Body) {
		return false, pagewalk.Errorf(pagewalk.EINVALID, "response from %s is not JSON", rawURL)
	}
	return true, nil
}

// WaitReady reports true at once: a fetched document does not change.
func (t *Tab) WaitReady(ctx context.Context, _ time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Close is a no-op.
func (t *Tab) Close() error {
	return nil
}
