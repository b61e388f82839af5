package rod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/pagewalk"
	"github.com/fwojciec/pagewalk/goquery"
	"github.com/fwojciec/pagewalk/jsonparser"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Ensure Tab implements pagewalk.Tab at compile time.
var _ pagewalk.Tab = (*Tab)(nil)

// Tab defaults.
const (
	DefaultDebounce     = 250 * time.Millisecond
	DefaultQuietWindow  = 500 * time.Millisecond
	DefaultPollInterval = 100 * time.Millisecond
)

// Tab is one browser page driven by a crawl session. Snapshots are taken by
// cloning the live DOM with computed visibility marked on every element, so
// strategies see a consistent document while the page keeps running. XHR
// and fetch responses are captured into the payload store.
type Tab struct {
	page     *rod.Page
	router   *rod.HijackRouter
	release  func()
	payloads pagewalk.PayloadStore
	client   *http.Client
	debounce time.Duration
	quiet    time.Duration
	poll     time.Duration
	logger   *slog.Logger
}

// TabOption configures a Tab.
type TabOption func(*Tab)

// WithDebounce sets the pause between scrolling an element into view and
// clicking it.
func WithDebounce(d time.Duration) TabOption {
	return func(t *Tab) {
		t.debounce = d
	}
}

// WithQuietWindow sets how long the DOM must stay unchanged before the page
// counts as ready.
func WithQuietWindow(d time.Duration) TabOption {
	return func(t *Tab) {
		t.quiet = d
	}
}

// WithPayloadStore sets the store that receives captured responses.
// Defaults to a new jsonparser.PayloadStore per tab.
func WithPayloadStore(store pagewalk.PayloadStore) TabOption {
	return func(t *Tab) {
		t.payloads = store
	}
}

// WithLogger logs captured payloads at debug level.
func WithLogger(logger *slog.Logger) TabOption {
	return func(t *Tab) {
		t.logger = logger
	}
}

func newTab(page *rod.Page, release func(), opts ...TabOption) (*Tab, error) {
	t := &Tab{
		page:     page,
		release:  release,
		client:   http.DefaultClient,
		debounce: DefaultDebounce,
		quiet:    DefaultQuietWindow,
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.payloads == nil {
		t.payloads = jsonparser.NewPayloadStore()
	}
	if t.logger == nil {
		t.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	router := page.HijackRequests()
	for _, kind := range []proto.NetworkResourceType{proto.NetworkResourceTypeXHR, proto.NetworkResourceTypeFetch} {
		if err := router.Add("*", kind, t.observe); err != nil {
			return nil, fmt.Errorf("hijacking %s responses: %w", kind, err)
		}
	}
	go router.Run()
	t.router = router

	return t, nil
}

// observe loads an intercepted response and offers its body to the payload
// store before handing it back to the page.
func (t *Tab) observe(h *rod.Hijack) {
	if err := h.LoadResponse(t.client, true); err != nil {
		h.Response.Fail(proto.NetworkErrorReasonFailed)
		return
	}
	u := h.Request.URL().String()
	if t.payloads.Observe(u, []byte(h.Response.Body())) {
		t.logger.Debug("payload captured", "url", u)
	}
}

// Open navigates the tab to rawURL and waits for the load event.
func (t *Tab) Open(ctx context.Context, rawURL string) error {
	t.payloads.Reset()
	p := t.page.Context(ctx)
	if err := p.Navigate(rawURL); err != nil {
		return navigationError(ctx, rawURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return navigationError(ctx, rawURL, err)
	}
	return nil
}

// snapshotJS clones the document and marks every element the browser does
// not render, then reports the clone with the scroll geometry.
const snapshotJS = `(attr) => {
	const root = document.documentElement;
	const clone = root.cloneNode(true);
	const src = root.querySelectorAll('*');
	const dst = clone.querySelectorAll('*');
	for (let i = 0; i < src.length && i < dst.length; i++) {
		const cs = window.getComputedStyle(src[i]);
		if (cs.display === 'contents') continue;
		if (cs.display === 'none' || cs.visibility === 'hidden' || src[i].getClientRects().length === 0) {
			dst[i].setAttribute(attr, '');
		}
	}
	const body = document.body;
	return JSON.stringify({
		url: location.href,
		html: clone.outerHTML,
		scrollHeight: Math.max(root.scrollHeight, body ? body.scrollHeight : 0),
		height: window.innerHeight,
		scrollY: Math.round(window.scrollY),
	});
}`

type snapshot struct {
	URL          string `json:"url"`
	HTML         string `json:"html"`
	ScrollHeight int    `json:"scrollHeight"`
	Height       int    `json:"height"`
	ScrollY      int    `json:"scrollY"`
}

// Snapshot captures the current document as an immutable PageContext.
func (t *Tab) Snapshot(ctx context.Context) (pagewalk.PageContext, error) {
	res, err := t.page.Context(ctx).Eval(snapshotJS, goquery.HiddenAttr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("snapshot: %w: %v", pagewalk.ErrNavigation, err)
	}
	page, err := parseSnapshot(res.Value.Str(), t.payloads)
	if err != nil {
		return nil, err
	}
	return page, nil
}

func parseSnapshot(raw string, payloads pagewalk.PayloadStore) (*goquery.Page, error) {
	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return goquery.NewPage(snap.URL, snap.HTML,
		goquery.WithViewport(pagewalk.Viewport{
			ScrollHeight: snap.ScrollHeight,
			Height:       snap.Height,
			ScrollY:      snap.ScrollY,
		}),
		goquery.WithPayloads(payloads),
	)
}

// Execute performs action on the live page.
func (t *Tab) Execute(ctx context.Context, action pagewalk.NavigationAction) (bool, error) {
	if err := action.Validate(); err != nil {
		return false, err
	}
	switch action.Kind {
	case pagewalk.ActionClick:
		return t.click(ctx, action.Locator)
	case pagewalk.ActionGoTo:
		return t.goTo(ctx, action.URL)
	case pagewalk.ActionScroll:
		return t.scroll(ctx)
	case pagewalk.ActionFetch:
		return t.fetch(ctx, action.URL)
	}
	return false, pagewalk.Errorf(pagewalk.ENOTIMPLEMENTED, "unsupported action %q", action.Kind)
}

const disabledJS = `() => this.disabled === true ||
	this.getAttribute('aria-disabled') === 'true' ||
	this.closest('fieldset[disabled]') !== null`

// click re-resolves locator and clicks the element once it is confirmed
// visible and enabled. A missing, hidden or disabled element yields false.
func (t *Tab) click(ctx context.Context, locator string) (bool, error) {
	p := t.page.Context(ctx)
	els, err := p.Elements(locator)
	if err != nil || len(els) == 0 {
		return false, ctx.Err()
	}
	el := els.First()

	visible, err := el.Visible()
	if err != nil || !visible {
		return false, ctx.Err()
	}
	res, err := el.Eval(disabledJS)
	if err != nil || res.Value.Bool() {
		return false, ctx.Err()
	}
	if err := el.ScrollIntoView(); err != nil {
		return false, ctx.Err()
	}
	if err := sleep(ctx, t.debounce); err != nil {
		return false, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("click %s: %w: %v", locator, pagewalk.ErrStaleElement, err)
	}
	return true, nil
}

// goTo requests navigation to a same-site URL. It returns once navigation
// was requested; WaitReady waits for the result.
func (t *Tab) goTo(ctx context.Context, rawURL string) (bool, error) {
	current, err := t.currentURL(ctx)
	if err != nil {
		return false, err
	}
	if !pagewalk.SameSite(current, rawURL) {
		return false, pagewalk.Errorf(pagewalk.EINVALID, "refusing cross-site navigation from %q to %q", current, rawURL)
	}
	t.payloads.Reset()
	if err := t.page.Context(ctx).Navigate(rawURL); err != nil {
		return false, navigationError(ctx, rawURL, err)
	}
	return true, nil
}

func (t *Tab) scroll(ctx context.Context) (bool, error) {
	_, err := t.page.Context(ctx).Eval(`() => {
		const body = document.body;
		window.scrollTo(0, Math.max(document.documentElement.scrollHeight, body ? body.scrollHeight : 0));
	}`)
	if err != nil {
		return false, navigationError(ctx, "scroll", err)
	}
	return true, nil
}

const fetchJS = `async (u) => {
	const r = await fetch(u, {credentials: 'include', headers: {'Accept': 'application/json'}});
	return JSON.stringify({status: r.status, url: r.url, body: await r.text()});
}`

type fetchResult struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
	Body   string `json:"body"`
}

// fetch requests rawURL from inside the page, so cookies and origin match
// the site, and records the JSON response as a payload.
func (t *Tab) fetch(ctx context.Context, rawURL string) (bool, error) {
	res, err := t.page.Context(ctx).Eval(fetchJS, rawURL)
	if err != nil {
		return false, navigationError(ctx, rawURL, err)
	}
	var r fetchResult
	if err := json.Unmarshal([]byte(res.Value.Str()), &r); err != nil {
		return false, fmt.Errorf("decoding fetch result: %w", err)
	}
	return recordFetch(t.payloads, rawURL, r)
}

func recordFetch(payloads pagewalk.PayloadStore, rawURL string, r fetchResult) (bool, error) {
	switch {
	case r.Status >= 500 || r.Status == http.StatusTooManyRequests:
		return false, fmt.Errorf("fetch %s: status %d: %w", rawURL, r.Status, pagewalk.ErrNavigation)
	case r.Status >= 400:
		return false, pagewalk.Errorf(pagewalk.EINVALID, "fetch %s: status %d", rawURL, r.Status)
	}
	u := r.URL
	if u == "" {
		u = rawURL
	}
	if !payloads.Observe(u, []byte(r.Body)) {
		return false, pagewalk.Errorf(pagewalk.EINVALID, "fetch %s: response is not JSON", rawURL)
	}
	return true, nil
}

// digestJS summarizes the parts of the page that grow while content loads.
const digestJS = `() => {
	const body = document.body;
	return document.readyState + '|' + document.documentElement.scrollHeight + '|' + (body ? body.innerHTML : '');
}`

// WaitReady waits for the load event and then for the DOM digest to stay
// unchanged for the quiet window. It returns false when timeout elapses
// first.
func (t *Tab) WaitReady(ctx context.Context, timeout time.Duration) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := t.page.Context(wctx)
	if err := p.WaitLoad(); err != nil {
		return timedOut(ctx, wctx, err)
	}

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	q := quiescence{window: t.quiet}
	for {
		if res, err := p.Eval(digestJS); err == nil {
			if q.observe(xxhash.Sum64String(res.Value.Str()), time.Now()) {
				return true, nil
			}
		} else {
			q.reset()
		}
		select {
		case <-wctx.Done():
			return timedOut(ctx, wctx, wctx.Err())
		case <-ticker.C:
		}
	}
}

// quiescence tracks how long a digest has stayed unchanged.
type quiescence struct {
	window time.Duration
	last   uint64
	since  time.Time
	seen   bool
}

// observe records digest at now and reports whether it has been stable for
// the whole window.
func (q *quiescence) observe(digest uint64, now time.Time) bool {
	if !q.seen || digest != q.last {
		q.last = digest
		q.since = now
		q.seen = true
		return false
	}
	return now.Sub(q.since) >= q.window
}

func (q *quiescence) reset() {
	q.seen = false
}

// Close stops response capture and closes the page.
func (t *Tab) Close() error {
	var errs []error
	if t.router != nil {
		errs = append(errs, t.router.Stop())
	}
	errs = append(errs, t.page.Close())
	if t.release != nil {
		t.release()
	}
	return errors.Join(errs...)
}

func (t *Tab) currentURL(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => location.href`)
	if err != nil {
		return "", navigationError(ctx, "location", err)
	}
	return res.Value.Str(), nil
}

// timedOut maps a wait failure: the caller's context wins, an elapsed
// timeout is not an error, anything else is a navigation failure.
func timedOut(ctx, wctx context.Context, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if errors.Is(wctx.Err(), context.DeadlineExceeded) {
		return false, nil
	}
	return false, fmt.Errorf("wait ready: %w: %v", pagewalk.ErrNavigation, err)
}

func navigationError(ctx context.Context, target string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s: %w: %v", target, pagewalk.ErrNavigation, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
