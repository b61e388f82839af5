package pagewalk

import (
	"context"
	"strings"
	"time"
)

// PageContext is a read-only view of the current page handed to strategies
// and extractors. A fresh PageContext is taken every loop iteration.
// Implementations must not mutate the page from any of these methods.
type PageContext interface {
	// URL returns the address of the page as currently displayed.
	URL() string

	// Find returns the elements matching a CSS selector in document order.
	// Hidden and disabled elements are included and flagged; callers filter.
	// An invalid selector yields no elements.
	Find(selector string) []Element

	// Viewport returns the scroll geometry of the page.
	// Static pages report a zero Viewport.
	Viewport() Viewport

	// Payloads returns captured network JSON payloads, oldest first,
	// holding at most one payload per endpoint.
	Payloads() []Payload

	// HTML returns the serialized document.
	HTML() string
}

// Element is a snapshot of a DOM element taken at query time.
type Element struct {
	// Locator is a CSS selector that resolves to this element alone.
	// It is used to re-resolve the element before clicking.
	Locator string

	Tag   string // lower-case tag name
	Text  string // trimmed, whitespace-collapsed text content
	Href  string // raw href attribute, empty when absent
	Attrs map[string]string

	Visible  bool
	Disabled bool
}

// Attr returns the named attribute, or "" when absent.
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// Label returns the most descriptive human-readable label of the element:
// its text, then aria-label, title, value and alt attributes.
func (e Element) Label() string {
	if e.Text != "" {
		return e.Text
	}
	for _, name := range []string{"aria-label", "title", "value", "alt"} {
		if v := strings.TrimSpace(e.Attrs[name]); v != "" {
			return v
		}
	}
	return ""
}

// Interactable reports whether the element could be clicked by a user.
func (e Element) Interactable() bool {
	return e.Visible && !e.Disabled
}

// NavigableHref returns the href when it points somewhere other than the
// current document, or "" for fragment-only and javascript: links.
func (e Element) NavigableHref() string {
	href := strings.TrimSpace(e.Href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return ""
	}
	return href
}

// Viewport describes the scroll geometry of a page in CSS pixels.
type Viewport struct {
	ScrollHeight int
	Height       int
	ScrollY      int
}

// Payload is a JSON response body captured from the page's network traffic.
type Payload struct {
	URL        string
	Body       []byte
	ReceivedAt time.Time
}

// PayloadStore retains the most recent payload per distinct endpoint.
// The response observer pushes into it, strategies read from it.
// Implementations must be safe for concurrent use.
type PayloadStore interface {
	// Observe offers a raw response body captured from url. Bodies that are
	// not JSON documents are dropped; it reports whether the body was kept.
	Observe(url string, body []byte) bool

	// Record stores a payload, replacing any earlier payload from the same endpoint.
	Record(p Payload)

	// Latest returns the retained payloads, oldest first.
	Latest() []Payload

	// Reset discards all payloads.
	Reset()
}

// PageSource produces PageContext snapshots of the active page.
type PageSource interface {
	Snapshot(ctx context.Context) (PageContext, error)
}

// ReadyWaiter blocks until the active page settles.
type ReadyWaiter interface {
	// WaitReady waits for load-complete plus a quiescence window with no
	// content-size growth, bounded by timeout. It returns false without an
	// error when the timeout elapsed first.
	WaitReady(ctx context.Context, timeout time.Duration) (ready bool, err error)
}

// Tab is a single browsing context driven by one crawl session.
type Tab interface {
	PageSource
	NavigationExecutor
	ReadyWaiter

	// Open navigates the tab to the start URL.
	Open(ctx context.Context, url string) error

	// Close releases the tab.
	Close() error
}

// TabOpener creates tabs, one per crawl session.
type TabOpener interface {
	NewTab(ctx context.Context) (Tab, error)
}
