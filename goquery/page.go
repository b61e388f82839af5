package goquery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/pagewalk"
	"golang.org/x/net/html"
)

// Ensure Page implements pagewalk.PageContext at compile time.
var _ pagewalk.PageContext = (*Page)(nil)

// Page is a PageContext over a parsed HTML document. Visibility and disabled
// state are inferred from markup only: there is no layout engine behind it.
type Page struct {
	url      string
	raw      string
	doc      *goquery.Document
	viewport pagewalk.Viewport
	payloads pagewalk.PayloadStore
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithViewport sets the scroll geometry reported by the page.
func WithViewport(v pagewalk.Viewport) PageOption {
	return func(p *Page) {
		p.viewport = v
	}
}

// WithPayloads exposes the payloads held by store through Payloads.
func WithPayloads(store pagewalk.PayloadStore) PageOption {
	return func(p *Page) {
		p.payloads = store
	}
}

// NewPage parses src as the document located at rawURL.
func NewPage(rawURL, src string, opts ...PageOption) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "failed to parse HTML: %v", err)
	}
	p := &Page{url: rawURL, raw: src, doc: doc}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// URL returns the document address.
func (p *Page) URL() string {
	return p.url
}

// HTML returns the source the page was parsed from.
func (p *Page) HTML() string {
	return p.raw
}

// Viewport returns the configured scroll geometry, zero by default.
func (p *Page) Viewport() pagewalk.Viewport {
	return p.viewport
}

// Payloads returns the payloads of the attached store, if any.
func (p *Page) Payloads() []pagewalk.Payload {
	if p.payloads == nil {
		return nil
	}
	return p.payloads.Latest()
}

// Find returns element snapshots for selector in document order.
func (p *Page) Find(selector string) []pagewalk.Element {
	var elements []pagewalk.Element
	p.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, p.element(sel))
	})
	return elements
}

func (p *Page) element(sel *goquery.Selection) pagewalk.Element {
	node := sel.Get(0)
	attrs := make(map[string]string, len(node.Attr))
	for _, a := range node.Attr {
		attrs[a.Key] = a.Val
	}
	return pagewalk.Element{
		Locator:  p.locator(sel),
		Tag:      goquery.NodeName(sel),
		Text:     CollapseText(sel.Text()),
		Href:     attrs["href"],
		Attrs:    attrs,
		Visible:  IsVisible(sel),
		Disabled: IsDisabled(sel),
	}
}

var cssIdent = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// locator builds a selector that resolves to sel alone: a unique id when the
// element or an ancestor has one, otherwise an nth-child path.
func (p *Page) locator(sel *goquery.Selection) string {
	var parts []string
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		node := cur.Get(0)
		if node.Type != html.ElementNode {
			break
		}
		tag := goquery.NodeName(cur)
		if id, ok := cur.Attr("id"); ok && cssIdent.MatchString(id) && p.doc.Find("#"+id).Length() == 1 {
			parts = append(parts, tag+"#"+id)
			break
		}
		if tag == "html" {
			parts = append(parts, tag)
			break
		}
		parts = append(parts, tag+":nth-child("+strconv.Itoa(childIndex(node))+")")
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " > ")
}

// childIndex returns the 1-based position of n among its element siblings.
func childIndex(n *html.Node) int {
	i := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			i++
		}
	}
	return i
}

// HiddenAttr marks elements that a browser found not rendered. Snapshots of
// live pages set it so that IsVisible agrees with the computed layout.
const HiddenAttr = "data-pagewalk-hidden"

var hiddenStyle = regexp.MustCompile(`(?i)(display\s*:\s*none|visibility\s*:\s*hidden)`)

// IsVisible reports whether neither sel nor any ancestor is hidden by markup:
// the hidden attribute or HiddenAttr, aria-hidden, an inline display:none or
// visibility:hidden style, a hidden input, or a non-rendered container.
func IsVisible(sel *goquery.Selection) bool {
	if strings.EqualFold(sel.AttrOr("type", ""), "hidden") && goquery.NodeName(sel) == "input" {
		return false
	}
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		if cur.Get(0).Type != html.ElementNode {
			break
		}
		switch goquery.NodeName(cur) {
		case "head", "template", "noscript", "script", "style":
			return false
		}
		if _, ok := cur.Attr("hidden"); ok {
			return false
		}
		if _, ok := cur.Attr(HiddenAttr); ok {
			return false
		}
		if cur.AttrOr("aria-hidden", "") == "true" {
			return false
		}
		if hiddenStyle.MatchString(cur.AttrOr("style", "")) {
			return false
		}
	}
	return true
}

// IsDisabled reports whether sel is marked disabled: the disabled attribute,
// aria-disabled, a "disabled" class, or a disabled pagination list item
// wrapping it.
func IsDisabled(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("disabled"); ok {
		return true
	}
	if sel.AttrOr("aria-disabled", "") == "true" {
		return true
	}
	if sel.HasClass("disabled") || sel.HasClass("is-disabled") {
		return true
	}
	if sel.ParentsFiltered("fieldset[disabled]").Length() > 0 {
		return true
	}
	return sel.Parent().Filter("li.disabled, li.is-disabled").Length() > 0
}

// CollapseText trims s and collapses runs of whitespace to single spaces.
func CollapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
