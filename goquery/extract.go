package goquery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/pagewalk"
)

// Ensure Extractor implements pagewalk.Extractor at compile time.
var _ pagewalk.Extractor = (*Extractor)(nil)

// DefaultItemSelectors match listing entries on common search, gallery and
// feed layouts, most specific first.
var DefaultItemSelectors = []string{
	"[data-item-id]",
	"[itemtype*='schema.org/Product']",
	"[itemtype*='schema.org/ListItem']",
	".search-result",
	".result",
	".product",
	".card",
	"article",
}

// Extractor collects listing items from the page HTML. Items are matched by
// the first selector in Selectors that yields anything; each item is
// identified by the resolved URL of its first link.
type Extractor struct {
	// Selectors are tried in order. Defaults to DefaultItemSelectors.
	Selectors []string

	// IncludeHidden keeps items hidden by markup.
	IncludeHidden bool
}

// NewExtractor creates an Extractor using selectors, or the defaults when
// none are given.
func NewExtractor(selectors ...string) *Extractor {
	return &Extractor{Selectors: selectors}
}

// Extract parses the page HTML and returns its items in document order,
// deduplicated by ID.
func (e *Extractor) Extract(ctx context.Context, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := url.Parse(pc.URL())
	if err != nil {
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "invalid page URL: %v", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pc.HTML()))
	if err != nil {
		return nil, pagewalk.Errorf(pagewalk.EINVALID, "failed to parse HTML: %v", err)
	}

	selectors := e.Selectors
	if len(selectors) == 0 {
		selectors = DefaultItemSelectors
	}

	content := &pagewalk.ExtractedContent{URL: pc.URL()}
	for _, selector := range selectors {
		matched := doc.Find(selector)
		if matched.Length() == 0 {
			continue
		}
		seen := make(map[string]bool)
		matched.Each(func(_ int, sel *goquery.Selection) {
			if !e.IncludeHidden && !IsVisible(sel) {
				return
			}
			item, ok := itemFrom(base, sel)
			if !ok || seen[item.ID] {
				return
			}
			seen[item.ID] = true
			content.Items = append(content.Items, item)
		})
		break
	}
	return content, nil
}

func itemFrom(base *url.URL, sel *goquery.Selection) (pagewalk.Item, bool) {
	link := sel
	if goquery.NodeName(sel) != "a" {
		link = sel.Find("a[href]").First()
	}
	href, _ := link.Attr("href")
	text := CollapseText(sel.Text())

	item := pagewalk.Item{Text: text, Attrs: dataAttrs(sel)}
	if href != "" && !isNonHTTPLink(href) {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			resolved := base.ResolveReference(ref)
			resolved.Fragment = ""
			item.ID = resolved.String()
		}
	}
	if item.ID == "" {
		item.ID = sel.AttrOr("data-item-id", sel.AttrOr("id", ""))
	}
	if item.ID == "" {
		return pagewalk.Item{}, false
	}
	return item, true
}

// dataAttrs returns the data-* attributes of sel with the prefix removed.
func dataAttrs(sel *goquery.Selection) map[string]string {
	var attrs map[string]string
	for _, a := range sel.Get(0).Attr {
		name, ok := strings.CutPrefix(a.Key, "data-")
		if !ok {
			continue
		}
		if attrs == nil {
			attrs = make(map[string]string)
		}
		attrs[name] = a.Val
	}
	return attrs
}

// isNonHTTPLink checks if a href is a non-HTTP link that should be skipped.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	return strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:")
}
