// Package detect implements the pagination strategies and the ranker that
// chooses among their candidates.
//
// Every strategy is a pure function of a pagewalk.PageContext driven by
// static selector, pattern and JSON-path tables. Strategies never touch the
// page; the controller executes the action of the chosen candidate.
package detect

import (
	"net/url"
	"regexp"

	"github.com/fwojciec/pagewalk"
)

// Confidence levels shared by the element-based strategies.
const (
	SelectorConfidence = 0.9
	TextConfidence     = 0.7
)

// ClickableSelector matches the elements scanned by text-pattern fallbacks.
const ClickableSelector = `a, button, [role="button"], [role="link"], input[type="button"], input[type="submit"]`

// SelectorRule is one entry of a strategy's selector table.
type SelectorRule struct {
	Selector string

	// AllowHidden accepts hidden elements that carry a navigable href, such
	// as <link rel="next"> in the document head.
	AllowHidden bool
}

// affordance finds a clickable element by selector table first and text
// pattern second. It returns the element and the confidence of the match.
func affordance(pc pagewalk.PageContext, rules []SelectorRule, text *regexp.Regexp) (pagewalk.Element, float64, bool) {
	for _, rule := range rules {
		for _, el := range pc.Find(rule.Selector) {
			if el.Interactable() {
				return el, SelectorConfidence, true
			}
			if rule.AllowHidden && !el.Disabled && navigableURL(pc, el) != "" {
				return el, SelectorConfidence, true
			}
		}
	}
	if text == nil {
		return pagewalk.Element{}, 0, false
	}
	for _, el := range pc.Find(ClickableSelector) {
		if !el.Interactable() {
			continue
		}
		if text.MatchString(el.Label()) {
			return el, TextConfidence, true
		}
	}
	return pagewalk.Element{}, 0, false
}

// elementCandidate turns a matched element into a candidate. Elements that
// link to another document are followed by URL, everything else is clicked.
func elementCandidate(pc pagewalk.PageContext, name pagewalk.StrategyName, el pagewalk.Element, confidence float64) *pagewalk.Candidate {
	if next := navigableURL(pc, el); next != "" {
		return &pagewalk.Candidate{
			Strategy:   name,
			Confidence: confidence,
			Action:     pagewalk.GoToURL(next),
			NextURL:    next,
		}
	}
	if el.Locator == "" {
		return nil
	}
	return &pagewalk.Candidate{
		Strategy:   name,
		Confidence: confidence,
		Action:     pagewalk.Click(el.Locator),
	}
}

// navigableURL returns the absolute http(s) URL the element links to, or ""
// when it has none or links back to the current page.
func navigableURL(pc pagewalk.PageContext, el pagewalk.Element) string {
	href := el.NavigableHref()
	if href == "" {
		return ""
	}
	resolved := pagewalk.ResolveURL(pc.URL(), href)
	if !isHTTP(resolved) {
		return ""
	}
	if pagewalk.CanonicalURL(resolved) == pagewalk.CanonicalURL(pc.URL()) {
		return ""
	}
	return resolved
}

func isHTTP(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
