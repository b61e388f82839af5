package detect

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/fwojciec/pagewalk"
)

// Compile-time interface verification.
var (
	_ pagewalk.Strategy = (*QueryString)(nil)
	_ pagewalk.Strategy = (*PathBased)(nil)
)

// Confidence levels of the URL-pattern strategies.
const (
	// ContainerConfidence applies when a pagination container links to the
	// computed next URL.
	ContainerConfidence = 0.9

	// AddressConfidence applies when only the address bar carries the pattern.
	AddressConfidence = 0.7

	// FirstPageConfidence applies on an unnumbered first page whose
	// pagination container links to page two.
	FirstPageConfidence = 0.8
)

// PaginationLinkSelector matches links inside common pagination containers.
const PaginationLinkSelector = `.pagination a[href], .pager a[href], .paging a[href], .page-numbers a[href], ` +
	`nav[aria-label*="agination"] a[href], [role="navigation"] a[href], ul.pages a[href], .pagenav a[href]`

// PageParams are query parameters holding a page number, in lookup order.
var PageParams = []string{"page", "p", "pg", "pagenum", "pageNumber", "page_number", "paged", "pn"}

// OffsetParams are query parameters holding an item offset. They are only
// advanced when one of LimitParams gives the step.
var OffsetParams = []string{"offset", "start", "from", "skip"}

// LimitParams are query parameters holding a page size.
var LimitParams = []string{"limit", "size", "count", "per_page", "perPage", "pageSize", "page_size", "rows", "num"}

// QueryString advances a page number or offset carried in the query string.
type QueryString struct {
	PageParams   []string
	OffsetParams []string
	LimitParams  []string
}

// NewQueryString creates a QueryString with the default parameter tables.
func NewQueryString() *QueryString {
	return &QueryString{PageParams: PageParams, OffsetParams: OffsetParams, LimitParams: LimitParams}
}

// Name returns the strategy identifier.
func (s *QueryString) Name() pagewalk.StrategyName {
	return pagewalk.StrategyQueryString
}

// Detect returns a GoTo candidate to the current URL with the page parameter
// incremented, or the offset advanced by the limit.
func (s *QueryString) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	current, err := url.Parse(pc.URL())
	if err != nil || !isHTTP(pc.URL()) {
		return nil
	}
	query := current.Query()
	links := containerLinks(pc)

	for _, param := range s.PageParams {
		n, ok := intParam(query, param)
		if !ok {
			continue
		}
		next := withQueryParam(current, param, strconv.Itoa(n+1))
		return urlCandidate(s.Name(), next, confidenceFor(next, links))
	}

	for _, param := range s.OffsetParams {
		offset, ok := intParam(query, param)
		if !ok {
			continue
		}
		for _, limitParam := range s.LimitParams {
			limit, ok := intParam(query, limitParam)
			if !ok || limit <= 0 {
				continue
			}
			next := withQueryParam(current, param, strconv.Itoa(offset+limit))
			return urlCandidate(s.Name(), next, confidenceFor(next, links))
		}
	}

	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || u.Path != current.Path {
			continue
		}
		for _, param := range s.PageParams {
			if n, ok := intParam(u.Query(), param); ok && n == 2 {
				return urlCandidate(s.Name(), link, FirstPageConfidence)
			}
		}
	}
	return nil
}

// PathPatterns match a page number in the URL path. The number is the second
// submatch; the first and third are kept verbatim.
var PathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(.*/page/)(\d+)(/.*)?$`),
	regexp.MustCompile(`(?i)^(.*/p/)(\d+)(/.*)?$`),
	regexp.MustCompile(`(?i)^(.*/page-)(\d+)(/.*|\.html?)?$`),
	regexp.MustCompile(`(?i)^(.*/page)(\d+)(/.*|\.html?)?$`),
}

// PathBased advances a page number carried in the URL path.
type PathBased struct {
	Patterns []*regexp.Regexp
}

// NewPathBased creates a PathBased with the default patterns.
func NewPathBased() *PathBased {
	return &PathBased{Patterns: PathPatterns}
}

// Name returns the strategy identifier.
func (s *PathBased) Name() pagewalk.StrategyName {
	return pagewalk.StrategyPathBased
}

// Detect returns a GoTo candidate to the current URL with the path page
// number incremented.
func (s *PathBased) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	current, err := url.Parse(pc.URL())
	if err != nil || !isHTTP(pc.URL()) {
		return nil
	}
	links := containerLinks(pc)

	for _, pattern := range s.Patterns {
		m := pattern.FindStringSubmatch(current.Path)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		next := *current
		next.Path = m[1] + strconv.Itoa(n+1) + m[3]
		next.RawPath = ""
		next.Fragment = ""
		return urlCandidate(s.Name(), next.String(), confidenceFor(next.String(), links))
	}

	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || !strings.HasPrefix(u.Path, strings.TrimSuffix(current.Path, "/")) {
			continue
		}
		for _, pattern := range s.Patterns {
			if m := pattern.FindStringSubmatch(u.Path); m != nil && m[2] == "2" {
				return urlCandidate(s.Name(), link, FirstPageConfidence)
			}
		}
	}
	return nil
}

func urlCandidate(name pagewalk.StrategyName, next string, confidence float64) *pagewalk.Candidate {
	return &pagewalk.Candidate{
		Strategy:   name,
		Confidence: confidence,
		Action:     pagewalk.GoToURL(next),
		NextURL:    next,
	}
}

// containerLinks returns the resolved same-site links of visible pagination
// containers.
func containerLinks(pc pagewalk.PageContext) []string {
	var links []string
	for _, el := range pc.Find(PaginationLinkSelector) {
		if !el.Visible {
			continue
		}
		href := el.NavigableHref()
		if href == "" {
			continue
		}
		resolved := pagewalk.ResolveURL(pc.URL(), href)
		if resolved == "" || !pagewalk.SameSite(resolved, pc.URL()) {
			continue
		}
		links = append(links, resolved)
	}
	return links
}

func confidenceFor(next string, links []string) float64 {
	want := canonicalQuery(next)
	for _, link := range links {
		if canonicalQuery(link) == want {
			return ContainerConfidence
		}
	}
	return AddressConfidence
}

// canonicalQuery is CanonicalURL with query parameters in sorted order, so
// links that differ only in parameter order compare equal.
func canonicalQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = u.Query().Encode()
	return pagewalk.CanonicalURL(u.String())
}

func intParam(query url.Values, name string) (int, bool) {
	if !query.Has(name) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(query.Get(name)))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// withQueryParam replaces the value of name in u's query while keeping the
// order and encoding of every other parameter.
func withQueryParam(u *url.URL, name, value string) string {
	var parts []string
	if u.RawQuery != "" {
		parts = strings.Split(u.RawQuery, "&")
	}
	replaced := false
	for i, part := range parts {
		key, _, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil && k == name && !replaced {
			parts[i] = key + "=" + url.QueryEscape(value)
			replaced = true
		}
	}
	if !replaced {
		parts = append(parts, url.QueryEscape(name)+"="+url.QueryEscape(value))
	}
	next := *u
	next.RawQuery = strings.Join(parts, "&")
	next.Fragment = ""
	return next.String()
}
