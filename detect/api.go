package detect

import (
	"net/url"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/fwojciec/pagewalk"
)

var _ pagewalk.Strategy = (*APICursor)(nil)

// Confidence levels of APICursor by hint kind.
const (
	NextURLConfidence = 0.9
	CursorConfidence  = 0.8
	PageConfidence    = 0.6
)

// HintKind says how a payload value leads to the next page.
type HintKind int

// Hint kinds, in precedence order.
const (
	// HintURL is an explicit next-page address. Non-URL strings found here
	// are treated as cursors and numbers as page numbers.
	HintURL HintKind = iota
	HintCursor
	HintToken
)

// PayloadRule locates one pagination hint in a JSON payload.
type PayloadRule struct {
	Path []string
	Kind HintKind

	// Param is the query parameter that carries a cursor or token when the
	// endpoint URL does not already use one.
	Param string

	// Require is a boolean path that must be true for the rule to apply.
	Require []string
}

// PageRule locates a current page number and its upper bound.
type PageRule struct {
	Current []string
	Total   []string
}

// PayloadRules are tried in order; URL rules precede cursor and token rules.
var PayloadRules = []PayloadRule{
	{Path: []string{"next"}, Kind: HintURL},
	{Path: []string{"nextPage"}, Kind: HintURL},
	{Path: []string{"next_page"}, Kind: HintURL},
	{Path: []string{"next_page_url"}, Kind: HintURL},
	{Path: []string{"nextUrl"}, Kind: HintURL},
	{Path: []string{"next_url"}, Kind: HintURL},
	{Path: []string{"links", "next"}, Kind: HintURL},
	{Path: []string{"links", "next", "href"}, Kind: HintURL},
	{Path: []string{"_links", "next", "href"}, Kind: HintURL},
	{Path: []string{"pagination", "next"}, Kind: HintURL},
	{Path: []string{"pagination", "nextPage"}, Kind: HintURL},
	{Path: []string{"pagination", "next_page"}, Kind: HintURL},
	{Path: []string{"pagination", "next_page_url"}, Kind: HintURL},
	{Path: []string{"pagination", "nextUrl"}, Kind: HintURL},
	{Path: []string{"paging", "next"}, Kind: HintURL},
	{Path: []string{"meta", "next"}, Kind: HintURL},
	{Path: []string{"meta", "pagination", "links", "next"}, Kind: HintURL},

	{Path: []string{"nextCursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"next_cursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"cursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"pagination", "nextCursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"pagination", "next_cursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"pagination", "cursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"paging", "cursors", "after"}, Kind: HintCursor, Param: "after"},
	{Path: []string{"meta", "next_cursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"meta", "nextCursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"response_metadata", "next_cursor"}, Kind: HintCursor, Param: "cursor"},
	{Path: []string{"pageInfo", "endCursor"}, Kind: HintCursor, Param: "after", Require: []string{"pageInfo", "hasNextPage"}},
	{Path: []string{"data", "pageInfo", "endCursor"}, Kind: HintCursor, Param: "after", Require: []string{"data", "pageInfo", "hasNextPage"}},

	{Path: []string{"nextToken"}, Kind: HintToken, Param: "nextToken"},
	{Path: []string{"next_token"}, Kind: HintToken, Param: "next_token"},
	{Path: []string{"nextPageToken"}, Kind: HintToken, Param: "pageToken"},
	{Path: []string{"next_page_token"}, Kind: HintToken, Param: "page_token"},
	{Path: []string{"continuation"}, Kind: HintToken, Param: "continuation"},
	{Path: []string{"continuationToken"}, Kind: HintToken, Param: "continuationToken"},
}

// PageRules give the page-increment fallback.
var PageRules = []PageRule{
	{Current: []string{"pagination", "currentPage"}, Total: []string{"pagination", "totalPages"}},
	{Current: []string{"pagination", "current_page"}, Total: []string{"pagination", "total_pages"}},
	{Current: []string{"pagination", "current_page"}, Total: []string{"pagination", "last_page"}},
	{Current: []string{"pagination", "page"}, Total: []string{"pagination", "pages"}},
	{Current: []string{"meta", "current_page"}, Total: []string{"meta", "last_page"}},
	{Current: []string{"meta", "page"}, Total: []string{"meta", "totalPages"}},
	{Current: []string{"current_page"}, Total: []string{"last_page"}},
	{Current: []string{"currentPage"}, Total: []string{"totalPages"}},
	{Current: []string{"page"}, Total: []string{"total_pages"}},
	{Current: []string{"page"}, Total: []string{"totalPages"}},
}

// EndMarkers are boolean paths that, when false, say the payload is the
// last page.
var EndMarkers = [][]string{
	{"has_more"},
	{"hasMore"},
	{"hasNextPage"},
	{"has_next"},
	{"pageInfo", "hasNextPage"},
	{"data", "pageInfo", "hasNextPage"},
	{"pagination", "has_more"},
	{"pagination", "hasMore"},
	{"pagination", "hasNextPage"},
	{"meta", "has_more"},
	{"paging", "has_more"},
}

// CursorParams are query parameters an endpoint may already use for a
// cursor or token. An existing one is reused over the rule's Param.
var CursorParams = []string{
	"cursor", "after", "next_cursor", "nextCursor", "starting_after",
	"pageToken", "page_token", "nextToken", "next_token", "token",
	"continuation", "continuationToken",
}

// APICursor reads pagination hints from captured JSON payloads.
type APICursor struct {
	Rules      []PayloadRule
	PageRules  []PageRule
	EndMarkers [][]string
}

// NewAPICursor creates an APICursor with the default rule tables.
func NewAPICursor() *APICursor {
	return &APICursor{Rules: PayloadRules, PageRules: PageRules, EndMarkers: EndMarkers}
}

// Name returns the strategy identifier.
func (s *APICursor) Name() pagewalk.StrategyName {
	return pagewalk.StrategyAPICursor
}

// Detect walks the captured payloads newest first. The first payload that
// carries any pagination hint decides: an end marker yields no candidate,
// otherwise the highest-precedence hint becomes a Fetch candidate.
// Malformed payloads are skipped.
func (s *APICursor) Detect(pc pagewalk.PageContext) *pagewalk.Candidate {
	payloads := pc.Payloads()
	for i := len(payloads) - 1; i >= 0; i-- {
		c, decided := s.detectPayload(pc, payloads[i])
		if decided {
			return c
		}
	}
	return nil
}

type hint struct {
	kind       HintKind
	value      string
	param      string
	page       int
	confidence float64
}

func (s *APICursor) detectPayload(pc pagewalk.PageContext, p pagewalk.Payload) (*pagewalk.Candidate, bool) {
	if _, dataType, _, err := jsonparser.Get(p.Body); err != nil || dataType != jsonparser.Object {
		return nil, false
	}
	if s.lastPage(p.Body) {
		return nil, true
	}

	h, ok := s.bestHint(p.Body)
	if !ok {
		return nil, false
	}

	var next string
	c := &pagewalk.Candidate{Strategy: s.Name(), Confidence: h.confidence}
	switch {
	case h.page > 0:
		next = withEndpointParam(p.URL, PageParams, "page", strconv.Itoa(h.page))
	case h.kind == HintURL:
		next = pagewalk.ResolveURL(pc.URL(), h.value)
	default:
		next = withEndpointParam(p.URL, CursorParams, h.param, h.value)
		if h.kind == HintToken {
			c.NextToken = h.value
		} else {
			c.NextCursor = h.value
		}
	}
	if !isHTTP(next) {
		return nil, false
	}
	c.Action = pagewalk.Fetch(next)
	c.NextURL = next
	return c, true
}

// bestHint applies the rule tables in precedence order: explicit URLs, then
// cursors and tokens, then page increments.
func (s *APICursor) bestHint(body []byte) (hint, bool) {
	var cursor, page *hint
	for _, rule := range s.Rules {
		if len(rule.Require) > 0 {
			if v, err := jsonparser.GetBoolean(body, rule.Require...); err != nil || !v {
				continue
			}
		}
		value, dataType, _, err := jsonparser.Get(body, rule.Path...)
		if err != nil {
			continue
		}
		switch dataType {
		case jsonparser.String:
			str, err := jsonparser.ParseString(value)
			if err != nil || str == "" {
				continue
			}
			if rule.Kind == HintURL {
				if looksLikeURL(str) {
					return hint{kind: HintURL, value: str, confidence: NextURLConfidence}, true
				}
				if n, err := strconv.Atoi(str); err == nil {
					if page == nil && n > 0 {
						page = &hint{page: n, confidence: PageConfidence}
					}
					continue
				}
				if cursor == nil {
					cursor = &hint{kind: HintCursor, value: str, param: "cursor", confidence: CursorConfidence}
				}
				continue
			}
			if cursor == nil {
				cursor = &hint{kind: rule.Kind, value: str, param: rule.Param, confidence: CursorConfidence}
			}
		case jsonparser.Number:
			n, err := jsonparser.ParseInt(value)
			if err != nil || n <= 0 {
				continue
			}
			if rule.Kind == HintURL {
				if page == nil {
					page = &hint{page: int(n), confidence: PageConfidence}
				}
				continue
			}
			if cursor == nil {
				cursor = &hint{kind: rule.Kind, value: string(value), param: rule.Param, confidence: CursorConfidence}
			}
		}
	}
	if cursor != nil {
		return *cursor, true
	}
	if page != nil {
		return *page, true
	}
	for _, rule := range s.PageRules {
		current, err := jsonparser.GetInt(body, rule.Current...)
		if err != nil {
			continue
		}
		total, err := jsonparser.GetInt(body, rule.Total...)
		if err != nil {
			continue
		}
		if current < total {
			return hint{page: int(current) + 1, confidence: PageConfidence}, true
		}
	}
	return hint{}, false
}

// lastPage reports whether an end marker is false or a page rule shows the
// current page at its bound.
func (s *APICursor) lastPage(body []byte) bool {
	for _, path := range s.EndMarkers {
		if v, err := jsonparser.GetBoolean(body, path...); err == nil && !v {
			return true
		}
	}
	for _, rule := range s.PageRules {
		current, err := jsonparser.GetInt(body, rule.Current...)
		if err != nil {
			continue
		}
		total, err := jsonparser.GetInt(body, rule.Total...)
		if err != nil {
			continue
		}
		return current >= total
	}
	return false
}

// withEndpointParam sets a query parameter on the endpoint URL, reusing the
// first of known that the endpoint already carries.
func withEndpointParam(endpoint string, known []string, fallback, value string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	query := u.Query()
	param := fallback
	for _, k := range known {
		if query.Has(k) {
			param = k
			break
		}
	}
	return withQueryParam(u, param, value)
}

func looksLikeURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.IsAbs() {
		return u.Scheme == "http" || u.Scheme == "https"
	}
	switch s[0] {
	case '/', '.':
		return u.Path != ""
	case '?':
		return u.RawQuery != ""
	}
	return false
}
