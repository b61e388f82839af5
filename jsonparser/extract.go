package jsonparser

import (
	"context"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/fwojciec/pagewalk"
)

// Ensure Extractor implements pagewalk.Extractor at compile time.
var _ pagewalk.Extractor = (*Extractor)(nil)

// Default paths searched for the item list, in order. The payload root is
// tried last when it is itself an array.
var DefaultListPaths = [][]string{
	{"data", "items"},
	{"data", "results"},
	{"data", "edges"},
	{"data"},
	{"items"},
	{"results"},
	{"edges"},
	{"entries"},
	{"records"},
	{"list"},
	{"hits", "hits"},
	{"hits"},
}

var (
	idPaths = [][]string{
		{"url"}, {"link"}, {"href"}, {"permalink"}, {"id"},
		{"node", "url"}, {"node", "id"}, {"_id"},
	}
	textPaths = [][]string{
		{"title"}, {"name"}, {"text"}, {"headline"},
		{"node", "title"}, {"node", "name"}, {"_source", "title"},
	}
)

// Extractor collects items from the newest captured payload that carries an
// item list. It suits API-driven listings where the DOM is rendered from
// the same JSON.
type Extractor struct {
	// ListPaths overrides DefaultListPaths.
	ListPaths [][]string
}

// NewExtractor creates an Extractor with the default list paths.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the items of the newest payload with a non-empty list.
// Item IDs are resolved against the payload URL when they look like links.
func (e *Extractor) Extract(ctx context.Context, pc pagewalk.PageContext) (*pagewalk.ExtractedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths := e.ListPaths
	if len(paths) == 0 {
		paths = DefaultListPaths
	}

	content := &pagewalk.ExtractedContent{URL: pc.URL()}
	payloads := pc.Payloads()
	for i := len(payloads) - 1; i >= 0; i-- {
		items := extractItems(payloads[i], paths)
		if len(items) > 0 {
			content.Items = items
			break
		}
	}
	return content, nil
}

func extractItems(p pagewalk.Payload, paths [][]string) []pagewalk.Item {
	list, ok := findList(p.Body, paths)
	if !ok {
		return nil
	}
	var items []pagewalk.Item
	seen := make(map[string]bool)
	_, _ = jsonparser.ArrayEach(list, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if dataType != jsonparser.Object {
			return
		}
		id := firstScalar(value, idPaths)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		if looksLikeLink(id) {
			if resolved := pagewalk.ResolveURL(p.URL, id); resolved != "" {
				id = resolved
			}
		}
		items = append(items, pagewalk.Item{ID: id, Text: firstScalar(value, textPaths)})
	})
	return items
}

// findList returns the first non-empty array found at one of paths.
func findList(body []byte, paths [][]string) ([]byte, bool) {
	for _, path := range paths {
		value, dataType, _, err := jsonparser.Get(body, path...)
		if err != nil || dataType != jsonparser.Array {
			continue
		}
		if nonEmpty(value) {
			return value, true
		}
	}
	value, dataType, _, err := jsonparser.Get(body)
	if err == nil && dataType == jsonparser.Array && nonEmpty(value) {
		return value, true
	}
	return nil, false
}

func nonEmpty(array []byte) bool {
	n := 0
	_, _ = jsonparser.ArrayEach(array, func([]byte, jsonparser.ValueType, int, error) { n++ })
	return n > 0
}

// firstScalar returns the first string or number found at one of paths.
func firstScalar(value []byte, paths [][]string) string {
	for _, path := range paths {
		v, dataType, _, err := jsonparser.Get(value, path...)
		if err != nil {
			continue
		}
		switch dataType {
		case jsonparser.String:
			if s, err := jsonparser.ParseString(v); err == nil && s != "" {
				return s
			}
		case jsonparser.Number:
			if n, err := jsonparser.ParseInt(v); err == nil {
				return strconv.FormatInt(n, 10)
			}
			return string(v)
		}
	}
	return ""
}

func looksLikeLink(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "?") ||
		strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
