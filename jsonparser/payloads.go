// Package jsonparser works with JSON payloads captured from page traffic,
// using github.com/buger/jsonparser for allocation-free path lookups.
package jsonparser

import (
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/buger/jsonparser"
	"github.com/fwojciec/pagewalk"
)

// Ensure PayloadStore implements pagewalk.PayloadStore at compile time.
var _ pagewalk.PayloadStore = (*PayloadStore)(nil)

// DefaultMaxEndpoints bounds the number of endpoints a PayloadStore retains.
const DefaultMaxEndpoints = 32

// PayloadStore keeps the most recent JSON payload per endpoint. An endpoint
// is the scheme, host and path of the request URL, so successive pages of
// one API replace each other. It is safe for concurrent use.
type PayloadStore struct {
	// MaxEndpoints bounds retained endpoints; the least recently updated is
	// evicted first. Zero means DefaultMaxEndpoints.
	MaxEndpoints int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	mu       sync.Mutex
	payloads map[string]pagewalk.Payload
	seq      map[string]uint64
	next     uint64
}

// NewPayloadStore creates an empty PayloadStore.
func NewPayloadStore() *PayloadStore {
	return &PayloadStore{}
}

// Observe records body as a payload from rawURL when it is a JSON object or
// array. Anything else is dropped and Observe reports false.
func (s *PayloadStore) Observe(rawURL string, body []byte) bool {
	_, dataType, _, err := jsonparser.Get(body)
	if err != nil || (dataType != jsonparser.Object && dataType != jsonparser.Array) {
		return false
	}
	s.Record(pagewalk.Payload{URL: rawURL, Body: body})
	return true
}

// Record stores p, replacing any earlier payload from the same endpoint.
func (s *PayloadStore) Record(p pagewalk.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.payloads == nil {
		s.payloads = make(map[string]pagewalk.Payload)
		s.seq = make(map[string]uint64)
	}
	if p.ReceivedAt.IsZero() {
		p.ReceivedAt = s.now()
	}
	key := endpoint(p.URL)
	s.next++
	s.payloads[key] = p
	s.seq[key] = s.next

	limit := s.MaxEndpoints
	if limit <= 0 {
		limit = DefaultMaxEndpoints
	}
	for len(s.payloads) > limit {
		oldest, lowest := "", uint64(0)
		for k, n := range s.seq {
			if oldest == "" || n < lowest {
				oldest, lowest = k, n
			}
		}
		delete(s.payloads, oldest)
		delete(s.seq, oldest)
	}
}

// Latest returns the retained payloads, oldest first.
func (s *PayloadStore) Latest() []pagewalk.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.payloads))
	for k := range s.payloads {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return s.seq[keys[i]] < s.seq[keys[j]] })

	out := make([]pagewalk.Payload, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.payloads[k])
	}
	return out
}

// Reset discards all payloads.
func (s *PayloadStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = nil
	s.seq = nil
}

func (s *PayloadStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// endpoint strips the query and fragment from rawURL.
func endpoint(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Scheme + "://" + u.Host + u.Path
}
