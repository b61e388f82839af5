// Package bloom counts distinct items using Bloom filters.
package bloom

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/pagewalk"
)

var _ pagewalk.ItemSet = (*ItemSet)(nil)

// Default sizing of an ItemSet.
const (
	DefaultExpectedItems = 100_000
	DefaultFalsePositive = 0.001
)

// ItemSet remembers item IDs in a Bloom filter. Add may report a new ID as
// already seen at the configured false positive rate; it never reports a
// seen ID as new. It is safe for concurrent use.
type ItemSet struct {
	mu sync.Mutex
	f  *bloom.BloomFilter
}

// NewItemSet creates an ItemSet sized for n expected items with the given
// false positive rate.
func NewItemSet(n uint, fpRate float64) *ItemSet {
	return &ItemSet{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// NewDefaultItemSet creates an ItemSet with the default sizing.
func NewDefaultItemSet() pagewalk.ItemSet {
	return NewItemSet(DefaultExpectedItems, DefaultFalsePositive)
}

// Add records id and reports whether it was not seen before.
func (s *ItemSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.f.TestAndAddString(id)
}

// Test reports whether id might have been added.
func (s *ItemSet) Test(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.TestString(id)
}

// EstimatedCount returns the approximate number of distinct items added.
func (s *ItemSet) EstimatedCount() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint(s.f.ApproximatedSize())
}
