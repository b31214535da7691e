// Package bloom provides approximate string sets backed by Bloom filters.
// The crawler uses them to remember queued URLs without holding every URL
// of a large site in memory twice.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter is an approximate set of strings. It may report a string as present
// when it was never added, never the reverse.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a filter sized for n expected items at the given false
// positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	return &Filter{f: bloom.NewWithEstimates(n, fpRate)}
}

// Add inserts s.
func (f *Filter) Add(s string) {
	f.f.AddString(s)
}

// Test reports whether s might have been added.
func (f *Filter) Test(s string) bool {
	return f.f.TestString(s)
}

// TestAndAdd reports whether s might have been added, then adds it.
func (f *Filter) TestAndAdd(s string) bool {
	return f.f.TestAndAddString(s)
}

// EstimatedCount returns the approximate number of distinct items added.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}
