package crawl

import (
	"strings"
	"sync"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/bloom"
)

// Compile-time interface verification.
var _ leadscout.URLFrontier = (*Frontier)(nil)

// Frontier is an in-memory FIFO URL frontier with Bloom filter deduplication.
// Popping in insertion order yields breadth-first traversal when callers push
// entries of depth d+1 only while processing depth d.
// It is safe for concurrent use by multiple goroutines.
type Frontier struct {
	mu    sync.Mutex
	seen  *bloom.Filter
	queue []leadscout.FrontierEntry
}

// NewFrontier creates a new Frontier sized for n expected URLs
// with the given false positive rate for deduplication.
func NewFrontier(n uint, fpRate float64) *Frontier {
	return &Frontier{seen: bloom.NewFilter(n, fpRate)}
}

// Push adds an entry to the frontier.
// Returns false if the URL has already been seen. Fragments are stripped
// before deduplication.
func (f *Frontier) Push(entry leadscout.FrontierEntry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry.URL = stripFragment(entry.URL)
	if f.seen.Test(entry.URL) {
		return false
	}
	f.seen.Add(entry.URL)
	f.queue = append(f.queue, entry)
	return true
}

// Pop returns the oldest entry.
func (f *Frontier) Pop() (leadscout.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return leadscout.FrontierEntry{}, false
	}
	entry := f.queue[0]
	f.queue[0] = leadscout.FrontierEntry{}
	f.queue = f.queue[1:]
	return entry, true
}

// Requeue puts an entry back at the head of the queue without consulting the
// seen filter. It is used for entries that were popped but never finished.
func (f *Frontier) Requeue(entry leadscout.FrontierEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append([]leadscout.FrontierEntry{entry}, f.queue...)
}

// Len returns the number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen returns true if the URL has been queued or marked.
func (f *Frontier) Seen(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen.Test(stripFragment(rawURL))
}

// Mark records a URL as seen without queueing it.
func (f *Frontier) Mark(rawURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen.Add(stripFragment(rawURL))
}

// Entries returns a copy of the queued entries in pop order.
func (f *Frontier) Entries() []leadscout.FrontierEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]leadscout.FrontierEntry(nil), f.queue...)
}

func stripFragment(url string) string {
	if idx := strings.Index(url, "#"); idx != -1 {
		return url[:idx]
	}
	return url
}
