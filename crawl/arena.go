package crawl

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/leadscout"
)

// Frontier sizing for Bloom filter deduplication.
const (
	frontierExpectedURLs      = 10000
	frontierFalsePositiveRate = 0.001
)

// Arena holds the in-memory crawl state of active domains and checkpoints it
// to a CrawlStateService. A domain can be held by one crawl at a time.
type Arena struct {
	store leadscout.CrawlStateService

	mu     sync.Mutex
	active map[string]*DomainState
}

// NewArena creates an Arena backed by store.
func NewArena(store leadscout.CrawlStateService) *Arena {
	return &Arena{
		store:  store,
		active: make(map[string]*DomainState),
	}
}

// Acquire loads the state of a domain from its last checkpoint, or starts a
// fresh one. A completed checkpoint starts the next pass, keeping the URL and
// content hashes so unchanged pages are not stored again.
// Returns ECONFLICT if the domain is already held and ECORRUPT if the
// checkpoint cannot be read.
func (a *Arena) Acquire(ctx context.Context, domain string) (*DomainState, error) {
	a.mu.Lock()
	if _, ok := a.active[domain]; ok {
		a.mu.Unlock()
		return nil, leadscout.Errorf(leadscout.ECONFLICT, "crawl of %q already active", domain)
	}
	// Reserve the slot while loading.
	a.active[domain] = nil
	a.mu.Unlock()

	ds, err := a.load(ctx, domain)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		delete(a.active, domain)
		return nil, err
	}
	a.active[domain] = ds
	return ds, nil
}

func (a *Arena) load(ctx context.Context, domain string) (*DomainState, error) {
	state, err := a.store.LoadCrawlState(ctx, domain)
	switch {
	case leadscout.ErrorCode(err) == leadscout.ENOTFOUND:
		state = &leadscout.CrawlState{Domain: domain, Pass: 1}
	case err != nil:
		return nil, err
	case state.Completed:
		state = &leadscout.CrawlState{
			Domain:        domain,
			Pass:          state.Pass + 1,
			URLHashes:     state.URLHashes,
			ContentHashes: state.ContentHashes,
		}
	}
	return restore(state), nil
}

// Checkpoint saves a snapshot of the domain's state.
func (a *Arena) Checkpoint(ctx context.Context, ds *DomainState) error {
	return a.store.SaveCrawlState(ctx, ds.Snapshot())
}

// Release checkpoints the domain one last time and frees it for the next
// crawl. The domain is freed even if the checkpoint fails.
func (a *Arena) Release(ctx context.Context, ds *DomainState) error {
	defer func() {
		a.mu.Lock()
		delete(a.active, ds.domain)
		a.mu.Unlock()
	}()
	return a.Checkpoint(ctx, ds)
}

// Active returns the domains currently held, sorted.
func (a *Arena) Active() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	domains := make([]string, 0, len(a.active))
	for d := range a.active {
		domains = append(domains, d)
	}
	slices.Sort(domains)
	return domains
}

// DomainState is the live crawl state of one domain. Entries popped with Next
// stay in flight until they are visited, failed or requeued; snapshots put
// in-flight entries back at the head of the frontier.
type DomainState struct {
	domain string

	mu                  sync.Mutex
	pass                int
	frontier            *Frontier
	inflight            []leadscout.FrontierEntry
	visited             []string
	visitedSet          map[string]struct{}
	failed              []string
	retries             map[string]int
	urlHashes           map[string]string
	contentHashes       map[string]struct{}
	consecutiveFailures int
	completed           bool
}

func restore(state *leadscout.CrawlState) *DomainState {
	ds := &DomainState{
		domain:        state.Domain,
		pass:          state.Pass,
		frontier:      NewFrontier(max(frontierExpectedURLs, uint(4*len(state.Visited))), frontierFalsePositiveRate),
		visitedSet:    make(map[string]struct{}, len(state.Visited)),
		retries:       make(map[string]int),
		urlHashes:     make(map[string]string),
		contentHashes: make(map[string]struct{}),
		failed:        append([]string(nil), state.Failed...),

		consecutiveFailures: state.ConsecutiveFailures,
		completed:           state.Completed,
	}
	for _, u := range state.Visited {
		if _, ok := ds.visitedSet[u]; ok {
			continue
		}
		ds.visitedSet[u] = struct{}{}
		ds.visited = append(ds.visited, u)
		ds.frontier.Mark(u)
	}
	for _, e := range state.Frontier {
		if _, ok := ds.visitedSet[e.URL]; !ok {
			ds.frontier.Push(e)
		}
	}
	for u, n := range state.Retries {
		ds.retries[u] = n
	}
	for u, h := range state.URLHashes {
		ds.urlHashes[u] = h
	}
	for _, h := range state.ContentHashes {
		ds.contentHashes[h] = struct{}{}
	}
	return ds
}

// Domain returns the domain name.
func (ds *DomainState) Domain() string { return ds.domain }

// Pass returns the traversal number, starting at 1.
func (ds *DomainState) Pass() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.pass
}

// Enqueue queues a URL unless it was already visited or queued.
func (ds *DomainState) Enqueue(entry leadscout.FrontierEntry) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if _, ok := ds.visitedSet[entry.URL]; ok {
		return false
	}
	return ds.frontier.Push(entry)
}

// Next pops the next entry and marks it in flight.
func (ds *DomainState) Next() (leadscout.FrontierEntry, bool) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	e, ok := ds.frontier.Pop()
	if ok {
		ds.inflight = append(ds.inflight, e)
	}
	return e, ok
}

// Requeue returns an in-flight entry to the head of the frontier.
func (ds *DomainState) Requeue(entry leadscout.FrontierEntry) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.land(entry.URL)
	ds.frontier.Requeue(entry)
}

// Visit marks an in-flight URL as successfully fetched.
func (ds *DomainState) Visit(url string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.land(url)
	ds.markVisited(url)
	ds.consecutiveFailures = 0
}

// Fail marks an in-flight URL as failed and returns the number of
// consecutive failures so far. Failed URLs count as visited for the pass.
func (ds *DomainState) Fail(url string) int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.land(url)
	ds.markVisited(url)
	ds.failed = append(ds.failed, url)
	ds.retries[url]++
	ds.consecutiveFailures++
	return ds.consecutiveFailures
}

// Drop removes an in-flight URL without visiting or failing it. The URL
// stays known to the frontier, so it is not queued again in this session.
func (ds *DomainState) Drop(url string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.land(url)
}

func (ds *DomainState) land(url string) {
	ds.inflight = slices.DeleteFunc(ds.inflight, func(e leadscout.FrontierEntry) bool {
		return e.URL == url
	})
}

func (ds *DomainState) markVisited(url string) {
	if _, ok := ds.visitedSet[url]; ok {
		return
	}
	ds.visitedSet[url] = struct{}{}
	ds.visited = append(ds.visited, url)
}

// Visited returns the number of URLs visited in this pass.
func (ds *DomainState) Visited() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return len(ds.visited)
}

// Pending returns the number of queued entries, excluding in-flight ones.
func (ds *DomainState) Pending() int {
	return ds.frontier.Len()
}

// Unchanged reports whether hash is already stored for url or for any other
// URL of the domain.
func (ds *DomainState) Unchanged(url, hash string) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.urlHashes[url] == hash {
		return true
	}
	_, ok := ds.contentHashes[hash]
	return ok
}

// RecordContent remembers hash as the stored content of url.
func (ds *DomainState) RecordContent(url, hash string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.urlHashes[url] = hash
	ds.contentHashes[hash] = struct{}{}
}

// Complete marks the pass finished.
func (ds *DomainState) Complete() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.completed = true
}

// Snapshot returns the persistable form of the state. In-flight entries are
// placed at the head of the frontier so a resumed crawl fetches them again.
func (ds *DomainState) Snapshot() *leadscout.CrawlState {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	frontier := append([]leadscout.FrontierEntry(nil), ds.inflight...)
	frontier = append(frontier, ds.frontier.Entries()...)

	hashes := make([]string, 0, len(ds.contentHashes))
	for h := range ds.contentHashes {
		hashes = append(hashes, h)
	}
	slices.Sort(hashes)

	urlHashes := make(map[string]string, len(ds.urlHashes))
	for u, h := range ds.urlHashes {
		urlHashes[u] = h
	}
	retries := make(map[string]int, len(ds.retries))
	for u, n := range ds.retries {
		retries[u] = n
	}

	return &leadscout.CrawlState{
		Domain:              ds.domain,
		Pass:                ds.pass,
		Visited:             append([]string(nil), ds.visited...),
		Frontier:            frontier,
		Failed:              append([]string(nil), ds.failed...),
		Retries:             retries,
		Completed:           ds.completed,
		URLHashes:           urlHashes,
		ContentHashes:       hashes,
		ConsecutiveFailures: ds.consecutiveFailures,
		UpdatedAt:           time.Now().UTC(),
	}
}

// ResetFailures clears the consecutive failure count, giving a resumed crawl
// a fresh failure budget.
func (ds *DomainState) ResetFailures() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.consecutiveFailures = 0
}
