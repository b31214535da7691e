package vet_test

import (
	"context"
	"slices"
	"sync"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/mock"
)

type memDomains struct {
	mu      sync.Mutex
	domains map[string]*leadscout.Domain
}

func newMemDomains(names ...string) *memDomains {
	m := &memDomains{domains: make(map[string]*leadscout.Domain)}
	for _, n := range names {
		m.domains[n] = &leadscout.Domain{Name: n, VetState: leadscout.VetUnvetted}
	}
	return m
}

func (m *memDomains) get(name string) leadscout.Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.domains[name]
}

func (m *memDomains) set(name string, state leadscout.VetState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.domains[name].VetState = state
}

func (m *memDomains) service() *mock.DomainService {
	return &mock.DomainService{
		FindDomainByNameFn: func(_ context.Context, name string) (*leadscout.Domain, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			d, ok := m.domains[name]
			if !ok {
				return nil, leadscout.Errorf(leadscout.ENOTFOUND, "domain %q not found", name)
			}
			cp := *d
			return &cp, nil
		},
		FindDomainsFn: func(_ context.Context, f leadscout.DomainFilter) ([]*leadscout.Domain, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			var out []*leadscout.Domain
			for _, d := range m.domains {
				if f.VetState == nil || d.VetState == *f.VetState {
					cp := *d
					out = append(out, &cp)
				}
			}
			slices.SortFunc(out, func(a, b *leadscout.Domain) int {
				if a.Name < b.Name {
					return -1
				}
				return 1
			})
			return out, nil
		},
		SetVettingFn: func(_ context.Context, name string, o leadscout.VetOutcome) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			d := m.domains[name]
			if d.VetState.Decided() {
				return leadscout.Errorf(leadscout.ECONFLICT, "already decided")
			}
			d.VetState, d.Decision, d.VetStage, d.VetScore, d.VetRationale = o.State, o.Decision, o.Stage, o.Score, o.Rationale
			return nil
		},
		ResetVettingFn: func(_ context.Context, name string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			m.domains[name] = &leadscout.Domain{Name: name, VetState: leadscout.VetUnvetted}
			return nil
		},
	}
}

type recordKey struct {
	domain, hash string
	stage        leadscout.VetStage
}

type memRecords struct {
	mu      sync.Mutex
	records map[recordKey]*leadscout.VettingRecord
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[recordKey]*leadscout.VettingRecord)}
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memRecords) service() *mock.VettingService {
	return &mock.VettingService{
		SaveVettingFn: func(_ context.Context, rec *leadscout.VettingRecord) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			cp := *rec
			m.records[recordKey{rec.Domain, rec.ContentHash, rec.Stage}] = &cp
			return nil
		},
		FindVettingFn: func(_ context.Context, domain, hash string, stage leadscout.VetStage) (*leadscout.VettingRecord, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			rec, ok := m.records[recordKey{domain, hash, stage}]
			if !ok {
				return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no record")
			}
			cp := *rec
			return &cp, nil
		},
		DeleteVettingFn: func(_ context.Context, domain string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			for k := range m.records {
				if k.domain == domain {
					delete(m.records, k)
				}
			}
			return nil
		},
	}
}

// sitePages serves fixed HTML per URL; missing URLs fail permanently.
func sitePages(pages map[string]string) *mock.Fetcher {
	var mu sync.Mutex
	return &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			html, ok := pages[url]
			if !ok {
				return "", leadscout.Errorf(leadscout.EPERMANENT, "HTTP 404 for %s", url)
			}
			return html, nil
		},
	}
}

const (
	shopHTML = `<html><head><script src="https://cdn.shopify.com/s/app.js"></script></head>
		<body><h1>Shop goalkeeper gloves</h1><p>Pro goalkeeper gloves from £25.00.</p>
		<p>Goalkeeper gloves for every keeper.</p><button>Add to cart</button></body></html>`

	gardenHTML = `<html><body><h1>Garden tools</h1><p>Buy spades and rakes. Price £10.</p></body></html>`

	poetryHTML = `<html><body><p>We write poetry about the sea and the wind.</p></body></html>`
)
