package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.Fetcher        = (*Fetcher)(nil)
	_ leadscout.RobotsPolicy   = (*RobotsPolicy)(nil)
	_ leadscout.SitemapService = (*SitemapService)(nil)
	_ leadscout.DomainLimiter  = (*DomainLimiter)(nil)
)

// Fetcher is a mock implementation of leadscout.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

// RobotsPolicy is a mock implementation of leadscout.RobotsPolicy.
type RobotsPolicy struct {
	AllowedFn func(ctx context.Context, url string) (bool, error)
}

func (p *RobotsPolicy) Allowed(ctx context.Context, url string) (bool, error) {
	return p.AllowedFn(ctx, url)
}

// SitemapService is a mock implementation of leadscout.SitemapService.
type SitemapService struct {
	DiscoverURLsFn func(ctx context.Context, baseURL string) ([]string, error)
}

func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	return s.DiscoverURLsFn(ctx, baseURL)
}

// DomainLimiter is a mock implementation of leadscout.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return l.WaitFn(ctx, domain)
}
