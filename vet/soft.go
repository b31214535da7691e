package vet

import (
	"context"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
)

var _ leadscout.SoftProber = (*SoftVetter)(nil)

// SoftVetter probes homepages for commerce signals and caches the result per
// domain.
type SoftVetter struct {
	Fetcher  leadscout.Fetcher
	Detector Detector
	Cache    leadscout.SoftVetService
	RootURL  func(domain string) string
}

// Probe returns the commerce signals of a domain's homepage. Fetch failures
// are returned and not cached.
func (v *SoftVetter) Probe(ctx context.Context, domain string) (*leadscout.SoftSignals, error) {
	if v.Cache != nil {
		s, err := v.Cache.FindSignals(ctx, domain)
		if err == nil {
			return s, nil
		}
		if leadscout.ErrorCode(err) != leadscout.ENOTFOUND {
			return nil, err
		}
	}

	root := publicsuffix.Root(domain)
	if v.RootURL != nil {
		root = v.RootURL(domain)
	}
	html, err := v.Fetcher.Fetch(ctx, root)
	if err != nil {
		return nil, err
	}

	s := v.Detector.Detect(html)
	s.CheckedAt = time.Now().UTC()
	if v.Cache != nil {
		if err := v.Cache.SaveSignals(ctx, domain, &s); err != nil {
			return nil, err
		}
	}
	return &s, nil
}
