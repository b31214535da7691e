package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.DomainService = (*DomainService)(nil)
	_ leadscout.HitService    = (*HitService)(nil)
)

// DomainService is a mock implementation of leadscout.DomainService.
type DomainService struct {
	CreateDomainFn     func(ctx context.Context, d *leadscout.Domain) error
	FindDomainByNameFn func(ctx context.Context, name string) (*leadscout.Domain, error)
	FindDomainsFn      func(ctx context.Context, filter leadscout.DomainFilter) ([]*leadscout.Domain, error)
	SetVettingFn       func(ctx context.Context, name string, outcome leadscout.VetOutcome) error
	ResetVettingFn     func(ctx context.Context, name string) error
	UpdateDomainFn     func(ctx context.Context, name string, upd leadscout.DomainUpdate) (*leadscout.Domain, error)
}

func (s *DomainService) CreateDomain(ctx context.Context, d *leadscout.Domain) error {
	return s.CreateDomainFn(ctx, d)
}

func (s *DomainService) FindDomainByName(ctx context.Context, name string) (*leadscout.Domain, error) {
	return s.FindDomainByNameFn(ctx, name)
}

func (s *DomainService) FindDomains(ctx context.Context, filter leadscout.DomainFilter) ([]*leadscout.Domain, error) {
	return s.FindDomainsFn(ctx, filter)
}

func (s *DomainService) SetVetting(ctx context.Context, name string, outcome leadscout.VetOutcome) error {
	return s.SetVettingFn(ctx, name, outcome)
}

func (s *DomainService) ResetVetting(ctx context.Context, name string) error {
	return s.ResetVettingFn(ctx, name)
}

func (s *DomainService) UpdateDomain(ctx context.Context, name string, upd leadscout.DomainUpdate) (*leadscout.Domain, error) {
	return s.UpdateDomainFn(ctx, name, upd)
}

// HitService is a mock implementation of leadscout.HitService.
type HitService struct {
	CreateHitsFn func(ctx context.Context, hits []*leadscout.DiscoveredHit) error
	FindHitsFn   func(ctx context.Context, filter leadscout.HitFilter) ([]*leadscout.DiscoveredHit, error)
}

func (s *HitService) CreateHits(ctx context.Context, hits []*leadscout.DiscoveredHit) error {
	return s.CreateHitsFn(ctx, hits)
}

func (s *HitService) FindHits(ctx context.Context, filter leadscout.HitFilter) ([]*leadscout.DiscoveredHit, error) {
	return s.FindHitsFn(ctx, filter)
}
