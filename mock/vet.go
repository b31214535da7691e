package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.SoftProber     = (*SoftProber)(nil)
	_ leadscout.SoftVetService = (*SoftVetService)(nil)
	_ leadscout.VettingService = (*VettingService)(nil)
	_ leadscout.Classifier     = (*Classifier)(nil)
)

// SoftProber is a mock implementation of leadscout.SoftProber.
type SoftProber struct {
	ProbeFn func(ctx context.Context, domain string) (*leadscout.SoftSignals, error)
}

func (p *SoftProber) Probe(ctx context.Context, domain string) (*leadscout.SoftSignals, error) {
	return p.ProbeFn(ctx, domain)
}

// SoftVetService is a mock implementation of leadscout.SoftVetService.
type SoftVetService struct {
	FindSignalsFn func(ctx context.Context, domain string) (*leadscout.SoftSignals, error)
	SaveSignalsFn func(ctx context.Context, domain string, signals *leadscout.SoftSignals) error
}

func (s *SoftVetService) FindSignals(ctx context.Context, domain string) (*leadscout.SoftSignals, error) {
	return s.FindSignalsFn(ctx, domain)
}

func (s *SoftVetService) SaveSignals(ctx context.Context, domain string, signals *leadscout.SoftSignals) error {
	return s.SaveSignalsFn(ctx, domain, signals)
}

// VettingService is a mock implementation of leadscout.VettingService.
type VettingService struct {
	SaveVettingFn   func(ctx context.Context, rec *leadscout.VettingRecord) error
	FindVettingFn   func(ctx context.Context, domain, contentHash string, stage leadscout.VetStage) (*leadscout.VettingRecord, error)
	FindVettingsFn  func(ctx context.Context) ([]*leadscout.VettingRecord, error)
	DeleteVettingFn func(ctx context.Context, domain string) error
}

func (s *VettingService) SaveVetting(ctx context.Context, rec *leadscout.VettingRecord) error {
	return s.SaveVettingFn(ctx, rec)
}

func (s *VettingService) FindVetting(ctx context.Context, domain, contentHash string, stage leadscout.VetStage) (*leadscout.VettingRecord, error) {
	return s.FindVettingFn(ctx, domain, contentHash, stage)
}

func (s *VettingService) FindVettings(ctx context.Context) ([]*leadscout.VettingRecord, error) {
	return s.FindVettingsFn(ctx)
}

func (s *VettingService) DeleteVetting(ctx context.Context, domain string) error {
	return s.DeleteVettingFn(ctx, domain)
}

// Classifier is a mock implementation of leadscout.Classifier.
type Classifier struct {
	ClassifyFn func(ctx context.Context, domain, industry, content string) (*leadscout.Classification, error)
}

func (c *Classifier) Classify(ctx context.Context, domain, industry, content string) (*leadscout.Classification, error) {
	return c.ClassifyFn(ctx, domain, industry, content)
}
