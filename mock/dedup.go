package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.DedupService  = (*DedupService)(nil)
	_ leadscout.HomepageProbe = (*HomepageProbe)(nil)
)

// DedupService is a mock implementation of leadscout.DedupService.
type DedupService struct {
	SaveDedupFn      func(ctx context.Context, rec *leadscout.DedupRecord) error
	FindDedupsFn     func(ctx context.Context, candidate string) ([]*leadscout.DedupRecord, error)
	FindFeaturesFn   func(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error)
	SaveFeaturesFn   func(ctx context.Context, f *leadscout.HomepageFeatures) error
	FindSignaturesFn func(ctx context.Context) ([]*leadscout.DedupSignature, error)
	SaveSignatureFn  func(ctx context.Context, sig *leadscout.DedupSignature) error
}

func (s *DedupService) SaveDedup(ctx context.Context, rec *leadscout.DedupRecord) error {
	return s.SaveDedupFn(ctx, rec)
}

func (s *DedupService) FindDedups(ctx context.Context, candidate string) ([]*leadscout.DedupRecord, error) {
	return s.FindDedupsFn(ctx, candidate)
}

func (s *DedupService) FindFeatures(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error) {
	return s.FindFeaturesFn(ctx, domain)
}

func (s *DedupService) SaveFeatures(ctx context.Context, f *leadscout.HomepageFeatures) error {
	return s.SaveFeaturesFn(ctx, f)
}

func (s *DedupService) FindSignatures(ctx context.Context) ([]*leadscout.DedupSignature, error) {
	return s.FindSignaturesFn(ctx)
}

func (s *DedupService) SaveSignature(ctx context.Context, sig *leadscout.DedupSignature) error {
	return s.SaveSignatureFn(ctx, sig)
}

// HomepageProbe is a mock implementation of leadscout.HomepageProbe.
type HomepageProbe struct {
	FeaturesFn func(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error)
}

func (p *HomepageProbe) Features(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error) {
	return p.FeaturesFn(ctx, domain)
}
