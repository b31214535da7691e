package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.CatalogModel      = (*CatalogModel)(nil)
	_ leadscout.ExtractionService = (*ExtractionService)(nil)
)

// CatalogModel is a mock implementation of leadscout.CatalogModel.
type CatalogModel struct {
	ModelFn           func() string
	ExtractProfileFn  func(ctx context.Context, domain, content string) (*leadscout.CompanyProfile, error)
	ExtractProductsFn func(ctx context.Context, domain, industry, content string) ([]*leadscout.Product, error)
}

func (m *CatalogModel) Model() string {
	return m.ModelFn()
}

func (m *CatalogModel) ExtractProfile(ctx context.Context, domain, content string) (*leadscout.CompanyProfile, error) {
	return m.ExtractProfileFn(ctx, domain, content)
}

func (m *CatalogModel) ExtractProducts(ctx context.Context, domain, industry, content string) ([]*leadscout.Product, error) {
	return m.ExtractProductsFn(ctx, domain, industry, content)
}

// ExtractionService is a mock implementation of leadscout.ExtractionService.
type ExtractionService struct {
	SaveExtractionFn  func(ctx context.Context, result *leadscout.ExtractionResult) error
	FindExtractionFn  func(ctx context.Context, domain string) (*leadscout.ExtractionResult, error)
	FindExtractionsFn func(ctx context.Context, filter leadscout.ExtractionFilter) ([]*leadscout.ExtractionResult, error)
}

func (s *ExtractionService) SaveExtraction(ctx context.Context, result *leadscout.ExtractionResult) error {
	return s.SaveExtractionFn(ctx, result)
}

func (s *ExtractionService) FindExtraction(ctx context.Context, domain string) (*leadscout.ExtractionResult, error) {
	return s.FindExtractionFn(ctx, domain)
}

func (s *ExtractionService) FindExtractions(ctx context.Context, filter leadscout.ExtractionFilter) ([]*leadscout.ExtractionResult, error) {
	return s.FindExtractionsFn(ctx, filter)
}
