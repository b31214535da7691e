package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.PageService       = (*PageService)(nil)
	_ leadscout.CrawlStateService = (*CrawlStateService)(nil)
)

// PageService is a mock implementation of leadscout.PageService.
type PageService struct {
	CreatePageFn   func(ctx context.Context, page *leadscout.PageRecord) error
	LatestHashesFn func(ctx context.Context, domain string) (map[string]string, error)
	FindPagesFn    func(ctx context.Context, filter leadscout.PageFilter) ([]*leadscout.PageRecord, error)
	CountPagesFn   func(ctx context.Context, domain string) (int, error)
}

func (s *PageService) CreatePage(ctx context.Context, page *leadscout.PageRecord) error {
	return s.CreatePageFn(ctx, page)
}

func (s *PageService) LatestHashes(ctx context.Context, domain string) (map[string]string, error) {
	return s.LatestHashesFn(ctx, domain)
}

func (s *PageService) FindPages(ctx context.Context, filter leadscout.PageFilter) ([]*leadscout.PageRecord, error) {
	return s.FindPagesFn(ctx, filter)
}

func (s *PageService) CountPages(ctx context.Context, domain string) (int, error) {
	return s.CountPagesFn(ctx, domain)
}

// CrawlStateService is a mock implementation of leadscout.CrawlStateService.
type CrawlStateService struct {
	LoadCrawlStateFn   func(ctx context.Context, domain string) (*leadscout.CrawlState, error)
	SaveCrawlStateFn   func(ctx context.Context, state *leadscout.CrawlState) error
	DeleteCrawlStateFn func(ctx context.Context, domain string) error
}

func (s *CrawlStateService) LoadCrawlState(ctx context.Context, domain string) (*leadscout.CrawlState, error) {
	return s.LoadCrawlStateFn(ctx, domain)
}

func (s *CrawlStateService) SaveCrawlState(ctx context.Context, state *leadscout.CrawlState) error {
	return s.SaveCrawlStateFn(ctx, state)
}

func (s *CrawlStateService) DeleteCrawlState(ctx context.Context, domain string) error {
	return s.DeleteCrawlStateFn(ctx, domain)
}
