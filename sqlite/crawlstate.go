package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/fwojciec/leadscout"
)

// Compile-time interface verification.
var _ leadscout.CrawlStateService = (*CrawlStateService)(nil)

// CrawlStateService implements leadscout.CrawlStateService using SQLite.
// Each snapshot is stored as a single JSON document so a checkpoint is one
// atomic row write.
type CrawlStateService struct {
	db *DB
}

// NewCrawlStateService creates a new CrawlStateService.
func NewCrawlStateService(db *DB) *CrawlStateService {
	return &CrawlStateService{db: db}
}

// LoadCrawlState returns the last checkpoint of a domain.
func (s *CrawlStateService) LoadCrawlState(ctx context.Context, domain string) (*leadscout.CrawlState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT state FROM crawl_states WHERE domain = ?", domain).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no crawl state for %q", domain)
	}
	if err != nil {
		return nil, err
	}

	var state leadscout.CrawlState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, leadscout.Errorf(leadscout.ECORRUPT, "crawl state for %q is unreadable: %v", domain, err)
	}
	if state.Domain != domain {
		return nil, leadscout.Errorf(leadscout.ECORRUPT, "crawl state for %q belongs to %q", domain, state.Domain)
	}
	return &state, nil
}

// SaveCrawlState replaces the checkpoint of a domain.
func (s *CrawlStateService) SaveCrawlState(ctx context.Context, state *leadscout.CrawlState) error {
	if state.Domain == "" {
		return leadscout.Errorf(leadscout.EINVALID, "crawl state domain required")
	}
	state.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crawl_states (domain, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, state.Domain, string(raw), formatTime(state.UpdatedAt))
	return err
}

// DeleteCrawlState removes the checkpoint of a domain.
func (s *CrawlStateService) DeleteCrawlState(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM crawl_states WHERE domain = ?", domain)
	return err
}
