package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var (
	_ leadscout.DomainService = (*DomainService)(nil)
	_ leadscout.HitService    = (*HitService)(nil)
)

const domainColumns = `name, sources, signals, vet_state, decision, vet_stage, vet_score, vet_rationale,
	crawl_status, crawl_pages, failure_reason, discovered_at, vetted_at, crawled_at, extracted_at, embedded_at`

// DomainService implements leadscout.DomainService using SQLite.
type DomainService struct {
	db *DB
}

// NewDomainService creates a new DomainService.
func NewDomainService(db *DB) *DomainService {
	return &DomainService{db: db}
}

// CreateDomain creates a new domain.
func (s *DomainService) CreateDomain(ctx context.Context, d *leadscout.Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}

	d.VetState = leadscout.VetUnvetted
	d.CrawlStatus = leadscout.CrawlNotStarted
	if d.DiscoveredAt.IsZero() {
		d.DiscoveredAt = time.Now().UTC()
	}
	if d.Sources == nil {
		d.Sources = []string{}
	}

	sources, err := json.Marshal(d.Sources)
	if err != nil {
		return err
	}
	signals, err := json.Marshal(d.Signals)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO domains (name, sources, signals, vet_state, crawl_status, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, d.Name, string(sources), string(signals), d.VetState, d.CrawlStatus, formatTime(d.DiscoveredAt))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return leadscout.Errorf(leadscout.ECONFLICT, "domain %q already exists", d.Name)
	}
	return nil
}

// FindDomainByName retrieves a domain by name.
func (s *DomainService) FindDomainByName(ctx context.Context, name string) (*leadscout.Domain, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+domainColumns+" FROM domains WHERE name = ?", name)
	d, err := scanDomain(row)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "domain %q not found", name)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// FindDomains retrieves domains matching the filter, oldest first.
func (s *DomainService) FindDomains(ctx context.Context, filter leadscout.DomainFilter) ([]*leadscout.Domain, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + domainColumns + " FROM domains WHERE 1=1")

	if filter.Name != nil {
		query.WriteString(" AND name = ?")
		args = append(args, *filter.Name)
	}
	if filter.VetState != nil {
		query.WriteString(" AND vet_state = ?")
		args = append(args, *filter.VetState)
	}
	if filter.CrawlStatus != nil {
		query.WriteString(" AND crawl_status = ?")
		args = append(args, *filter.CrawlStatus)
	}

	query.WriteString(" ORDER BY discovered_at ASC, name ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []*leadscout.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// SetVetting records the outcome of a vetting pass. Only undecided domains
// accept a new outcome.
func (s *DomainService) SetVetting(ctx context.Context, name string, outcome leadscout.VetOutcome) error {
	d, err := s.FindDomainByName(ctx, name)
	if err != nil {
		return err
	}
	if d.VetState.Decided() {
		return leadscout.Errorf(leadscout.ECONFLICT, "domain %q already %s", name, d.VetState)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE domains
		SET vet_state = ?, decision = ?, vet_stage = ?, vet_score = ?, vet_rationale = ?, vetted_at = ?
		WHERE name = ?
	`, outcome.State, outcome.Decision, outcome.Stage, outcome.Score, outcome.Rationale,
		formatTime(time.Now()), name)
	return err
}

// ResetVetting clears the decision fields of a domain.
func (s *DomainService) ResetVetting(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE domains
		SET vet_state = ?, decision = '', vet_stage = '', vet_score = 0, vet_rationale = '', vetted_at = ''
		WHERE name = ?
	`, leadscout.VetUnvetted, name)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return leadscout.Errorf(leadscout.ENOTFOUND, "domain %q not found", name)
	}
	return nil
}

// UpdateDomain updates crawl fields and stage timestamps.
func (s *DomainService) UpdateDomain(ctx context.Context, name string, upd leadscout.DomainUpdate) (*leadscout.Domain, error) {
	d, err := s.FindDomainByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if upd.CrawlStatus != nil {
		d.CrawlStatus = *upd.CrawlStatus
	}
	if upd.CrawlPages != nil {
		d.CrawlPages = *upd.CrawlPages
	}
	if upd.FailureReason != nil {
		d.FailureReason = *upd.FailureReason
	}
	if upd.Signals != nil {
		d.Signals = *upd.Signals
	}
	for _, src := range upd.Sources {
		if !containsString(d.Sources, src) {
			d.Sources = append(d.Sources, src)
		}
	}
	if upd.CrawledAt != nil {
		d.CrawledAt = *upd.CrawledAt
	}
	if upd.ExtractedAt != nil {
		d.ExtractedAt = *upd.ExtractedAt
	}
	if upd.EmbeddedAt != nil {
		d.EmbeddedAt = *upd.EmbeddedAt
	}

	sources, err := json.Marshal(d.Sources)
	if err != nil {
		return nil, err
	}
	signals, err := json.Marshal(d.Signals)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE domains
		SET sources = ?, signals = ?, crawl_status = ?, crawl_pages = ?, failure_reason = ?,
			crawled_at = ?, extracted_at = ?, embedded_at = ?
		WHERE name = ?
	`, string(sources), string(signals), d.CrawlStatus, d.CrawlPages, d.FailureReason,
		formatTime(d.CrawledAt), formatTime(d.ExtractedAt), formatTime(d.EmbeddedAt), name)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func scanDomain(row scanner) (*leadscout.Domain, error) {
	var d leadscout.Domain
	var sources, signals string
	var discoveredAt, vettedAt, crawledAt, extractedAt, embeddedAt string

	if err := row.Scan(&d.Name, &sources, &signals, &d.VetState, &d.Decision, &d.VetStage,
		&d.VetScore, &d.VetRationale, &d.CrawlStatus, &d.CrawlPages, &d.FailureReason,
		&discoveredAt, &vettedAt, &crawledAt, &extractedAt, &embeddedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sources), &d.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	if err := json.Unmarshal([]byte(signals), &d.Signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals: %w", err)
	}

	var err error
	if d.DiscoveredAt, err = parseRFC3339(discoveredAt, "discovered_at"); err != nil {
		return nil, err
	}
	if d.VettedAt, err = parseOptionalTime(vettedAt, "vetted_at"); err != nil {
		return nil, err
	}
	if d.CrawledAt, err = parseOptionalTime(crawledAt, "crawled_at"); err != nil {
		return nil, err
	}
	if d.ExtractedAt, err = parseOptionalTime(extractedAt, "extracted_at"); err != nil {
		return nil, err
	}
	if d.EmbeddedAt, err = parseOptionalTime(embeddedAt, "embedded_at"); err != nil {
		return nil, err
	}
	return &d, nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// HitService implements leadscout.HitService using SQLite.
type HitService struct {
	db *DB
}

// NewHitService creates a new HitService.
func NewHitService(db *DB) *HitService {
	return &HitService{db: db}
}

// CreateHits appends hits to the discovery log in one transaction.
func (s *HitService) CreateHits(ctx context.Context, hits []*leadscout.DiscoveredHit) error {
	if len(hits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	for _, h := range hits {
		if h.Domain == "" || h.URL == "" {
			return leadscout.Errorf(leadscout.EINVALID, "hit domain and URL required")
		}
		h.ID = uuid.New().String()
		if h.DiscoveredAt.IsZero() {
			h.DiscoveredAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO hits (id, domain, url, query, engine, rank, snippet, discovered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, h.ID, h.Domain, h.URL, h.Query, h.Engine, h.Rank, h.Snippet, formatTime(h.DiscoveredAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindHits retrieves hits matching the filter, oldest first.
func (s *HitService) FindHits(ctx context.Context, filter leadscout.HitFilter) ([]*leadscout.DiscoveredHit, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, domain, url, query, engine, rank, snippet, discovered_at FROM hits WHERE 1=1")

	if filter.Domain != nil {
		query.WriteString(" AND domain = ?")
		args = append(args, *filter.Domain)
	}
	if filter.Engine != nil {
		query.WriteString(" AND engine = ?")
		args = append(args, *filter.Engine)
	}

	query.WriteString(" ORDER BY discovered_at ASC, rowid ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []*leadscout.DiscoveredHit
	for rows.Next() {
		var h leadscout.DiscoveredHit
		var discoveredAt string
		if err := rows.Scan(&h.ID, &h.Domain, &h.URL, &h.Query, &h.Engine, &h.Rank, &h.Snippet, &discoveredAt); err != nil {
			return nil, err
		}
		if h.DiscoveredAt, err = parseRFC3339(discoveredAt, "discovered_at"); err != nil {
			return nil, err
		}
		hits = append(hits, &h)
	}
	return hits, rows.Err()
}
