package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/leadscout"
)

// Compile-time interface verification.
var (
	_ leadscout.SoftVetService = (*SoftVetService)(nil)
	_ leadscout.VettingService = (*VettingService)(nil)
)

// SoftVetService implements leadscout.SoftVetService using SQLite.
type SoftVetService struct {
	db *DB
}

// NewSoftVetService creates a new SoftVetService.
func NewSoftVetService(db *DB) *SoftVetService {
	return &SoftVetService{db: db}
}

// FindSignals returns cached signals for a domain.
func (s *SoftVetService) FindSignals(ctx context.Context, domain string) (*leadscout.SoftSignals, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT signals FROM soft_signals WHERE domain = ?", domain).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no signals for %q", domain)
	}
	if err != nil {
		return nil, err
	}

	var signals leadscout.SoftSignals
	if err := json.Unmarshal([]byte(raw), &signals); err != nil {
		return nil, fmt.Errorf("failed to decode signals: %w", err)
	}
	return &signals, nil
}

// SaveSignals stores probe results for a domain.
func (s *SoftVetService) SaveSignals(ctx context.Context, domain string, signals *leadscout.SoftSignals) error {
	if signals.CheckedAt.IsZero() {
		signals.CheckedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO soft_signals (domain, signals) VALUES (?, ?)
		ON CONFLICT(domain) DO UPDATE SET signals = excluded.signals
	`, domain, string(raw))
	return err
}

// VettingService implements leadscout.VettingService using SQLite.
type VettingService struct {
	db *DB
}

// NewVettingService creates a new VettingService.
func NewVettingService(db *DB) *VettingService {
	return &VettingService{db: db}
}

// SaveVetting inserts or replaces the record for its key.
func (s *VettingService) SaveVetting(ctx context.Context, rec *leadscout.VettingRecord) error {
	if rec.Domain == "" || rec.ContentHash == "" {
		return leadscout.Errorf(leadscout.EINVALID, "vetting domain and content hash required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vettings (domain, content_hash, stage, decision, rationale, score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain, content_hash, stage) DO UPDATE SET
			decision = excluded.decision,
			rationale = excluded.rationale,
			score = excluded.score,
			created_at = excluded.created_at
	`, rec.Domain, rec.ContentHash, rec.Stage, rec.Decision, rec.Rationale, rec.Score, formatTime(rec.CreatedAt))
	return err
}

// FindVetting retrieves the record for a key.
func (s *VettingService) FindVetting(ctx context.Context, domain, contentHash string, stage leadscout.VetStage) (*leadscout.VettingRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT domain, content_hash, stage, decision, rationale, score, created_at
		FROM vettings
		WHERE domain = ? AND content_hash = ? AND stage = ?
	`, domain, contentHash, stage)
	rec, err := scanVetting(row)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no %s vetting for %q", stage, domain)
	}
	return rec, err
}

// FindVettings retrieves every record, oldest first.
func (s *VettingService) FindVettings(ctx context.Context) ([]*leadscout.VettingRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, content_hash, stage, decision, rationale, score, created_at
		FROM vettings
		ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*leadscout.VettingRecord
	for rows.Next() {
		rec, err := scanVetting(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteVetting removes all records for a domain.
func (s *VettingService) DeleteVetting(ctx context.Context, domain string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM vettings WHERE domain = ?", domain)
	return err
}

func scanVetting(row scanner) (*leadscout.VettingRecord, error) {
	var rec leadscout.VettingRecord
	var createdAt string
	if err := row.Scan(&rec.Domain, &rec.ContentHash, &rec.Stage, &rec.Decision, &rec.Rationale,
		&rec.Score, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if rec.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &rec, nil
}
