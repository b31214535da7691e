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
var _ leadscout.DedupService = (*DedupService)(nil)

// DedupService implements leadscout.DedupService using SQLite.
type DedupService struct {
	db *DB
}

// NewDedupService creates a new DedupService.
func NewDedupService(db *DB) *DedupService {
	return &DedupService{db: db}
}

// SaveDedup appends a dedup decision.
func (s *DedupService) SaveDedup(ctx context.Context, rec *leadscout.DedupRecord) error {
	if rec.Candidate == "" {
		return leadscout.Errorf(leadscout.EINVALID, "dedup candidate required")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dedups (candidate, matched, pattern_score, homepage_similarity, decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Candidate, rec.Matched, rec.PatternScore, rec.HomepageSimilarity, rec.Decision, formatTime(rec.CreatedAt))
	return err
}

// FindDedups returns the decisions recorded for a candidate, oldest first.
func (s *DedupService) FindDedups(ctx context.Context, candidate string) ([]*leadscout.DedupRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT candidate, matched, pattern_score, homepage_similarity, decision, created_at
		FROM dedups
		WHERE candidate = ?
		ORDER BY id ASC
	`, candidate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*leadscout.DedupRecord
	for rows.Next() {
		var rec leadscout.DedupRecord
		var createdAt string
		if err := rows.Scan(&rec.Candidate, &rec.Matched, &rec.PatternScore, &rec.HomepageSimilarity,
			&rec.Decision, &createdAt); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// FindFeatures returns cached homepage features.
func (s *DedupService) FindFeatures(ctx context.Context, domain string) (*leadscout.HomepageFeatures, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT features FROM homepage_features WHERE domain = ?", domain).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no homepage features for %q", domain)
	}
	if err != nil {
		return nil, err
	}

	var f leadscout.HomepageFeatures
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, fmt.Errorf("failed to decode features: %w", err)
	}
	return &f, nil
}

// SaveFeatures caches homepage features.
func (s *DedupService) SaveFeatures(ctx context.Context, f *leadscout.HomepageFeatures) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO homepage_features (domain, features) VALUES (?, ?)
		ON CONFLICT(domain) DO UPDATE SET features = excluded.features
	`, f.Domain, string(raw))
	return err
}

// FindSignatures returns every cached signature ordered by domain.
func (s *DedupService) FindSignatures(ctx context.Context) ([]*leadscout.DedupSignature, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT domain, brand, path_shapes FROM dedup_signatures ORDER BY domain ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sigs []*leadscout.DedupSignature
	for rows.Next() {
		var sig leadscout.DedupSignature
		var shapes string
		if err := rows.Scan(&sig.Domain, &sig.Brand, &shapes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(shapes), &sig.PathShapes); err != nil {
			return nil, fmt.Errorf("failed to decode path shapes: %w", err)
		}
		sigs = append(sigs, &sig)
	}
	return sigs, rows.Err()
}

// SaveSignature caches a domain signature.
func (s *DedupService) SaveSignature(ctx context.Context, sig *leadscout.DedupSignature) error {
	if sig.PathShapes == nil {
		sig.PathShapes = []string{}
	}
	shapes, err := json.Marshal(sig.PathShapes)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dedup_signatures (domain, brand, path_shapes) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET brand = excluded.brand, path_shapes = excluded.path_shapes
	`, sig.Domain, sig.Brand, string(shapes))
	return err
}
