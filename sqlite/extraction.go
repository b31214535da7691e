package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/leadscout"
)

// Compile-time interface verification.
var _ leadscout.ExtractionService = (*ExtractionService)(nil)

// ExtractionService implements leadscout.ExtractionService using SQLite.
type ExtractionService struct {
	db *DB
}

// NewExtractionService creates a new ExtractionService.
func NewExtractionService(db *DB) *ExtractionService {
	return &ExtractionService{db: db}
}

// SaveExtraction replaces the result of a domain.
func (s *ExtractionService) SaveExtraction(ctx context.Context, result *leadscout.ExtractionResult) error {
	if result.Domain == "" {
		return leadscout.Errorf(leadscout.EINVALID, "extraction domain required")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO extractions (domain, result, extracted_at) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET result = excluded.result, extracted_at = excluded.extracted_at
	`, result.Domain, string(raw), formatTime(result.Meta.ExtractedAt))
	return err
}

// FindExtraction returns the result for a domain.
func (s *ExtractionService) FindExtraction(ctx context.Context, domain string) (*leadscout.ExtractionResult, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT result FROM extractions WHERE domain = ?", domain).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no extraction for %q", domain)
	}
	if err != nil {
		return nil, err
	}
	return decodeExtraction(raw)
}

// FindExtractions returns results ordered by domain.
func (s *ExtractionService) FindExtractions(ctx context.Context, filter leadscout.ExtractionFilter) ([]*leadscout.ExtractionResult, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT result FROM extractions WHERE 1=1")
	if filter.Domain != nil {
		query.WriteString(" AND domain = ?")
		args = append(args, *filter.Domain)
	}
	query.WriteString(" ORDER BY domain ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*leadscout.ExtractionResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		r, err := decodeExtraction(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func decodeExtraction(raw string) (*leadscout.ExtractionResult, error) {
	var r leadscout.ExtractionResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("failed to decode extraction: %w", err)
	}
	return &r, nil
}
