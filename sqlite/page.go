package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ leadscout.PageService = (*PageService)(nil)

// PageService implements leadscout.PageService using SQLite.
type PageService struct {
	db *DB
}

// NewPageService creates a new PageService.
func NewPageService(db *DB) *PageService {
	return &PageService{db: db}
}

// CreatePage appends a page record. The content hash is computed when unset.
func (s *PageService) CreatePage(ctx context.Context, page *leadscout.PageRecord) error {
	if page.ContentHash == "" {
		page.ContentHash = leadscout.HashContent(page.Content)
	}
	if err := page.Validate(); err != nil {
		return err
	}

	page.ID = uuid.New().String()
	if page.FetchedAt.IsZero() {
		page.FetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (id, domain, url, title, depth, content_hash, content, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, page.ID, page.Domain, page.URL, page.Title, page.Depth, page.ContentHash, page.Content,
		formatTime(page.FetchedAt))
	return err
}

// LatestHashes returns the last stored content hash per URL of a domain.
func (s *PageService) LatestHashes(ctx context.Context, domain string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT url, content_hash FROM pages
		WHERE domain = ? AND seq IN (SELECT MAX(seq) FROM pages WHERE domain = ? GROUP BY url)
	`, domain, domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var url, hash string
		if err := rows.Scan(&url, &hash); err != nil {
			return nil, err
		}
		hashes[url] = hash
	}
	return hashes, rows.Err()
}

// FindPages retrieves page records matching the filter in insertion order.
func (s *PageService) FindPages(ctx context.Context, filter leadscout.PageFilter) ([]*leadscout.PageRecord, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, domain, url, title, depth, content_hash, content, fetched_at FROM pages WHERE 1=1")

	if filter.Domain != nil {
		query.WriteString(" AND domain = ?")
		args = append(args, *filter.Domain)
	}
	if filter.URL != nil {
		query.WriteString(" AND url = ?")
		args = append(args, *filter.URL)
	}
	if filter.Latest {
		query.WriteString(" AND seq IN (SELECT MAX(seq) FROM pages GROUP BY domain, url)")
	}

	query.WriteString(" ORDER BY seq ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []*leadscout.PageRecord
	for rows.Next() {
		var p leadscout.PageRecord
		var fetchedAt string
		if err := rows.Scan(&p.ID, &p.Domain, &p.URL, &p.Title, &p.Depth, &p.ContentHash, &p.Content,
			&fetchedAt); err != nil {
			return nil, err
		}
		if p.FetchedAt, err = parseRFC3339(fetchedAt, "fetched_at"); err != nil {
			return nil, err
		}
		pages = append(pages, &p)
	}
	return pages, rows.Err()
}

// CountPages returns the number of records stored for a domain.
func (s *PageService) CountPages(ctx context.Context, domain string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pages WHERE domain = ?", domain).Scan(&n)
	return n, err
}
