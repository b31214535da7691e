package leadscout

import (
	"context"
	"time"
)

// PageRecord is a stored snapshot of a crawled page. Records are append-only:
// a new one is written only when the content hash of a URL changes.
type PageRecord struct {
	ID          string    `json:"id"`
	Domain      string    `json:"domain"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Depth       int       `json:"depth"`
	ContentHash string    `json:"contentHash"`
	Content     string    `json:"content"` // Markdown
	FetchedAt   time.Time `json:"fetchedAt"`
}

// Validate returns an error if the page record contains invalid fields.
func (p *PageRecord) Validate() error {
	if p.Domain == "" {
		return Errorf(EINVALID, "page domain required")
	}
	if p.URL == "" {
		return Errorf(EINVALID, "page URL required")
	}
	if p.ContentHash == "" {
		return Errorf(EINVALID, "page content hash required")
	}
	return nil
}

// PageService represents the append-only page record log.
type PageService interface {
	// CreatePage appends a page record.
	CreatePage(ctx context.Context, page *PageRecord) error

	// LatestHashes returns the last stored content hash per URL of a domain.
	LatestHashes(ctx context.Context, domain string) (map[string]string, error)

	// FindPages retrieves page records matching the filter.
	FindPages(ctx context.Context, filter PageFilter) ([]*PageRecord, error)

	// CountPages returns the number of records stored for a domain.
	CountPages(ctx context.Context, domain string) (int, error)
}

// PageFilter represents a filter for FindPages.
type PageFilter struct {
	Domain *string
	URL    *string
	// Latest restricts results to the newest record of each URL.
	Latest bool

	Offset int
	Limit  int
}

// LinkExtractor finds same-site links in a page.
type LinkExtractor interface {
	// ExtractLinks returns absolute URLs linked from html that stay on the
	// registrable domain of baseURL.
	ExtractLinks(html, baseURL string) ([]string, error)
}
