package leadscout

import "context"

// Fetcher retrieves HTML from URLs.
// Implementations classify failures with ETRANSIENT or EPERMANENT so callers
// know whether a retry can help.
type Fetcher interface {
	// Fetch retrieves the URL and returns its HTML.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (html string, err error)

	// Close releases resources held by the fetcher.
	Close() error
}

// RobotsPolicy decides whether a URL may be crawled.
type RobotsPolicy interface {
	// Allowed reports whether robots.txt for the URL's host permits fetching it.
	Allowed(ctx context.Context, url string) (bool, error)
}

// SitemapService discovers page URLs from a site's sitemaps.
type SitemapService interface {
	// DiscoverURLs returns page URLs listed in the site's sitemaps.
	// Returns an empty slice if the site publishes none.
	DiscoverURLs(ctx context.Context, baseURL string) ([]string, error)
}

// DomainLimiter provides per-domain request pacing.
type DomainLimiter interface {
	// Wait blocks until the limiter allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
