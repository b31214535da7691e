package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
)

// Ensure SitemapService implements leadscout.SitemapService.
var _ leadscout.SitemapService = (*SitemapService)(nil)

// DefaultMaxSitemapURLs bounds the URLs collected from one site's sitemaps.
const DefaultMaxSitemapURLs = 5000

// maxSitemapDepth bounds sitemapindex nesting.
const maxSitemapDepth = 3

// SitemapService discovers page URLs from website sitemaps via HTTP.
type SitemapService struct {
	client    *http.Client
	userAgent string
	maxURLs   int
}

// NewSitemapService creates a new SitemapService with the given HTTP client.
// If client is nil, a client with DefaultFetchTimeout is used.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &SitemapService{client: client, userAgent: DefaultUserAgent, maxURLs: DefaultMaxSitemapURLs}
}

// SetMaxURLs changes the cap on collected URLs. Non-positive values are
// ignored.
func (s *SitemapService) SetMaxURLs(n int) {
	if n > 0 {
		s.maxURLs = n
	}
}

// DiscoverURLs returns the page URLs listed in the sitemaps of baseURL's
// site, restricted to the same registrable domain. Sitemaps are located via
// robots.txt Sitemap: lines, falling back to /sitemap.xml. A sitemap that
// cannot be fetched or parsed is skipped. Returns an empty slice (not nil)
// when nothing is found.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "invalid base URL %q", baseURL)
	}
	root := base.Scheme + "://" + base.Host

	robots, err := fetchRobots(ctx, s.client, s.userAgent, root)
	if err != nil {
		return nil, err
	}
	sitemaps := robots.Sitemaps
	if len(sitemaps) == 0 {
		sitemaps = []string{root + "/sitemap.xml"}
	}

	w := &sitemapWalk{
		svc:      s,
		site:     base.Host,
		seenMaps: make(map[string]bool),
		seenURLs: make(map[string]bool),
		urls:     []string{},
	}
	for _, sm := range sitemaps {
		if err := w.visit(ctx, sm, 0); err != nil {
			return nil, err
		}
		if w.full() {
			break
		}
	}
	return w.urls, nil
}

// sitemapWalk accumulates URLs across a tree of sitemaps.
type sitemapWalk struct {
	svc      *SitemapService
	site     string
	seenMaps map[string]bool
	seenURLs map[string]bool
	urls     []string
}

func (w *sitemapWalk) full() bool {
	return len(w.urls) >= w.svc.maxURLs
}

// visit processes one sitemap. Only context errors are returned.
func (w *sitemapWalk) visit(ctx context.Context, sitemapURL string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.seenMaps[sitemapURL] || depth > maxSitemapDepth || w.full() {
		return nil
	}
	w.seenMaps[sitemapURL] = true

	root, err := w.svc.fetchXML(ctx, sitemapURL)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}

	if root.Tag == "sitemapindex" {
		for _, loc := range locs(root, "sitemap") {
			if err := w.visit(ctx, loc, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, loc := range locs(root, "url") {
		if w.full() {
			break
		}
		if !publicsuffix.SameSite(loc, w.site) || w.seenURLs[loc] {
			continue
		}
		w.seenURLs[loc] = true
		w.urls = append(w.urls, loc)
	}
	return nil
}

// locs returns the trimmed <loc> texts of the named children of root.
func locs(root *etree.Element, child string) []string {
	var out []string
	for _, el := range root.SelectElements(child) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		if u := strings.TrimSpace(loc.Text()); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// fetchXML fetches a sitemap, transparently gunzipping .gz files, and
// returns its root element.
func (s *SitemapService) fetchXML(ctx context.Context, target string) (*etree.Element, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, target)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	var body io.Reader = bytes.NewReader(raw)
	if len(raw) > 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("opening gzip sitemap: %w", err)
		}
		defer zr.Close()
		body = io.LimitReader(zr, 4*maxBodySize)
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(body); err != nil {
		return nil, fmt.Errorf("parsing sitemap XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty sitemap XML")
	}
	return root, nil
}
