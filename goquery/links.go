package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
)

var _ leadscout.LinkExtractor = (*LinkExtractor)(nil)

// LinkExtractor finds links that stay on the registrable domain of the page.
// Subdomains count as the same site, so shop.example.com and example.com
// link to each other.
type LinkExtractor struct{}

// NewLinkExtractor creates a new LinkExtractor.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// ExtractLinks returns absolute same-site URLs in document order without
// duplicates, fragments or self-references. A <base href> overrides baseURL.
func (e *LinkExtractor) ExtractLinks(html, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "invalid base URL %q", baseURL)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "failed to parse HTML: %v", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(href); err == nil && b.Host != "" {
			base = b
		}
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || isNonHTTPLink(href) {
			return
		}
		if rel, _ := sel.Attr("rel"); strings.Contains(rel, "nofollow") {
			return
		}

		resolved := resolveURL(base, href)
		if resolved == "" || !publicsuffix.SameSite(resolved, base.Host) {
			return
		}
		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links, nil
}

// resolveURL resolves href against base with the fragment stripped.
// Returns "" for unparseable, non-http(s) or self-referential links.
func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	self := *base
	self.Fragment = ""
	self.RawFragment = ""
	if resolved.String() == self.String() {
		return ""
	}
	return resolved.String()
}

// isNonHTTPLink reports whether href uses a scheme that never leads to a page.
func isNonHTTPLink(href string) bool {
	href = strings.ToLower(strings.TrimSpace(href))
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:", "sms:", "whatsapp:"} {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}
