// Package vet decides whether discovered domains belong to the target
// industry. A cheap soft probe filters discovery noise, a rule stage decides
// the clear cases, and a model stage decides the rest. Model decisions are
// cached by content hash so unchanged sites are never classified twice.
package vet

import (
	"context"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/publicsuffix"
)

// Loader defaults.
const DefaultMinText = 200

// DefaultFallbackPaths are tried in order when the homepage has too little
// text to vet on.
var DefaultFallbackPaths = []string{"/products", "/shop", "/collections", "/about"}

// Detector finds commerce signals in HTML.
type Detector interface {
	Detect(html string) leadscout.SoftSignals
}

// TextExtractor returns the visible text of HTML.
type TextExtractor interface {
	Text(html string) string
}

// Content is the page a domain is vetted on.
type Content struct {
	Domain string
	URL    string
	HTML   string
	Text   string
	// Hash fingerprints Text and keys cached vetting records.
	Hash string
}

// ContentLoader loads the page a domain is vetted on.
type ContentLoader interface {
	Load(ctx context.Context, domain string) (*Content, error)
}

// Loader fetches the homepage of a domain, falling back to catalog and about
// pages when the homepage has little text.
type Loader struct {
	Fetcher leadscout.Fetcher
	Text    TextExtractor
	Paths   []string
	MinText int
	RootURL func(domain string) string
}

// Load returns the first page with at least MinText characters of text, or
// the longest page fetched. Returns the last fetch error if every fetch
// failed.
func (l *Loader) Load(ctx context.Context, domain string) (*Content, error) {
	root := l.rootURL(domain)
	urls := []string{root}
	paths := l.Paths
	if paths == nil {
		paths = DefaultFallbackPaths
	}
	for _, p := range paths {
		urls = append(urls, root+p)
	}

	var best *Content
	var lastErr error
	for _, u := range urls {
		html, err := l.Fetcher.Fetch(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		text := l.Text.Text(html)
		c := &Content{Domain: domain, URL: u, HTML: html, Text: text, Hash: leadscout.HashContent(text)}
		if len(text) >= l.minText() {
			return c, nil
		}
		if best == nil || len(text) > len(best.Text) {
			best = c
		}
	}
	if best != nil {
		return best, nil
	}
	return nil, lastErr
}

func (l *Loader) rootURL(domain string) string {
	if l.RootURL != nil {
		return l.RootURL(domain)
	}
	return publicsuffix.Root(domain)
}

func (l *Loader) minText() int {
	if l.MinText > 0 {
		return l.MinText
	}
	return DefaultMinText
}
