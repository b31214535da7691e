// Package readability extracts page content with go-readability. It serves
// as the fallback for pages the primary extractor rejects.
package readability

import (
	"strings"

	"github.com/fwojciec/leadscout"
	"github.com/go-shiori/go-readability"
)

var _ leadscout.ContentExtractor = (*Extractor)(nil)

// Extractor wraps go-readability to extract main content from HTML.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the article title and content. Pages without readable
// text return EINVALID so the crawler records them as skipped.
func (e *Extractor) Extract(rawHTML string) (*leadscout.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "empty HTML input")
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), nil)
	if err != nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "unreadable page: %v", err)
	}
	if strings.TrimSpace(article.TextContent) == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "no readable content")
	}

	return &leadscout.ExtractResult{
		Title:       article.Title,
		ContentHTML: article.Content,
	}, nil
}
