// Package trafilatura extracts the main content of crawled pages with
// go-trafilatura.
package trafilatura

import (
	"bytes"
	"strings"

	"github.com/fwojciec/leadscout"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

var _ leadscout.ContentExtractor = (*Extractor)(nil)

// Extractor keeps the main content of a page and drops navigation, footers
// and comment threads. Images and links stay in the content because product
// pages carry their facts in them.
type Extractor struct {
	// Fallback handles pages trafilatura finds no main content in, which is
	// common on short product pages. Optional.
	Fallback leadscout.ContentExtractor
}

// NewExtractor creates an Extractor with an optional fallback.
func NewExtractor(fallback leadscout.ContentExtractor) *Extractor {
	return &Extractor{Fallback: fallback}
}

// Extract returns the page title and main content HTML. It returns
// EINVALID when neither trafilatura nor the fallback finds any content.
func (e *Extractor) Extract(rawHTML string) (*leadscout.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, leadscout.Errorf(leadscout.EINVALID, "empty HTML input")
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		IncludeImages:   true,
		IncludeLinks:    true,
	})
	if err != nil || result.ContentNode == nil {
		return e.fallback(rawHTML, err)
	}

	contentHTML, err := renderNode(result.ContentNode)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.ContentText) == "" {
		return e.fallback(rawHTML, nil)
	}

	return &leadscout.ExtractResult{
		Title:       result.Metadata.Title,
		ContentHTML: contentHTML,
	}, nil
}

func (e *Extractor) fallback(rawHTML string, cause error) (*leadscout.ExtractResult, error) {
	if e.Fallback != nil {
		return e.Fallback.Extract(rawHTML)
	}
	if cause != nil {
		return nil, leadscout.Errorf(leadscout.EINVALID, "no main content: %v", cause)
	}
	return nil, leadscout.Errorf(leadscout.EINVALID, "no main content")
}

// renderNode converts an html.Node to a string.
func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
