// Package bluemonday turns HTML into plain text with a strict bluemonday
// policy.
package bluemonday

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextExtractor strips every tag from HTML and returns the visible text.
// Script, style and similar element content is dropped.
type TextExtractor struct {
	policy *bluemonday.Policy
}

// NewTextExtractor creates a new TextExtractor.
func NewTextExtractor() *TextExtractor {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	p.SkipElementsContent("svg", "template", "head")
	return &TextExtractor{policy: p}
}

// Text returns the visible text of html with whitespace collapsed.
func (e *TextExtractor) Text(s string) string {
	text := html.UnescapeString(e.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}
