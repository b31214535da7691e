package mock

import "github.com/fwojciec/leadscout"

var (
	_ leadscout.ContentExtractor = (*ContentExtractor)(nil)
	_ leadscout.LinkExtractor    = (*LinkExtractor)(nil)
)

// ContentExtractor is a mock implementation of leadscout.ContentExtractor.
type ContentExtractor struct {
	ExtractFn func(html string) (*leadscout.ExtractResult, error)
}

func (e *ContentExtractor) Extract(html string) (*leadscout.ExtractResult, error) {
	return e.ExtractFn(html)
}

// LinkExtractor is a mock implementation of leadscout.LinkExtractor.
type LinkExtractor struct {
	ExtractLinksFn func(html, baseURL string) ([]string, error)
}

func (e *LinkExtractor) ExtractLinks(html, baseURL string) ([]string, error) {
	return e.ExtractLinksFn(html, baseURL)
}
