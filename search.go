package leadscout

import "context"

// SearchResult is one organic result from a search engine results page.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
}

// SearchEngine issues a query against a web search backend.
type SearchEngine interface {
	// Name identifies the engine, e.g. "bing".
	Name() string

	// Search returns the organic results of one results page (0-based).
	// Returns ECHALLENGE when the engine presents a bot challenge.
	Search(ctx context.Context, query string, page int) ([]SearchResult, error)
}
