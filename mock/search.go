package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var _ leadscout.SearchEngine = (*SearchEngine)(nil)

// SearchEngine is a mock implementation of leadscout.SearchEngine.
type SearchEngine struct {
	NameFn   func() string
	SearchFn func(ctx context.Context, query string, page int) ([]leadscout.SearchResult, error)
}

func (e *SearchEngine) Name() string {
	return e.NameFn()
}

func (e *SearchEngine) Search(ctx context.Context, query string, page int) ([]leadscout.SearchResult, error) {
	return e.SearchFn(ctx, query, page)
}
