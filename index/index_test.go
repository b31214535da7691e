package index_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/index"
	"github.com/fwojciec/leadscout/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture is an in-memory backing for the Indexer dependencies.
type fixture struct {
	mu       sync.Mutex
	pages    []*leadscout.PageRecord
	result   *leadscout.ExtractionResult
	vectors  map[string]*leadscout.VectorRecord
	sets     map[string]*leadscout.EmbeddedSet
	embedded []string
}

func newFixture() *fixture {
	return &fixture{
		vectors: make(map[string]*leadscout.VectorRecord),
		sets:    make(map[string]*leadscout.EmbeddedSet),
	}
}

func (f *fixture) indexer() *index.Indexer {
	return &index.Indexer{
		Pages: &mock.PageService{
			FindPagesFn: func(_ context.Context, _ leadscout.PageFilter) ([]*leadscout.PageRecord, error) {
				return f.pages, nil
			},
		},
		Extractions: &mock.ExtractionService{
			FindExtractionFn: func(_ context.Context, domain string) (*leadscout.ExtractionResult, error) {
				if f.result == nil {
					return nil, leadscout.Errorf(leadscout.ENOTFOUND, "no extraction for %q", domain)
				}
				return f.result, nil
			},
		},
		// One segment per paragraph.
		Chunker: &mock.Chunker{
			ChunkFn: func(_ context.Context, md string) ([]leadscout.Segment, error) {
				var out []leadscout.Segment
				for _, p := range strings.Split(md, "\n\n") {
					out = append(out, leadscout.Segment{Text: p})
				}
				return out, nil
			},
		},
		Embedder: &mock.Embedder{
			ModelFn: func() string { return "test-embedding" },
			EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
				f.mu.Lock()
				defer f.mu.Unlock()
				out := make([][]float32, len(texts))
				for i, t := range texts {
					f.embedded = append(f.embedded, t)
					out[i] = []float32{float32(len(t)), 1}
				}
				return out, nil
			},
		},
		Vectors: &mock.VectorService{
			HasVectorFn: func(_ context.Context, c leadscout.Collection, hash string) (bool, error) {
				f.mu.Lock()
				defer f.mu.Unlock()
				_, ok := f.vectors[string(c)+"/"+hash]
				return ok, nil
			},
			UpsertVectorsFn: func(_ context.Context, records []*leadscout.VectorRecord) error {
				f.mu.Lock()
				defer f.mu.Unlock()
				for _, r := range records {
					f.vectors[string(r.Collection)+"/"+r.ContentHash] = r
				}
				return nil
			},
			DeleteVectorsFn: func(_ context.Context, c leadscout.Collection, hashes []string) error {
				f.mu.Lock()
				defer f.mu.Unlock()
				for _, h := range hashes {
					delete(f.vectors, string(c)+"/"+h)
				}
				return nil
			},
		},
		Tracker: &mock.EmbedTracker{
			FindEmbeddedFn: func(_ context.Context, domain string) (*leadscout.EmbeddedSet, error) {
				f.mu.Lock()
				defer f.mu.Unlock()
				set, ok := f.sets[domain]
				if !ok {
					return nil, leadscout.Errorf(leadscout.ENOTFOUND, "never embedded %q", domain)
				}
				return set, nil
			},
			SaveEmbeddedFn: func(_ context.Context, set *leadscout.EmbeddedSet) error {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.sets[set.Domain] = set
				return nil
			},
		},
	}
}

func (f *fixture) count(c leadscout.Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.vectors {
		if r.Collection == c {
			n++
		}
	}
	return n
}

func (f *fixture) resetEmbedded() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedded = nil
}

func seed(f *fixture) {
	f.pages = []*leadscout.PageRecord{
		{ID: "p1", Domain: "keeperpro.com", URL: "https://keeperpro.com/", Content: "Welcome to KeeperPro\n\nFree shipping"},
		{ID: "p2", Domain: "keeperpro.com", URL: "https://keeperpro.com/about", Content: "Founded in 2010\n\nFree shipping"},
	}
	f.result = &leadscout.ExtractionResult{
		Domain:  "keeperpro.com",
		Profile: &leadscout.CompanyProfile{Domain: "keeperpro.com", Company: "KeeperPro"},
		Products: []*leadscout.Product{
			{ID: "keeperpro.com_product_1", Name: "Grip Pro", Brand: "KeeperPro", Price: "$49", Category: "gloves"},
		},
	}
}

func TestIndexer_IndexDomain(t *testing.T) {
	t.Parallel()

	t.Run("embeds every collection once", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		seed(f)
		x := f.indexer()

		stats, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)

		// Four page paragraphs (the shared one differs by URL) plus a
		// product and a profile.
		assert.Equal(t, 6, stats.Chunks)
		assert.Equal(t, 6, stats.Embedded)
		assert.Equal(t, 4, f.count(leadscout.CollectionRawPages))
		assert.Equal(t, 1, f.count(leadscout.CollectionProducts))
		assert.Equal(t, 1, f.count(leadscout.CollectionCompanies))
	})

	t.Run("re-indexing unchanged content embeds nothing", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		seed(f)
		x := f.indexer()

		_, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)
		f.resetEmbedded()

		stats, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)
		assert.Zero(t, stats.Embedded)
		assert.Equal(t, 6, stats.Skipped)
		assert.Zero(t, stats.Removed)
		assert.Empty(t, f.embedded)
	})

	t.Run("changed content replaces only its chunk", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		seed(f)
		x := f.indexer()

		_, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)
		f.resetEmbedded()

		f.pages[1] = &leadscout.PageRecord{ID: "p3", Domain: "keeperpro.com", URL: "https://keeperpro.com/about", Content: "Founded in 2011\n\nFree shipping"}
		stats, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)

		assert.Equal(t, 1, stats.Embedded)
		assert.Equal(t, 1, stats.Removed)
		assert.Equal(t, []string{"Founded in 2011"}, f.embedded)
		assert.Equal(t, 4, f.count(leadscout.CollectionRawPages))
	})

	t.Run("metadata changes re-embed", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		seed(f)
		x := f.indexer()

		_, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)
		f.resetEmbedded()

		f.result.Products[0].Category = "goalkeeper gloves"
		stats, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Embedded)
		assert.Equal(t, 1, stats.Removed)
	})

	t.Run("force re-embeds everything", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		seed(f)
		x := f.indexer()

		_, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		require.NoError(t, err)
		stats, err := x.IndexDomain(t.Context(), "keeperpro.com", true)
		require.NoError(t, err)
		assert.Equal(t, 6, stats.Embedded)
		assert.Zero(t, stats.Removed)
	})

	t.Run("nothing to index", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		_, err := f.indexer().IndexDomain(t.Context(), "keeperpro.com", false)
		assert.Equal(t, leadscout.ENOTFOUND, leadscout.ErrorCode(err))
	})

	t.Run("short embedding batch", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		seed(f)
		x := f.indexer()
		x.Embedder = &mock.Embedder{
			EmbedFn: func(context.Context, []string) ([][]float32, error) { return nil, nil },
		}
		_, err := x.IndexDomain(t.Context(), "keeperpro.com", false)
		assert.Equal(t, leadscout.EMODEL, leadscout.ErrorCode(err))
	})
}

func TestIndexer_Changes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	seed(f)
	x := f.indexer()

	ch, err := x.Changes(t.Context(), "keeperpro.com")
	require.NoError(t, err)
	assert.Len(t, ch.Added[leadscout.CollectionRawPages], 4)
	assert.Empty(t, ch.Removed)
	assert.Empty(t, f.embedded)

	_, err = x.IndexDomain(t.Context(), "keeperpro.com", false)
	require.NoError(t, err)
	ch, err = x.Changes(t.Context(), "keeperpro.com")
	require.NoError(t, err)
	assert.True(t, ch.Empty())

	f.result.Products = nil
	ch, err = x.Changes(t.Context(), "keeperpro.com")
	require.NoError(t, err)
	assert.Len(t, ch.Removed[leadscout.CollectionProducts], 1)
	assert.Empty(t, ch.Added)
}

func TestProductText(t *testing.T) {
	t.Parallel()

	got := index.ProductText(&leadscout.Product{
		Name:  "Grip Pro",
		Price: "$49",
		Specs: map[string]string{"palm": "4mm latex", "cut": "negative"},
	})
	assert.Equal(t, "Product: Grip Pro\nPrice: $49\nSpecs: cut: negative; palm: 4mm latex\n", got)
}
