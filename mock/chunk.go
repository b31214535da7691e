package mock

import (
	"context"

	"github.com/fwojciec/leadscout"
)

var (
	_ leadscout.Chunker       = (*Chunker)(nil)
	_ leadscout.Embedder      = (*Embedder)(nil)
	_ leadscout.VectorService = (*VectorService)(nil)
	_ leadscout.EmbedTracker  = (*EmbedTracker)(nil)
)

// Chunker is a mock implementation of leadscout.Chunker.
type Chunker struct {
	ChunkFn func(ctx context.Context, markdown string) ([]leadscout.Segment, error)
}

func (c *Chunker) Chunk(ctx context.Context, markdown string) ([]leadscout.Segment, error) {
	return c.ChunkFn(ctx, markdown)
}

// Embedder is a mock implementation of leadscout.Embedder.
type Embedder struct {
	ModelFn func() string
	EmbedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (e *Embedder) Model() string {
	return e.ModelFn()
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedFn(ctx, texts)
}

// VectorService is a mock implementation of leadscout.VectorService.
type VectorService struct {
	HasVectorFn     func(ctx context.Context, collection leadscout.Collection, contentHash string) (bool, error)
	UpsertVectorsFn func(ctx context.Context, records []*leadscout.VectorRecord) error
	DeleteVectorsFn func(ctx context.Context, collection leadscout.Collection, hashes []string) error
	SearchVectorsFn func(ctx context.Context, collection leadscout.Collection, query []float32, filters []leadscout.Filter, limit int) ([]*leadscout.SearchHit, error)
}

func (s *VectorService) HasVector(ctx context.Context, collection leadscout.Collection, contentHash string) (bool, error) {
	return s.HasVectorFn(ctx, collection, contentHash)
}

func (s *VectorService) UpsertVectors(ctx context.Context, records []*leadscout.VectorRecord) error {
	return s.UpsertVectorsFn(ctx, records)
}

func (s *VectorService) DeleteVectors(ctx context.Context, collection leadscout.Collection, hashes []string) error {
	return s.DeleteVectorsFn(ctx, collection, hashes)
}

func (s *VectorService) SearchVectors(ctx context.Context, collection leadscout.Collection, query []float32, filters []leadscout.Filter, limit int) ([]*leadscout.SearchHit, error) {
	return s.SearchVectorsFn(ctx, collection, query, filters, limit)
}

// EmbedTracker is a mock implementation of leadscout.EmbedTracker.
type EmbedTracker struct {
	FindEmbeddedFn func(ctx context.Context, domain string) (*leadscout.EmbeddedSet, error)
	SaveEmbeddedFn func(ctx context.Context, set *leadscout.EmbeddedSet) error
}

func (t *EmbedTracker) FindEmbedded(ctx context.Context, domain string) (*leadscout.EmbeddedSet, error) {
	return t.FindEmbeddedFn(ctx, domain)
}

func (t *EmbedTracker) SaveEmbedded(ctx context.Context, set *leadscout.EmbeddedSet) error {
	return t.SaveEmbeddedFn(ctx, set)
}
