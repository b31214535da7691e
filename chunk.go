package leadscout

import (
	"context"
	"time"
)

// Collection names a vector index collection.
type Collection string

// Collection constants.
const (
	CollectionRawPages  Collection = "raw_pages"
	CollectionProducts  Collection = "products"
	CollectionCompanies Collection = "companies"
)

// Collections returns every collection in search order.
func Collections() []Collection {
	return []Collection{CollectionRawPages, CollectionProducts, CollectionCompanies}
}

// Validate returns EINVALID for unknown collections.
func (c Collection) Validate() error {
	switch c {
	case CollectionRawPages, CollectionProducts, CollectionCompanies:
		return nil
	}
	return Errorf(EINVALID, "unknown collection %q", string(c))
}

// ChunkMetadata holds the filterable attributes of a chunk.
type ChunkMetadata struct {
	Domain   string `json:"domain"`
	URL      string `json:"url,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Category string `json:"category,omitempty"`
	Company  string `json:"company,omitempty"`
	Section  string `json:"section,omitempty"`
}

// Chunk is an embeddable unit of text.
type Chunk struct {
	ID          string        `json:"id"`
	SourceID    string        `json:"sourceId"`
	Collection  Collection    `json:"collection"`
	Text        string        `json:"text"`
	ContentHash string        `json:"contentHash"`
	Metadata    ChunkMetadata `json:"metadata"`
}

// Segment is a piece of a document produced by a Chunker.
type Segment struct {
	Text string
	// Section is the nearest heading above the segment, if any.
	Section string
}

// Chunker splits markdown into segments bounded by a token budget.
type Chunker interface {
	Chunk(ctx context.Context, markdown string) ([]Segment, error)
}

// Embedder turns texts into vectors.
type Embedder interface {
	// Model names the embedding model.
	Model() string

	// Embed returns one vector per text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorRecord is a chunk with its embedding.
type VectorRecord struct {
	Chunk
	Embedding []float32 `json:"-"`
}

// VectorService is the vector index. Records are keyed by collection and
// content hash, so writing the same hash twice is idempotent.
type VectorService interface {
	// HasVector reports whether a hash is already indexed in a collection.
	HasVector(ctx context.Context, collection Collection, contentHash string) (bool, error)

	// UpsertVectors inserts or replaces records.
	UpsertVectors(ctx context.Context, records []*VectorRecord) error

	// DeleteVectors removes records by hash.
	DeleteVectors(ctx context.Context, collection Collection, hashes []string) error

	// SearchVectors returns the records of a collection most similar to query
	// whose metadata satisfies every filter.
	SearchVectors(ctx context.Context, collection Collection, query []float32, filters []Filter, limit int) ([]*SearchHit, error)
}

// EmbeddedSet tracks which content hashes were embedded for a domain.
type EmbeddedSet struct {
	Domain    string                  `json:"domain"`
	Hashes    map[Collection][]string `json:"hashes"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// EmbedTracker persists the per-domain embedded hash sets.
type EmbedTracker interface {
	// FindEmbedded returns the set of a domain.
	// Returns ENOTFOUND if the domain was never embedded.
	FindEmbedded(ctx context.Context, domain string) (*EmbeddedSet, error)

	// SaveEmbedded replaces the set of a domain.
	SaveEmbedded(ctx context.Context, set *EmbeddedSet) error
}

// SearchHit is a retrieved chunk with its relevance score.
type SearchHit struct {
	Chunk
	// Similarity is the cosine similarity of the chunk to the query.
	Similarity float64 `json:"similarity"`
	// Score is the final ranking score.
	Score float64 `json:"score"`
}
