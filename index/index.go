// Package index turns crawled pages and extraction results into embedded
// chunks. Embedding is incremental: a chunk is embedded only when its
// content hash is not indexed yet, and hashes a domain no longer produces
// are deleted.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
	"github.com/google/uuid"
)

// DefaultBatchSize is the number of texts sent per embedding call.
const DefaultBatchSize = 64

// Indexer builds and embeds the chunks of a domain.
type Indexer struct {
	Pages       leadscout.PageService
	Extractions leadscout.ExtractionService
	Chunker     leadscout.Chunker
	Embedder    leadscout.Embedder
	Vectors     leadscout.VectorService
	Tracker     leadscout.EmbedTracker
	// Domains, when set, gets the embedding timestamp of each domain.
	Domains leadscout.DomainService

	BatchSize int
	// CallTimeout bounds each embedding call. Zero means
	// leadscout.DefaultModelTimeout.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

func (x *Indexer) batchSize() int {
	if x.BatchSize > 0 {
		return x.BatchSize
	}
	return DefaultBatchSize
}

func (x *Indexer) logger() *slog.Logger {
	if x.Logger != nil {
		return x.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// Stats counts the work of one IndexDomain call.
type Stats struct {
	Domain   string `json:"domain"`
	Chunks   int    `json:"chunks"`
	Embedded int    `json:"embedded"`
	Skipped  int    `json:"skipped"`
	Removed  int    `json:"removed"`
}

// Changes lists the hashes an IndexDomain call would add and remove.
type Changes struct {
	Domain  string                            `json:"domain"`
	Added   map[leadscout.Collection][]string `json:"added"`
	Removed map[leadscout.Collection][]string `json:"removed"`
}

// Empty reports whether nothing changed.
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0
}

// Chunks builds every chunk of a domain: raw page segments, one chunk per
// product and one for the company profile. Chunks with equal hashes in a
// collection are kept once. It returns ENOTFOUND if the domain has neither
// pages nor an extraction result.
func (x *Indexer) Chunks(ctx context.Context, domain string) ([]*leadscout.Chunk, error) {
	pages, err := x.Pages.FindPages(ctx, leadscout.PageFilter{Domain: &domain, Latest: true})
	if err != nil {
		return nil, err
	}
	result, err := x.Extractions.FindExtraction(ctx, domain)
	if err != nil && leadscout.ErrorCode(err) != leadscout.ENOTFOUND {
		return nil, err
	}
	if len(pages) == 0 && result == nil {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "nothing to index for %q", domain)
	}

	company := ""
	if result != nil && result.Profile != nil {
		company = result.Profile.Company
	}

	b := &builder{seen: make(map[string]struct{})}
	for _, p := range pages {
		segments, err := x.Chunker.Chunk(ctx, p.Content)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", p.URL, err)
		}
		for _, s := range segments {
			b.add(leadscout.CollectionRawPages, p.ID, s.Text, leadscout.ChunkMetadata{
				Domain:  domain,
				URL:     p.URL,
				Company: company,
				Section: s.Section,
			})
		}
	}
	if result != nil {
		for _, p := range result.Products {
			b.add(leadscout.CollectionProducts, p.ID, ProductText(p), leadscout.ChunkMetadata{
				Domain:   domain,
				URL:      p.URL,
				Brand:    p.Brand,
				Category: p.Category,
				Company:  company,
			})
		}
		if result.Profile != nil {
			b.add(leadscout.CollectionCompanies, domain, ProfileText(result.Profile), leadscout.ChunkMetadata{
				Domain:  domain,
				Company: company,
			})
		}
	}
	return b.chunks, nil
}

type builder struct {
	seen   map[string]struct{}
	chunks []*leadscout.Chunk
}

func (b *builder) add(c leadscout.Collection, sourceID, text string, md leadscout.ChunkMetadata) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	hash := Hash(text, md)
	key := string(c) + "/" + hash
	if _, ok := b.seen[key]; ok {
		return
	}
	b.seen[key] = struct{}{}
	b.chunks = append(b.chunks, &leadscout.Chunk{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String(),
		SourceID:    sourceID,
		Collection:  c,
		Text:        text,
		ContentHash: hash,
		Metadata:    md,
	})
}

// Hash covers a chunk's text and its filterable metadata, so a metadata
// change re-embeds the chunk.
func Hash(text string, md leadscout.ChunkMetadata) string {
	return leadscout.HashContent(strings.Join([]string{
		text, md.Domain, md.URL, md.Brand, md.Category, md.Company, md.Section,
	}, "\x1f"))
}

// IndexDomain embeds the new chunks of a domain and deletes its stale ones.
// With force every chunk is embedded again.
func (x *Indexer) IndexDomain(ctx context.Context, domain string, force bool) (*Stats, error) {
	chunks, err := x.Chunks(ctx, domain)
	if err != nil {
		return nil, err
	}
	prev, err := x.embedded(ctx, domain)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Domain: domain, Chunks: len(chunks)}
	var todo []*leadscout.Chunk
	for _, c := range chunks {
		if !force {
			ok, err := x.Vectors.HasVector(ctx, c.Collection, c.ContentHash)
			if err != nil {
				return nil, err
			}
			if ok {
				stats.Skipped++
				continue
			}
		}
		todo = append(todo, c)
	}

	for batch := range slices.Chunk(todo, x.batchSize()) {
		if err := x.embed(ctx, batch); err != nil {
			return nil, err
		}
		stats.Embedded += len(batch)
	}

	current := hashSet(domain, chunks)
	for _, c := range leadscout.Collections() {
		stale := difference(prev.Hashes[c], current.Hashes[c])
		if len(stale) == 0 {
			continue
		}
		if err := x.Vectors.DeleteVectors(ctx, c, stale); err != nil {
			return nil, err
		}
		stats.Removed += len(stale)
	}

	if err := x.Tracker.SaveEmbedded(ctx, current); err != nil {
		return nil, err
	}
	if x.Domains != nil {
		at := current.UpdatedAt
		if _, err := x.Domains.UpdateDomain(ctx, domain, leadscout.DomainUpdate{EmbeddedAt: &at}); err != nil {
			return nil, err
		}
	}
	x.logger().Info("indexed", "domain", domain, "chunks", stats.Chunks, "embedded", stats.Embedded,
		"skipped", stats.Skipped, "removed", stats.Removed)
	return stats, nil
}

// Changes compares the chunks of a domain with its last embedded set
// without embedding anything.
func (x *Indexer) Changes(ctx context.Context, domain string) (*Changes, error) {
	chunks, err := x.Chunks(ctx, domain)
	if err != nil {
		return nil, err
	}
	prev, err := x.embedded(ctx, domain)
	if err != nil {
		return nil, err
	}
	current := hashSet(domain, chunks)

	ch := &Changes{
		Domain:  domain,
		Added:   map[leadscout.Collection][]string{},
		Removed: map[leadscout.Collection][]string{},
	}
	for _, c := range leadscout.Collections() {
		if added := difference(current.Hashes[c], prev.Hashes[c]); len(added) > 0 {
			ch.Added[c] = added
		}
		if removed := difference(prev.Hashes[c], current.Hashes[c]); len(removed) > 0 {
			ch.Removed[c] = removed
		}
	}
	return ch, nil
}

func (x *Indexer) embedded(ctx context.Context, domain string) (*leadscout.EmbeddedSet, error) {
	set, err := x.Tracker.FindEmbedded(ctx, domain)
	if leadscout.ErrorCode(err) == leadscout.ENOTFOUND {
		return &leadscout.EmbeddedSet{Domain: domain, Hashes: map[leadscout.Collection][]string{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if set.Hashes == nil {
		set.Hashes = map[leadscout.Collection][]string{}
	}
	return set, nil
}

func (x *Indexer) embed(ctx context.Context, chunks []*leadscout.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := leadscout.CallModel(ctx, x.CallTimeout, func(ctx context.Context) ([][]float32, error) {
		return x.Embedder.Embed(ctx, texts)
	})
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return leadscout.Errorf(leadscout.EMODEL, "embedder returned %d vectors for %d texts", len(vectors), len(chunks))
	}
	records := make([]*leadscout.VectorRecord, len(chunks))
	for i, c := range chunks {
		records[i] = &leadscout.VectorRecord{Chunk: *c, Embedding: vectors[i]}
	}
	return x.Vectors.UpsertVectors(ctx, records)
}

func hashSet(domain string, chunks []*leadscout.Chunk) *leadscout.EmbeddedSet {
	set := &leadscout.EmbeddedSet{
		Domain:    domain,
		Hashes:    map[leadscout.Collection][]string{},
		UpdatedAt: time.Now().UTC(),
	}
	for _, c := range chunks {
		set.Hashes[c.Collection] = append(set.Hashes[c.Collection], c.ContentHash)
	}
	for c := range maps.Keys(set.Hashes) {
		slices.Sort(set.Hashes[c])
	}
	return set
}

// difference returns the elements of a missing from b.
func difference(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !slices.Contains(b, s) {
			out = append(out, s)
		}
	}
	return out
}

// Result is the indexing outcome of one domain in a batch run.
type Result struct {
	Domain string `json:"domain"`
	Stats  *Stats `json:"stats,omitempty"`
	Err    error  `json:"-"`
}

// IndexDomains indexes domains one after another. A failing domain is
// reported in its Result and does not stop the rest.
func (x *Indexer) IndexDomains(ctx context.Context, domains []string, force bool) []Result {
	results := make([]Result, len(domains))
	for i, name := range domains {
		results[i].Domain = name
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		stats, err := x.IndexDomain(ctx, name, force)
		if err != nil {
			x.logger().Warn("indexing failed", "domain", name, "error", err)
			results[i].Err = err
			continue
		}
		results[i].Stats = stats
	}
	return results
}
