package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fwojciec/leadscout"
)

// Compile-time interface verification.
var (
	_ leadscout.VectorService = (*VectorService)(nil)
	_ leadscout.EmbedTracker  = (*EmbedTracker)(nil)
)

// VectorService implements leadscout.VectorService on a SQLite table.
// Search is a brute-force cosine scan over the rows that pass the metadata
// filters.
type VectorService struct {
	db *DB
}

// NewVectorService creates a new VectorService.
func NewVectorService(db *DB) *VectorService {
	return &VectorService{db: db}
}

// HasVector reports whether a hash is already indexed in a collection.
func (s *VectorService) HasVector(ctx context.Context, collection leadscout.Collection, contentHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vectors WHERE collection = ? AND content_hash = ?",
		collection, contentHash).Scan(&n)
	return n > 0, err
}

// UpsertVectors inserts or replaces records in one transaction.
func (s *VectorService) UpsertVectors(ctx context.Context, records []*leadscout.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		if err := r.Collection.Validate(); err != nil {
			return err
		}
		if r.ContentHash == "" || len(r.Embedding) == 0 {
			return leadscout.Errorf(leadscout.EINVALID, "vector %q needs a content hash and an embedding", r.ID)
		}
		md := r.Metadata
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vectors (collection, content_hash, id, source_id, text, domain, url, brand, category, company, section, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection, content_hash) DO UPDATE SET
				id = excluded.id, source_id = excluded.source_id, text = excluded.text,
				domain = excluded.domain, url = excluded.url, brand = excluded.brand,
				category = excluded.category, company = excluded.company, section = excluded.section,
				embedding = excluded.embedding
		`, r.Collection, r.ContentHash, r.ID, r.SourceID, r.Text, md.Domain, md.URL, md.Brand,
			md.Category, md.Company, md.Section, encodeVector(r.Embedding)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteVectors removes records by hash.
func (s *VectorService) DeleteVectors(ctx context.Context, collection leadscout.Collection, hashes []string) error {
	if len(hashes) == 0 {
		return nil
	}
	args := make([]any, 0, len(hashes)+1)
	args = append(args, collection)
	for _, h := range hashes {
		args = append(args, h)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM vectors WHERE collection = ? AND content_hash IN ("+placeholders+")", args...)
	return err
}

// SearchVectors returns the records most similar to query whose metadata
// satisfies every filter, best first.
func (s *VectorService) SearchVectors(ctx context.Context, collection leadscout.Collection, query []float32, filters []leadscout.Filter, limit int) ([]*leadscout.SearchHit, error) {
	if err := collection.Validate(); err != nil {
		return nil, err
	}

	var q strings.Builder
	args := []any{collection}
	q.WriteString(`SELECT id, source_id, content_hash, text, domain, url, brand, category, company, section, embedding
		FROM vectors WHERE collection = ?`)
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		// Column names come from the closed FilterKey set.
		q.WriteString(" AND " + f.Key.String() + " = ? COLLATE NOCASE")
		args = append(args, f.Value)
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queryNorm := vectorNorm(query)
	var hits []*leadscout.SearchHit
	for rows.Next() {
		h := &leadscout.SearchHit{}
		h.Collection = collection
		var blob []byte
		md := &h.Metadata
		if err := rows.Scan(&h.ID, &h.SourceID, &h.ContentHash, &h.Text, &md.Domain, &md.URL, &md.Brand,
			&md.Category, &md.Company, &md.Section, &blob); err != nil {
			return nil, err
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		h.Similarity = cosine(query, vec, queryNorm)
		h.Score = h.Similarity
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// encodeVector converts a float32 slice to little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, leadscout.Errorf(leadscout.ECORRUPT, "vector blob of %d bytes", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, normA float64) float64 {
	if len(a) != len(b) || normA == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	normB := vectorNorm(b)
	if normB == 0 {
		return 0
	}
	return dot / (normA * normB)
}

// EmbedTracker implements leadscout.EmbedTracker using SQLite.
type EmbedTracker struct {
	db *DB
}

// NewEmbedTracker creates a new EmbedTracker.
func NewEmbedTracker(db *DB) *EmbedTracker {
	return &EmbedTracker{db: db}
}

// FindEmbedded returns the embedded hash set of a domain.
func (t *EmbedTracker) FindEmbedded(ctx context.Context, domain string) (*leadscout.EmbeddedSet, error) {
	var raw, updatedAt string
	err := t.db.QueryRowContext(ctx, "SELECT hashes, updated_at FROM embedded_sets WHERE domain = ?", domain).
		Scan(&raw, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, leadscout.Errorf(leadscout.ENOTFOUND, "domain %q was never embedded", domain)
	}
	if err != nil {
		return nil, err
	}

	set := &leadscout.EmbeddedSet{Domain: domain}
	if err := json.Unmarshal([]byte(raw), &set.Hashes); err != nil {
		return nil, fmt.Errorf("failed to decode embedded hashes: %w", err)
	}
	if set.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return set, nil
}

// SaveEmbedded replaces the embedded hash set of a domain.
func (t *EmbedTracker) SaveEmbedded(ctx context.Context, set *leadscout.EmbeddedSet) error {
	if set.Domain == "" {
		return leadscout.Errorf(leadscout.EINVALID, "embedded set domain required")
	}
	set.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(set.Hashes)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO embedded_sets (domain, hashes, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET hashes = excluded.hashes, updated_at = excluded.updated_at
	`, set.Domain, string(raw), formatTime(set.UpdatedAt))
	return err
}
