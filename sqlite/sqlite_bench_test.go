package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/sqlite"
	"github.com/stretchr/testify/require"
)

// BenchmarkPageInserts simulates the crawler appending page records to a
// file-backed database.
func BenchmarkPageInserts(b *testing.B) {
	db := sqlite.NewDB(filepath.Join(b.TempDir(), "bench.db"))
	require.NoError(b, db.Open())
	defer db.Close()

	ctx := context.Background()
	svc := sqlite.NewPageService(db)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		page := &leadscout.PageRecord{
			Domain:  "example.com",
			URL:     fmt.Sprintf("https://example.com/products/item-%d", i),
			Title:   fmt.Sprintf("Item %d", i),
			Content: fmt.Sprintf("# Item %d\n\nGoalkeeper gloves with latex palm, size %d.", i, i%12),
		}
		if err := svc.CreatePage(ctx, page); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSearchVectors measures the brute-force cosine scan.
func BenchmarkSearchVectors(b *testing.B) {
	const dims = 256

	for _, n := range []int{100, 1000} {
		b.Run(fmt.Sprintf("rows=%d", n), func(b *testing.B) {
			db := sqlite.NewDB(":memory:")
			require.NoError(b, db.Open())
			defer db.Close()

			ctx := context.Background()
			svc := sqlite.NewVectorService(db)

			records := make([]*leadscout.VectorRecord, n)
			for i := range records {
				vec := make([]float32, dims)
				vec[i%dims] = 1
				vec[(i+1)%dims] = 0.5
				records[i] = &leadscout.VectorRecord{
					Chunk: leadscout.Chunk{
						ID:          fmt.Sprintf("chunk-%d", i),
						Collection:  leadscout.CollectionRawPages,
						Text:        fmt.Sprintf("chunk %d", i),
						ContentHash: fmt.Sprintf("hash-%d", i),
						Metadata:    leadscout.ChunkMetadata{Domain: fmt.Sprintf("shop%d.com", i%10)},
					},
					Embedding: vec,
				}
			}
			require.NoError(b, svc.UpsertVectors(ctx, records))

			query := make([]float32, dims)
			query[3] = 1

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := svc.SearchVectors(ctx, leadscout.CollectionRawPages, query, nil, 10); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
