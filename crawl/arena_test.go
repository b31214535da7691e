package crawl_test

import (
	"context"
	"testing"

	"github.com/fwojciec/leadscout"
	"github.com/fwojciec/leadscout/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena(t *testing.T) {
	t.Parallel()

	t.Run("starts a fresh first pass", func(t *testing.T) {
		t.Parallel()

		a := crawl.NewArena(newMemStates().service())
		ds, err := a.Acquire(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 1, ds.Pass())
		assert.Equal(t, 0, ds.Visited())
		assert.Equal(t, []string{"shop.example"}, a.Active())
	})

	t.Run("refuses a second holder", func(t *testing.T) {
		t.Parallel()

		a := crawl.NewArena(newMemStates().service())
		ds, err := a.Acquire(context.Background(), "shop.example")
		require.NoError(t, err)

		_, err = a.Acquire(context.Background(), "shop.example")
		assert.Equal(t, leadscout.ECONFLICT, leadscout.ErrorCode(err))

		require.NoError(t, a.Release(context.Background(), ds))
		assert.Empty(t, a.Active())
		_, err = a.Acquire(context.Background(), "shop.example")
		assert.NoError(t, err)
	})

	t.Run("completed state starts the next pass with hashes kept", func(t *testing.T) {
		t.Parallel()

		states := newMemStates()
		states.states["shop.example"] = &leadscout.CrawlState{
			Domain:        "shop.example",
			Pass:          3,
			Visited:       []string{"https://shop.example"},
			URLHashes:     map[string]string{"https://shop.example": "h1"},
			ContentHashes: []string{"h1"},
			Completed:     true,
		}

		a := crawl.NewArena(states.service())
		ds, err := a.Acquire(context.Background(), "shop.example")
		require.NoError(t, err)
		assert.Equal(t, 4, ds.Pass())
		assert.Equal(t, 0, ds.Visited())
		assert.True(t, ds.Unchanged("https://shop.example", "h1"))
		assert.True(t, ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example"}))
	})

	t.Run("snapshot returns in-flight entries to the frontier", func(t *testing.T) {
		t.Parallel()

		a := crawl.NewArena(newMemStates().service())
		ds, err := a.Acquire(context.Background(), "shop.example")
		require.NoError(t, err)

		ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example", Depth: 0})
		ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example/a", Depth: 1})
		ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example/b", Depth: 1})

		first, _ := ds.Next()
		second, _ := ds.Next()
		ds.Visit(first.URL)
		ds.RecordContent(first.URL, "h1")

		snap := ds.Snapshot()
		assert.Equal(t, []string{"https://shop.example"}, snap.Visited)
		assert.Equal(t, []leadscout.FrontierEntry{
			second,
			{URL: "https://shop.example/b", Depth: 1},
		}, snap.Frontier)
		assert.Equal(t, []string{"h1"}, snap.ContentHashes)
		assert.False(t, snap.Completed)
	})

	t.Run("visited URLs are never queued again", func(t *testing.T) {
		t.Parallel()

		a := crawl.NewArena(newMemStates().service())
		ds, err := a.Acquire(context.Background(), "shop.example")
		require.NoError(t, err)

		ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example/a"})
		e, _ := ds.Next()
		assert.Equal(t, 1, ds.Fail(e.URL))
		assert.False(t, ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example/a"}))

		snap := ds.Snapshot()
		assert.Equal(t, []string{"https://shop.example/a"}, snap.Failed)
		assert.Equal(t, 1, snap.Retries["https://shop.example/a"])
	})

	t.Run("checkpoint persists the snapshot", func(t *testing.T) {
		t.Parallel()

		states := newMemStates()
		a := crawl.NewArena(states.service())
		ds, err := a.Acquire(context.Background(), "shop.example")
		require.NoError(t, err)
		ds.Enqueue(leadscout.FrontierEntry{URL: "https://shop.example"})

		require.NoError(t, a.Checkpoint(context.Background(), ds))
		st := states.get("shop.example")
		require.NotNil(t, st)
		assert.Len(t, st.Frontier, 1)
	})
}
