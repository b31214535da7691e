package main_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwojciec/leadscout"
	main "github.com/fwojciec/leadscout/cmd/leadscout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commands = []string{
	"discover", "vet", "revet", "crawl", "extract", "embed", "search",
	"ask", "chat", "run", "status", "serve", "mcp", "export",
}

// newMain returns a Main with an empty environment and a config file that
// points the database into a temp dir.
func newMain(t *testing.T) (*main.Main, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "leadscout.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("db: "+filepath.Join(dir, "db", "test.db")+"\ndata: "+filepath.Join(dir, "data")+"\n"), 0o644))

	m := main.NewMain()
	m.Getenv = func(string) string { return "" }
	return m, cfg
}

func TestMain_Run(t *testing.T) {
	t.Parallel()

	t.Run("help lists every command", func(t *testing.T) {
		t.Parallel()

		m, _ := newMain(t)
		stdout := &bytes.Buffer{}
		err := m.Run(context.Background(), []string{"--help"}, nil, stdout, &bytes.Buffer{})
		require.NoError(t, err)

		for _, cmd := range commands {
			assert.Contains(t, stdout.String(), cmd)
		}
		assert.Contains(t, stdout.String(), "Usage:")
	})

	t.Run("no command is invalid", func(t *testing.T) {
		t.Parallel()

		m, _ := newMain(t)
		err := m.Run(context.Background(), nil, nil, &bytes.Buffer{}, &bytes.Buffer{})
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})

	t.Run("status on an empty database", func(t *testing.T) {
		t.Parallel()

		m, cfg := newMain(t)
		stdout := &bytes.Buffer{}
		err := m.Run(context.Background(), []string{"--config", cfg, "status"}, nil, stdout, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Contains(t, stdout.String(), "No domains found")
	})

	t.Run("search needs an API key", func(t *testing.T) {
		t.Parallel()

		m, cfg := newMain(t)
		stderr := &bytes.Buffer{}
		err := m.Run(context.Background(), []string{"--config", cfg, "search", "goalkeeper gloves"}, nil, &bytes.Buffer{}, stderr)

		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
		assert.Contains(t, leadscout.ErrorMessage(err), "GEMINI_API_KEY")
		assert.Contains(t, stderr.String(), "Hint:")
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		m, _ := newMain(t)
		err := m.Run(context.Background(), []string{"--config", filepath.Join(t.TempDir(), "nope.yaml"), "status"}, nil, &bytes.Buffer{}, &bytes.Buffer{})
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
	})

	t.Run("unknown search engine", func(t *testing.T) {
		t.Parallel()

		m, cfg := newMain(t)
		f, err := os.OpenFile(cfg, os.O_APPEND|os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = f.WriteString("discovery:\n  engines: [altavista]\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		err = m.Run(context.Background(), []string{"--config", cfg, "discover", "gloves", "--dry-run"}, nil, &bytes.Buffer{}, &bytes.Buffer{})
		assert.Equal(t, leadscout.EINVALID, leadscout.ErrorCode(err))
		assert.Contains(t, leadscout.ErrorMessage(err), "altavista")
	})
}
