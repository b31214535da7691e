// Package fs writes the line-delimited pipeline exports to a data directory.
package fs

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/leadscout"
)

// stage writes a directory with atomic replace semantics. Files are written
// to a temporary sibling, then moved into place on Commit.
type stage struct {
	final string
}

func newStage(final string) (*stage, error) {
	s := &stage{final: final}
	if err := os.RemoveAll(s.tempDir()); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.tempDir(), 0755); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stage) tempDir() string {
	return s.final + ".tmp"
}

func (s *stage) path(name string) string {
	return filepath.Join(s.tempDir(), name)
}

func (s *stage) Commit() error {
	if err := os.RemoveAll(s.final); err != nil {
		return err
	}
	return os.Rename(s.tempDir(), s.final)
}

func (s *stage) Abort() error {
	return os.RemoveAll(s.tempDir())
}

// writeFile replaces path atomically with whatever fill writes.
func writeFile(path string, fill func(w io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err := fill(f); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// writeJSONL writes one JSON document per line.
func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// domainPath validates a domain for use as a path element.
func domainPath(domain string) (string, error) {
	if domain == "" {
		return "", leadscout.Errorf(leadscout.EINVALID, "domain required")
	}
	if strings.ContainsAny(domain, `/\`) || strings.Contains(domain, "..") || domain != filepath.Clean(domain) {
		return "", leadscout.Errorf(leadscout.EINVALID, "path traversal in domain %q", domain)
	}
	return domain, nil
}
