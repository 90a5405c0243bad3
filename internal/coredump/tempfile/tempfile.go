// Package tempfile provides scoped temp-file acquisition for core-dump
// synthesis. The upstream loader collects temp-file paths in a list that is
// never cleaned up (spec.md §9, "Temporary-file lifecycle"); this package
// instead hands back a handle whose Close removes the backing file on both
// the success and the error path, so callers simply `defer h.Close()`.
package tempfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Handle wraps a temp file path with a guaranteed-once Close.
type Handle struct {
	Path   string
	closed bool
}

// Scoped creates a new empty temp file under dir (os.TempDir() if dir is
// empty), named with a random UUID so concurrent decode operations never
// collide.
func Scoped(dir string) (*Handle, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	name := filepath.Join(dir, fmt.Sprintf("escoredump-%s.tmp", uuid.NewString()))

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	f.Close()

	return &Handle{Path: name}, nil
}

// Write overwrites the temp file's contents.
func (h *Handle) Write(data []byte) error {
	return os.WriteFile(h.Path, data, 0o600)
}

// Close removes the backing file. Safe to call multiple times.
func (h *Handle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return os.Remove(h.Path)
}
