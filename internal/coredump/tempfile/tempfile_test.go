package tempfile

import (
	"os"
	"testing"
)

func TestScopedWriteCloseRemovesFile(t *testing.T) {
	h, err := Scoped(t.TempDir())
	if err != nil {
		t.Fatalf("Scoped: %v", err)
	}
	if _, err := os.Stat(h.Path); err != nil {
		t.Fatalf("expected the temp file to exist after Scoped: %v", err)
	}

	if err := h.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(h.Path)
	if err != nil || string(got) != "payload" {
		t.Fatalf("ReadFile = (%q, %v), want (\"payload\", nil)", got, err)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(h.Path); !os.IsNotExist(err) {
		t.Error("expected the temp file to be removed after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h, err := Scoped(t.TempDir())
	if err != nil {
		t.Fatalf("Scoped: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}
}

func TestScopedNamesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a, err := Scoped(dir)
	if err != nil {
		t.Fatalf("Scoped a: %v", err)
	}
	defer a.Close()
	b, err := Scoped(dir)
	if err != nil {
		t.Fatalf("Scoped b: %v", err)
	}
	defer b.Close()

	if a.Path == b.Path {
		t.Error("expected two Scoped calls to produce distinct paths")
	}
}
