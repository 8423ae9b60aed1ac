package rebuildcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

type memBackend struct {
	store map[string]string
}

func newMemBackend() *memBackend { return &memBackend{store: make(map[string]string)} }

func (m *memBackend) Load(artifact string) (string, bool, error) {
	fp, ok := m.store[artifact]
	return fp, ok, nil
}

func (m *memBackend) Store(artifact, fingerprint, runID string) error {
	m.store[artifact] = fingerprint
	return nil
}

func (m *memBackend) Close() error { return nil }

func TestFingerprint_Deterministic(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "a")
	if err := os.WriteFile(f, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	inputs := []Input{FilePath(f), Literal("x=1")}
	d1, err := Fingerprint(inputs)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := Fingerprint(inputs)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatalf("fingerprint not deterministic: %s != %s", d1, d2)
	}
}

func TestCache_StaleUntilMarkedBuilt(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "artifact.img")
	if err := os.WriteFile(out, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	cache := NewWithBackend(newMemBackend(), nil)
	inputs := []Input{Literal("v1")}

	stale, digest, err := cache.IsStale("artifact", out, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Fatal("expected stale on first check, no fingerprint recorded yet")
	}

	if err := cache.MarkBuilt("artifact", digest, uuid.New()); err != nil {
		t.Fatal(err)
	}

	stale, _, err = cache.IsStale("artifact", out, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if stale {
		t.Fatal("expected fresh after MarkBuilt with unchanged inputs")
	}
}

func TestCache_StaleWhenOutputMissing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "missing.img")

	cache := NewWithBackend(newMemBackend(), nil)
	inputs := []Input{Literal("v1")}

	_, digest, _ := cache.IsStale("artifact", out, inputs)
	_ = cache.MarkBuilt("artifact", digest, uuid.New())

	stale, _, err := cache.IsStale("artifact", out, inputs)
	if err != nil {
		t.Fatal(err)
	}
	if !stale {
		t.Fatal("expected stale when output file does not exist even with a matching fingerprint")
	}
}
