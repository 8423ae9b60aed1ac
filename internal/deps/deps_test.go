package deps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/levitateos/builder/internal/types"
)

type fakeTransport struct {
	fetched []string
	write   string
}

func (f *fakeTransport) Fetch(url, destPath string) error {
	f.fetched = append(f.fetched, url)
	return os.WriteFile(destPath, []byte(f.write), 0644)
}

func TestResolve_EnvVarWins(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "kernel-src")
	if err := os.MkdirAll(target, 0755); err != nil {
		t.Fatal(err)
	}

	const envVar = "LEVITATE_TEST_KERNEL_SRC"
	t.Setenv(envVar, target)

	r := &Resolver{BaseDir: dir, CacheDir: filepath.Join(dir, "cache"), Logger: types.NewLogger(false)}
	got, err := r.Resolve(Descriptor{Name: "kernel", EnvVar: envVar})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceEnvVar || got.Path != target {
		t.Fatalf("got %+v, want env-var resolution to %s", got, target)
	}
}

func TestResolve_FallsBackToDownload(t *testing.T) {
	dir := t.TempDir()
	ft := &fakeTransport{write: "payload"}

	r := &Resolver{
		BaseDir:   dir,
		CacheDir:  filepath.Join(dir, "cache"),
		Logger:    types.NewLogger(false),
		Transport: ft,
	}

	got, err := r.Resolve(Descriptor{Name: "busybox", URL: "https://example.invalid/busybox"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceDownloaded {
		t.Fatalf("expected SourceDownloaded, got %s", got.Source)
	}
	if len(ft.fetched) != 1 {
		t.Fatalf("expected exactly one fetch attempt, got %d", len(ft.fetched))
	}
}

func TestResolve_ChecksumMismatchFails(t *testing.T) {
	dir := t.TempDir()
	ft := &fakeTransport{write: "payload"}

	r := &Resolver{
		BaseDir:   dir,
		CacheDir:  filepath.Join(dir, "cache"),
		Logger:    types.NewLogger(false),
		Transport: ft,
	}

	_, err := r.Resolve(Descriptor{
		Name:   "busybox",
		URL:    "https://example.invalid/busybox",
		SHA256: "0000000000000000000000000000000000000000000000000000000000000",
	})
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}
