package copier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/levitateos/builder/internal/elf"
)

type noDepsRunner struct{}

func (noDepsRunner) Run(name string, args ...string) (string, string, error) { return "", "", nil }
func (noDepsRunner) RunWithDir(dir, name string, args ...string) (string, string, error) {
	return "", "", nil
}
func (noDepsRunner) LookPath(name string) (string, error) { return name, nil }

func TestCopyBinaryWithLibs_StaticallyLinked(t *testing.T) {
	rootfs := t.TempDir()
	staging := t.TempDir()

	binPath := filepath.Join(rootfs, "usr/bin/static-tool")
	if err := os.MkdirAll(filepath.Dir(binPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(binPath, []byte("elf"), 0755); err != nil {
		t.Fatal(err)
	}

	c := New(elf.NewResolver(noDepsRunner{}), nil)
	found, err := c.CopyBinaryWithLibs(rootfs, staging, "static-tool", "usr/bin")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected binary to be found")
	}
	if _, err := os.Stat(filepath.Join(staging, "usr/bin/static-tool")); err != nil {
		t.Fatalf("binary not copied: %v", err)
	}
}

func TestCopyBinary_NotFound(t *testing.T) {
	rootfs := t.TempDir()
	staging := t.TempDir()

	c := New(elf.NewResolver(noDepsRunner{}), nil)
	found, err := c.CopyBinaryWithLibs(rootfs, staging, "nonexistent-xyz", "usr/bin")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected not found")
	}
}

func TestCopyLibrary_SymlinkPreservation(t *testing.T) {
	rootfs := t.TempDir()
	staging := t.TempDir()

	libDir := filepath.Join(rootfs, "usr/lib64")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	realPath := filepath.Join(libDir, "libfoo.so.1.0.0")
	if err := os.WriteFile(realPath, []byte("sharedobj"), 0644); err != nil {
		t.Fatal(err)
	}
	linkPath := filepath.Join(libDir, "libfoo.so.1")
	if err := os.Symlink("libfoo.so.1.0.0", linkPath); err != nil {
		t.Fatal(err)
	}

	c := New(elf.NewResolver(noDepsRunner{}), nil)
	if err := c.CopyLibrary(rootfs, "libfoo.so.1", staging); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(staging, "usr/lib64/libfoo.so.1")
	info, err := os.Lstat(dest)
	if err != nil {
		t.Fatalf("symlink not created: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected destination to be a symlink, not a dereferenced copy")
	}
	target, err := os.Readlink(dest)
	if err != nil {
		t.Fatal(err)
	}
	if target != "libfoo.so.1.0.0" {
		t.Fatalf("symlink target = %q, want %q", target, "libfoo.so.1.0.0")
	}
	if _, err := os.Stat(filepath.Join(staging, "usr/lib64/libfoo.so.1.0.0")); err != nil {
		t.Fatalf("concrete target not copied: %v", err)
	}
}

func TestCopyLibrary_IdempotentOnSecondCall(t *testing.T) {
	rootfs := t.TempDir()
	staging := t.TempDir()

	libDir := filepath.Join(rootfs, "usr/lib64")
	if err := os.MkdirAll(libDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(libDir, "libbar.so.1"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(elf.NewResolver(noDepsRunner{}), nil)
	if err := c.CopyLibrary(rootfs, "libbar.so.1", staging); err != nil {
		t.Fatal(err)
	}
	if err := c.CopyLibrary(rootfs, "libbar.so.1", staging); err != nil {
		t.Fatalf("second call should be a no-op, got error: %v", err)
	}
}
