package kernel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestApplyKconfig_OverrideProducesSingleLine(t *testing.T) {
	dir := t.TempDir()
	dotConfig := filepath.Join(dir, ".config")
	if err := os.WriteFile(dotConfig, []byte(
		"CONFIG_SQUASHFS=y\nCONFIG_FOO=y\n# CONFIG_BAR is not set\n"), 0644); err != nil {
		t.Fatal(err)
	}

	kconfig := filepath.Join(dir, "kconfig")
	if err := os.WriteFile(kconfig, []byte("CONFIG_SQUASHFS=m\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b := &Builder{}
	if err := b.applyKconfig(dir, kconfig); err != nil {
		t.Fatal(err)
	}

	out, err := os.ReadFile(dotConfig)
	if err != nil {
		t.Fatal(err)
	}
	count := strings.Count(string(out), "CONFIG_SQUASHFS")
	if count != 1 {
		t.Fatalf("expected exactly one CONFIG_SQUASHFS line, found %d in:\n%s", count, out)
	}
	if !strings.Contains(string(out), "CONFIG_SQUASHFS=m") {
		t.Fatalf("expected overridden value CONFIG_SQUASHFS=m, got:\n%s", out)
	}
	if !strings.Contains(string(out), "CONFIG_FOO=y") {
		t.Fatalf("expected untouched CONFIG_FOO=y to survive, got:\n%s", out)
	}
}

func TestKernelVersion_FallsBackToMakefile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte(
		"VERSION = 6\nPATCHLEVEL = 12\nSUBLEVEL = 3\nEXTRAVERSION = -levitate\nNAME = Test\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b := &Builder{}
	v, err := b.kernelVersion(dir, dir)
	if err != nil {
		t.Fatal(err)
	}
	if v != "6.12.3-levitate" {
		t.Fatalf("got %q, want 6.12.3-levitate", v)
	}
}

func TestKernelVersion_PrefersKernelRelease(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "include/config"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "include/config/kernel.release"), []byte("6.12.3-levitate\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b := &Builder{}
	v, err := b.kernelVersion(dir, dir)
	if err != nil {
		t.Fatal(err)
	}
	if v != "6.12.3-levitate" {
		t.Fatalf("got %q, want 6.12.3-levitate", v)
	}
}
