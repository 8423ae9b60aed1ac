package elf

import (
	"os"
	"path/filepath"
	"testing"
)

// stubRunner returns canned readelf output per binary path, so Closure can
// be exercised without a real ELF toolchain.
type stubRunner struct {
	needed map[string][]string
}

func (s *stubRunner) Run(name string, args ...string) (string, string, error) {
	path := args[len(args)-1]
	libs := s.needed[path]
	if libs == nil {
		return "", "", nil
	}
	out := "Dynamic section at offset 0x0 contains 1 entries:\n"
	for _, l := range libs {
		out += " 0x1 (NEEDED)             Shared library: [" + l + "]\n"
	}
	return out, "", nil
}

func (s *stubRunner) RunWithDir(dir, name string, args ...string) (string, string, error) {
	return s.Run(name, args...)
}

func (s *stubRunner) LookPath(name string) (string, error) { return name, nil }

func TestClosureIsDeterministic(t *testing.T) {
	rootfs := t.TempDir()
	mustWrite := func(rel string) string {
		p := filepath.Join(rootfs, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	binPath := mustWrite("usr/bin/demo")
	libAPath := mustWrite("usr/lib64/liba.so.1")
	mustWrite("usr/lib64/libb.so.1")

	runner := &stubRunner{needed: map[string][]string{
		binPath:  {"liba.so.1"},
		libAPath: {"libb.so.1"},
	}}

	r := NewResolver(runner)

	first, err := r.Closure(rootfs, binPath)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Closure(rootfs, binPath)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("want closure {liba.so.1, libb.so.1}, got first=%v second=%v", first, second)
	}
	for lib := range first {
		if _, ok := second[lib]; !ok {
			t.Fatalf("closure not deterministic: %v vs %v", first, second)
		}
	}
}

func TestParseReadelfOutput(t *testing.T) {
	output := `
Dynamic section at offset 0x2d0e0 contains 28 entries:
  Tag        Type                         Name/Value
 0x0000000000000001 (NEEDED)             Shared library: [libtinfo.so.6]
 0x0000000000000001 (NEEDED)             Shared library: [libc.so.6]
 0x000000000000000c (INIT)               0x5000
`
	libs := parseReadelfOutput(output)
	want := []string{"libtinfo.so.6", "libc.so.6"}
	if len(libs) != len(want) {
		t.Fatalf("got %v, want %v", libs, want)
	}
	for i := range want {
		if libs[i] != want[i] {
			t.Fatalf("got %v, want %v", libs, want)
		}
	}
}

func TestParseReadelfEmpty(t *testing.T) {
	libs := parseReadelfOutput("not an ELF file")
	if len(libs) != 0 {
		t.Fatalf("want empty, got %v", libs)
	}
}
