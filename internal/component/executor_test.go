package component

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/levitateos/builder/internal/copier"
	"github.com/levitateos/builder/internal/elf"
	"github.com/levitateos/builder/internal/licenses"
	"github.com/levitateos/builder/internal/types"
)

type noDepsRunner struct{}

func (noDepsRunner) Run(name string, args ...string) (string, string, error) { return "", "", nil }
func (noDepsRunner) RunWithDir(dir, name string, args ...string) (string, string, error) {
	return "", "", nil
}
func (noDepsRunner) LookPath(name string) (string, error) { return name, nil }

type noopDispatcher struct{ called []CustomOp }

func (d *noopDispatcher) Dispatch(ctx *types.BuildContext, tracker *licenses.Tracker, tag CustomOp) error {
	d.called = append(d.called, tag)
	return nil
}

func newTestExecutor() (*Executor, *noopDispatcher) {
	cp := copier.New(elf.NewResolver(noDepsRunner{}), nil)
	d := &noopDispatcher{}
	return NewExecutor(cp, d), d
}

func newTestContext(t *testing.T) *types.BuildContext {
	t.Helper()
	return &types.BuildContext{
		Source:  t.TempDir(),
		Staging: t.TempDir(),
		Logger:  types.NewLogger(false),
		FS:      types.NewFS(),
	}
}

// End-to-end scenario 1: a single missing required binary fails the build.
func TestExecuteComponent_MissingBinaryFails(t *testing.T) {
	g := NewWithT(t)
	exec, _ := newTestExecutor()
	ctx := newTestContext(t)

	comp := New("test-missing-bin", PhaseBinaries, Bin("nonexistent-tool"))
	err := exec.ExecuteComponent(ctx, nil, comp)
	g.Expect(err).To(HaveOccurred())
}

// End-to-end scenario 2: Bins aggregates every missing name before failing.
func TestExecuteComponent_BinsAggregatesMissingNames(t *testing.T) {
	g := NewWithT(t)
	exec, _ := newTestExecutor()
	ctx := newTestContext(t)

	// one present, two missing
	present := filepath.Join(ctx.Source, "usr/bin/present-tool")
	g.Expect(os.MkdirAll(filepath.Dir(present), 0755)).To(Succeed())
	g.Expect(os.WriteFile(present, []byte("elf"), 0755)).To(Succeed())

	comp := New("test-missing-bins", PhaseBinaries, Bins("present-tool", "missing-one", "missing-two"))
	err := exec.ExecuteComponent(ctx, nil, comp)
	g.Expect(err).To(HaveOccurred())
	g.Expect(err.Error()).To(And(ContainSubstring("missing-one"), ContainSubstring("missing-two")))
}

func TestExecuteComponent_DirAndWriteFile(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx := newTestContext(t)

	comp := New("test-fs-ops", PhaseFilesystem,
		Dir("etc/levitate"),
		WriteFile("etc/levitate/release", "1.0\n"),
	)
	if err := exec.ExecuteComponent(ctx, nil, comp); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(ctx.Staging, "etc/levitate/release"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "1.0\n" {
		t.Fatalf("got %q", data)
	}
}

// End-to-end scenario 6: CopyTree preserves symlinks literally.
func TestExecuteComponent_CopyTreePreservesSymlinks(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx := newTestContext(t)

	srcDir := filepath.Join(ctx.Source, "usr/share/zoneinfo")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "UTC"), []byte("tz"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("UTC", filepath.Join(srcDir, "Etc-UTC")); err != nil {
		t.Fatal(err)
	}

	comp := New("test-copy-tree", PhaseConfig, CopyTree("usr/share/zoneinfo"))
	if err := exec.ExecuteComponent(ctx, nil, comp); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(ctx.Staging, "usr/share/zoneinfo/Etc-UTC")
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("symlink not copied: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Fatal("expected a symlink, got a dereferenced file")
	}
}

func TestExecuteComponent_CustomOpDispatches(t *testing.T) {
	exec, d := newTestExecutor()
	ctx := newTestContext(t)

	comp := New("test-custom", PhaseFinal, Custom(CreateFhsSymlinks))
	if err := exec.ExecuteComponent(ctx, nil, comp); err != nil {
		t.Fatal(err)
	}
	if len(d.called) != 1 || d.called[0] != CreateFhsSymlinks {
		t.Fatalf("expected CreateFhsSymlinks dispatched, got %v", d.called)
	}
}

// Failures are annotated with the component name and the offending op.
func TestExecuteComponent_AnnotatesFailureWithComponentAndOp(t *testing.T) {
	exec, _ := newTestExecutor()
	ctx := newTestContext(t)

	comp := New("widget-installer", PhaseBinaries, Bin("totally-absent"))
	err := exec.ExecuteComponent(ctx, nil, comp)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !contains(msg, "widget-installer") {
		t.Fatalf("expected component name in error, got: %s", msg)
	}
	if !contains(msg, "Bin(totally-absent)") {
		t.Fatalf("expected offending op in error, got: %s", msg)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
