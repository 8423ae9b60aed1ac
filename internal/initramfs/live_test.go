package initramfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/types"
)

type fakeLogger struct{}

func (fakeLogger) Debugf(string, ...interface{}) {}
func (fakeLogger) Infof(string, ...interface{})  {}
func (fakeLogger) Warnf(string, ...interface{})  {}
func (fakeLogger) Errorf(string, ...interface{}) {}
func (fakeLogger) Fatalf(string, ...interface{}) {}

type fakeBusyboxTransport struct{ payload []byte }

func (f *fakeBusyboxTransport) Fetch(_ string, destPath string) error {
	return os.WriteFile(destPath, f.payload, 0755)
}

func newResolverWithBusybox(t *testing.T, payload []byte) *deps.Resolver {
	t.Helper()
	base := t.TempDir()
	cache := t.TempDir()
	r := deps.New(base, "test", fakeLogger{}, nil, &fakeBusyboxTransport{payload: payload})
	r.CacheDir = cache
	return r
}

func TestLiveBuilder_InstallBusybox_CreatesAppletSymlinks(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "bin"), 0755); err != nil {
		t.Fatal(err)
	}

	b := &LiveBuilder{
		Logger:     fakeLogger{},
		Resolver:   newResolverWithBusybox(t, []byte("#!busybox-binary-payload")),
		BusyboxURL: "https://example.invalid/busybox",
	}

	if err := b.installBusybox(root); err != nil {
		t.Fatal(err)
	}

	for _, applet := range []string{"sh", "mount", "switch_root"} {
		link := filepath.Join(root, "bin", applet)
		target, err := os.Readlink(link)
		if err != nil {
			t.Fatalf("expected %s to be a symlink: %v", applet, err)
		}
		if target != "busybox" {
			t.Fatalf("expected applet %s to link to busybox, got %s", applet, target)
		}
	}
}

func TestLiveBuilder_InstallModules_UpstreamMissingModuleFails(t *testing.T) {
	dir := t.TempDir()
	modulesDir := filepath.Join(dir, "modules")
	kver := "6.12.3-levitate"
	if err := os.MkdirAll(filepath.Join(modulesDir, kver, "kernel/fs/squashfs"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modulesDir, kver, "kernel/fs/squashfs/squashfs.ko"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	b := &LiveBuilder{Logger: fakeLogger{}}
	spec := LiveSpec{
		WorkDir:       t.TempDir(),
		ModulesDir:    modulesDir,
		KernelVersion: kver,
		Custom:        false,
	}

	err := b.installModules(spec)
	if err == nil {
		t.Fatal("expected failure: most BootModules are not present in the fixture tree")
	}
}

func TestLiveBuilder_InstallModules_CustomKernelSkipsBuiltin(t *testing.T) {
	dir := t.TempDir()
	modulesDir := filepath.Join(dir, "modules")
	kver := "6.12.3-levitate"
	if err := os.MkdirAll(filepath.Join(modulesDir, kver), 0755); err != nil {
		t.Fatal(err)
	}

	builtinFile := filepath.Join(dir, "modules.builtin")
	var builtinList string
	for _, m := range BootModules {
		builtinList += "kernel/fs/" + m + "/" + m + ".ko\n"
	}
	if err := os.WriteFile(builtinFile, []byte(builtinList), 0644); err != nil {
		t.Fatal(err)
	}

	b := &LiveBuilder{Logger: fakeLogger{}}
	spec := LiveSpec{
		WorkDir:        t.TempDir(),
		ModulesDir:     modulesDir,
		KernelVersion:  kver,
		ModulesBuiltin: builtinFile,
		Custom:         true,
	}

	if err := b.installModules(spec); err != nil {
		t.Fatalf("expected all boot modules to resolve as built-in, got: %v", err)
	}
}

func TestLiveBuilder_WriteInit_RendersTemplate(t *testing.T) {
	root := t.TempDir()
	b := &LiveBuilder{Logger: fakeLogger{}}
	if err := b.writeInit(root); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(root, "init"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !contains(content, "switch_root") {
		t.Fatalf("expected rendered init to contain switch_root, got:\n%s", content)
	}
	if contains(content, "{{") {
		t.Fatalf("expected all template placeholders substituted, got:\n%s", content)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}

var _ types.Logger = fakeLogger{}
