package packer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeLogger struct{}

func (fakeLogger) Debugf(string, ...interface{}) {}
func (fakeLogger) Infof(string, ...interface{})  {}
func (fakeLogger) Warnf(string, ...interface{})  {}
func (fakeLogger) Errorf(string, ...interface{}) {}
func (fakeLogger) Fatalf(string, ...interface{}) {}

// recordingRunner fakes mksquashfs/mkfs.erofs/xorriso/sha512sum by writing
// a fixed-size payload to whatever output path it's asked to produce,
// recording the exact argv it was invoked with.
type recordingRunner struct {
	calls [][]string
	// outputSize is written to the file found as the packer's declared
	// tmp/output path argument, when non-zero.
	outputSize int
	// stdout is returned verbatim from Run/RunWithDir.
	stdout string
}

func (r *recordingRunner) Run(name string, args ...string) (string, string, error) {
	return r.RunWithDir("", name, args...)
}

func (r *recordingRunner) RunWithDir(dir, name string, args ...string) (string, string, error) {
	r.calls = append(r.calls, append([]string{name}, args...))

	switch name {
	case "mksquashfs":
		return "", "", os.WriteFile(args[1], make([]byte, r.outputSize), 0644)
	case "mkfs.erofs":
		return "", "", os.WriteFile(args[0], make([]byte, r.outputSize), 0644)
	case "xorriso":
		for i, a := range args {
			if a == "-o" {
				return "", "", os.WriteFile(args[i+1], make([]byte, r.outputSize), 0644)
			}
		}
	case "sha512sum":
		return r.stdout, "", nil
	}
	return "", "", nil
}

func (r *recordingRunner) LookPath(name string) (string, error) { return name, nil }

func TestPackImage_Squashfs_InvokesMksquashfsWithDefaultOptions(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "filesystem.squashfs")

	runner := &recordingRunner{outputSize: 2 << 20}
	p := New(runner, fakeLogger{})

	if err := p.PackImage(FormatSquashfs, root, dest); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 || runner.calls[0][0] != "mksquashfs" {
		t.Fatalf("expected a single mksquashfs invocation, got %v", runner.calls)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Fatalf("expected final squashfs artifact: %v", err)
	}
}

func TestPackImage_UndersizedOutputFailsAtomically(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root")
	os.MkdirAll(root, 0755)
	dest := filepath.Join(dir, "filesystem.squashfs")

	runner := &recordingRunner{outputSize: 10} // far under the 1 MiB floor
	p := New(runner, fakeLogger{})

	if err := p.PackImage(FormatSquashfs, root, dest); err == nil {
		t.Fatal("expected failure for undersized image")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("final artifact must not exist after a failed pack")
	}
}

func TestChecksum_WritesSha512sumOutput(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "levitateos.iso")
	if err := os.WriteFile(artifact, []byte("iso-bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	dest := filepath.Join(dir, "levitateos.iso.sha512")

	runner := &recordingRunner{stdout: "deadbeef  levitateos.iso\n"}
	p := New(runner, fakeLogger{})

	if err := p.Checksum(artifact, dest); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "deadbeef") {
		t.Fatalf("expected checksum file to contain the digest, got %q", data)
	}
}

func TestAuthorISO_BuildsXorrisoArgsWithVolumeLabel(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "iso-root")
	os.MkdirAll(root, 0755)
	dest := filepath.Join(dir, "levitateos.iso")

	runner := &recordingRunner{outputSize: 128 << 20}
	p := New(runner, fakeLogger{})

	spec := ISOSpec{
		Root:        root,
		BootFile:    "boot/grub/i386-pc/eltorito.img",
		BootCatalog: "boot.catalog",
		HybridMBR:   "boot/grub/i386-pc/boot_hybrid.img",
		EFIImage:    "EFI/BOOT/efiboot.img",
		OutputPath:  dest,
	}

	if err := p.AuthorISO(spec); err != nil {
		t.Fatal(err)
	}
	if len(runner.calls) != 1 || runner.calls[0][0] != "xorriso" {
		t.Fatalf("expected a single xorriso invocation, got %v", runner.calls)
	}

	argSet := make(map[string]bool)
	for _, a := range runner.calls[0] {
		argSet[a] = true
	}
	for _, want := range []string{"LEVITATEOS", "-isohybrid-gpt-basdat", "-e", "-eltorito-alt-boot", "-b"} {
		if !argSet[want] {
			t.Fatalf("expected %q in xorriso args: %v", want, runner.calls[0])
		}
	}
	if !argSet["EFI/BOOT/efiboot.img"] {
		t.Fatalf("expected the EFI image path after -e: %v", runner.calls[0])
	}
}

func TestAuthorISO_UEFIOnlyOmitsBIOSBootEntry(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "iso-root")
	os.MkdirAll(root, 0755)

	runner := &recordingRunner{outputSize: 128 << 20}
	p := New(runner, fakeLogger{})

	err := p.AuthorISO(ISOSpec{
		Root:       root,
		EFIImage:   "EFI/BOOT/efiboot.img",
		OutputPath: filepath.Join(dir, "levitateos.iso"),
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range runner.calls[0] {
		if a == "-b" || a == "-eltorito-alt-boot" {
			t.Fatalf("expected no BIOS El Torito args for a UEFI-only spec: %v", runner.calls[0])
		}
	}
}
