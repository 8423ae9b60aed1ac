package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
)

type okRunner struct{}

func (okRunner) Run(name string, args ...string) (string, string, error) { return "", "", nil }
func (okRunner) RunWithDir(dir, name string, args ...string) (string, string, error) {
	return "", "", nil
}
func (okRunner) LookPath(name string) (string, error) { return "/usr/bin/" + name, nil }

// End-to-end scenario 3: partial upstream ISO.
func TestCheckUpstreamISO_PartialDownloadFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Rocky-10.1-x86_64-dvd1.iso")
	// 3 GB file, well under the threshold but large enough that this test
	// doesn't actually allocate a massive amount of disk (sparse file).
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(3 * 1024 * 1024 * 1024); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r := New(okRunner{}, nil)
	report := &Report{}
	r.checkUpstreamISO(report, path)

	if report.OK() {
		t.Fatal("expected Fail for a 3GB ISO below the 7GB floor")
	}
	found := false
	for _, c := range report.Checks {
		if c.Status == Fail && strings.Contains(c.Message, "likely partial download") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a partial-download failure message, got %+v", report.Checks)
	}
}

// End-to-end scenario 4: kconfig missing a critical option.
func TestCheckKconfig_MissingCriticalOption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kconfig")

	var b strings.Builder
	for i := 0; i < 2000; i++ {
		b.WriteString("CONFIG_DUMMY_")
		b.WriteString(strings.Repeat("X", 1))
		b.WriteString("=y\n")
	}
	b.WriteString("CONFIG_OVERLAY_FS=y\n")
	b.WriteString("CONFIG_BLK_DEV_LOOP=y\n")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(okRunner{}, nil)
	report := &Report{}
	r.checkKconfig(report, path)

	if report.OK() {
		t.Fatal("expected Fail when CONFIG_SQUASHFS is missing")
	}
	if !strings.Contains(report.Checks[0].Message, "CONFIG_SQUASHFS") {
		t.Fatalf("expected message naming CONFIG_SQUASHFS, got %q", report.Checks[0].Message)
	}
}

// End-to-end scenario 5: init script without a shebang.
func TestCheckInitScript_NoShebangFails(t *testing.T) {
	g := NewWithT(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "init_tiny")
	g.Expect(os.WriteFile(path, []byte("# just a comment\nmount /dev\nswitch_root\n"), 0644)).To(Succeed())

	r := New(okRunner{}, nil)
	report := &Report{}
	r.checkInitScript(report, path)

	g.Expect(report.OK()).To(BeFalse(), "expected Fail for a missing shebang")
	g.Expect(report.Checks[0].Message).To(ContainSubstring("No shebang found"))
}
