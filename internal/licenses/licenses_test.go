package licenses

import "testing"

func TestTrackerRegistersBinaries(t *testing.T) {
	tr := NewTracker(nil)
	tr.RegisterBinary("bash")
	tr.RegisterBinary("ls")
	tr.RegisterBinary("cat") // also coreutils, deduped

	if got := tr.PackageCount(); got != 2 {
		t.Fatalf("want 2 packages (bash, coreutils), got %d", got)
	}
}

func TestTrackerRegistersLibraries(t *testing.T) {
	tr := NewTracker(nil)
	tr.RegisterLibrary("libc.so.6")
	tr.RegisterLibrary("libpam.so.0")

	if got := tr.PackageCount(); got != 2 {
		t.Fatalf("want 2 packages (glibc, pam), got %d", got)
	}
}

func TestTrackerDeduplicates(t *testing.T) {
	tr := NewTracker(nil)
	tr.RegisterBinary("ls")
	tr.RegisterBinary("cat")
	tr.RegisterBinary("cp")
	tr.RegisterBinary("mv")

	if got := tr.PackageCount(); got != 1 {
		t.Fatalf("want 1 package (coreutils), got %d", got)
	}
}

func TestUnknownBinariesIgnored(t *testing.T) {
	tr := NewTracker(nil)
	tr.RegisterBinary("nonexistent-binary")

	if got := tr.PackageCount(); got != 0 {
		t.Fatalf("want 0 packages, got %d", got)
	}
}

func TestRegisterPackageDirectly(t *testing.T) {
	tr := NewTracker(nil)
	tr.RegisterPackage("linux-firmware")
	tr.RegisterPackage("tzdata")
	tr.RegisterPackage("kbd")

	if got := tr.PackageCount(); got != 3 {
		t.Fatalf("want 3 packages, got %d", got)
	}
}

func TestMixedRegistration(t *testing.T) {
	tr := NewTracker(nil)
	tr.RegisterBinary("bash")
	tr.RegisterLibrary("libc.so.6")
	tr.RegisterPackage("linux-firmware")

	if got := tr.PackageCount(); got != 3 {
		t.Fatalf("want 3 packages, got %d", got)
	}
}
