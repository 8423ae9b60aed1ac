package packer

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePECOFF_RejectsNonPEFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "BOOTX64.EFI")
	if err := os.WriteFile(path, []byte("not a PE binary"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := validatePECOFF(path); err == nil {
		t.Fatal("expected a non-PE file to fail validation")
	}
}
