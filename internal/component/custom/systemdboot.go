package custom

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/types"
)

// copySystemdBootEfi extracts the EFI bootloader stubs from the
// systemd-boot-unsigned RPM shipped on the upstream ISO. Extraction goes
// through rpm2cpio piped into an intermediate archive file and cpio -F
// (reads an archive path, not stdin), keeping every step an argument-list
// invocation with no shell interpolation.
func copySystemdBootEfi(ctx *types.BuildContext) error {
	rpmDir := filepath.Join(ctx.BaseDir, "downloads/iso-contents/AppStream/Packages/s")
	entries, err := ctx.FS.ReadDir(rpmDir)
	if err != nil {
		return errs.NewMissingInput("systemd-boot-unsigned RPM directory", rpmDir)
	}

	var rpmPath string
	for _, entry := range entries {
		if strings.Contains(entry.Name(), "systemd-boot-unsigned") {
			rpmPath = filepath.Join(rpmDir, entry.Name())
			break
		}
	}
	if rpmPath == "" {
		return errs.NewMissingInput("systemd-boot-unsigned RPM", fmt.Sprintf("not found in %s; required for bootctl install", rpmDir))
	}

	tempDir := filepath.Join(ctx.BaseDir, "output/.systemd-boot-extract")
	if pathExists(ctx.FS, tempDir) {
		if err := ctx.FS.RemoveAll(tempDir); err != nil {
			return err
		}
	}
	if err := ctx.FS.MkdirAll(tempDir, 0755); err != nil {
		return err
	}

	archivePath := filepath.Join(tempDir, "payload.cpio")
	stdout, _, err := ctx.Runner.Run("rpm2cpio", rpmPath)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", rpmPath, err)
	}
	if err := ctx.FS.WriteFile(archivePath, []byte(stdout), 0644); err != nil {
		return err
	}

	if _, _, err := ctx.Runner.RunWithDir(tempDir, "cpio", "-idm", "-F", archivePath); err != nil {
		return fmt.Errorf("extracting cpio payload from %s: %w", rpmPath, err)
	}

	efiSrc := filepath.Join(tempDir, "usr/lib/systemd/boot/efi")
	efiDst := filepath.Join(ctx.Staging, "usr/lib/systemd/boot/efi")
	if !pathExists(ctx.FS, efiSrc) {
		return errs.NewInvalidInput("systemd-boot RPM contents", fmt.Sprintf("EFI files not found in extracted RPM at %s", tempDir))
	}
	if err := copyTree(ctx.FS, efiSrc, efiDst); err != nil {
		return err
	}

	_ = ctx.FS.RemoveAll(tempDir)
	ctx.Logger.Infof("copied systemd-boot EFI files")
	return nil
}
