package custom

import (
	"fmt"
	"path/filepath"

	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/types"
)

// wifiFirmwareDirs mirrors original_source's WIFI_FIRMWARE_DIRS: the subset
// of lib/firmware needed for a minimal WiFi-capable live image.
var wifiFirmwareDirs = []string{
	"iwlwifi", "ath10k", "ath11k", "rtlwifi", "rtw88", "rtw89", "brcm", "cypress", "mediatek",
}

func firmwareSourceDir(ctx *types.BuildContext) (string, error) {
	primary := filepath.Join(ctx.Source, "lib/firmware")
	alt := filepath.Join(ctx.Source, "usr/lib/firmware")
	if pathExists(ctx.FS, primary) {
		return primary, nil
	}
	if pathExists(ctx.FS, alt) {
		return alt, nil
	}
	return "", errs.NewMissingInput("firmware directory", "not found under lib/firmware or usr/lib/firmware")
}

// copyWifiFirmware copies a curated subset of lib/firmware for the live
// image, keeping its size down compared to the full firmware tree.
func copyWifiFirmware(ctx *types.BuildContext) error {
	src, err := firmwareSourceDir(ctx)
	if err != nil {
		return err
	}
	dst := filepath.Join(ctx.Staging, "lib/firmware")
	if err := ctx.FS.MkdirAll(dst, 0755); err != nil {
		return err
	}

	for _, dirName := range wifiFirmwareDirs {
		srcDir := filepath.Join(src, dirName)
		if pathExists(ctx.FS, srcDir) {
			if err := copyTree(ctx.FS, srcDir, filepath.Join(dst, dirName)); err != nil {
				return err
			}
		}
	}

	entries, err := ctx.FS.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) >= 8 && name[:8] == "iwlwifi-" {
			destFile := filepath.Join(dst, name)
			if pathExists(ctx.FS, destFile) {
				continue
			}
			data, err := ctx.FS.ReadFile(filepath.Join(src, name))
			if err != nil {
				return err
			}
			if err := ctx.FS.WriteFile(destFile, data, 0644); err != nil {
				return err
			}
		}
	}

	ctx.Logger.Infof("copied WiFi firmware subset")
	return nil
}

// copyAllFirmware copies the entire firmware tree including CPU microcode,
// required for the full ISO: LevitateOS targets arbitrary x86-64 hardware,
// so missing microcode is a hard failure, not a warning.
func copyAllFirmware(ctx *types.BuildContext) error {
	primary := filepath.Join(ctx.Source, "usr/lib/firmware")
	alt := filepath.Join(ctx.Source, "lib/firmware")
	var src string
	switch {
	case pathExists(ctx.FS, primary):
		src = primary
	case pathExists(ctx.FS, alt):
		src = alt
	default:
		return errs.NewMissingInput("firmware directory", "required: LevitateOS is a daily driver for real hardware")
	}

	dst := filepath.Join(ctx.Staging, "usr/lib/firmware")
	if err := ctx.FS.MkdirAll(dst, 0755); err != nil {
		return err
	}
	if err := copyTree(ctx.FS, src, dst); err != nil {
		return err
	}
	ctx.Logger.Infof("copied full firmware tree")

	intelUcodeDst := filepath.Join(dst, "intel-ucode")
	microcodeCtlSrc := filepath.Join(ctx.Source, "usr/share/microcode_ctl/ucode_with_caveats/intel/intel-ucode")
	if pathExists(ctx.FS, microcodeCtlSrc) {
		if err := copyTree(ctx.FS, microcodeCtlSrc, intelUcodeDst); err != nil {
			return err
		}
	}

	amdUcode := filepath.Join(dst, "amd-ucode")
	if err := requireNonEmptyDir(ctx, amdUcode, "AMD microcode"); err != nil {
		return err
	}
	if err := requireNonEmptyDir(ctx, intelUcodeDst, "Intel microcode"); err != nil {
		return err
	}
	return nil
}

func requireNonEmptyDir(ctx *types.BuildContext, dir, label string) error {
	if !pathExists(ctx.FS, dir) {
		return errs.NewInvalidInput(label, fmt.Sprintf("not found at %s; LevitateOS ISO must work on any x86-64 hardware", dir))
	}
	entries, err := ctx.FS.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errs.NewInvalidInput(label, fmt.Sprintf("directory is empty at %s", dir))
	}
	ctx.Logger.Infof("%s: %d files", label, len(entries))
	return nil
}
