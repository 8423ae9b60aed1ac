package packer

import (
	"bytes"
	"debug/pe"
	"os"
	"path/filepath"

	efi "github.com/canonical/go-efilib"
	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/atomicfile"
	"github.com/levitateos/builder/internal/constants"
)

// EFIImageSpec names the loader binaries copied into the FAT EFI boot
// image, per spec.md §4.8 "EFI boot image".
type EFIImageSpec struct {
	OutputPath  string // the 16 MiB image file to create
	Bootloader  string // path to BOOTX64.EFI on the build host
	GrubLoader  string // path to grubx64.efi on the build host
	GrubCfgPath string // path to the rendered grub.cfg
}

// BuildEFIImage allocates a zero-filled FAT16 image, formats it, and
// copies the EFI loader chain into /EFI/BOOT. Uses the external FAT
// utilities (mkfs.fat/mmd/mcopy) rather than a pure-Go FAT writer, per
// spec.md §6's host-tool list.
func (p *Packer) BuildEFIImage(spec EFIImageSpec) error {
	if err := validatePECOFF(spec.Bootloader); err != nil {
		return errors.Wrap(err, "validating BOOTX64.EFI")
	}
	if err := validatePECOFF(spec.GrubLoader); err != nil {
		return errors.Wrap(err, "validating grubx64.efi")
	}
	if err := describeBootEntry(spec); err != nil {
		p.Logger.Warnf("could not encode EFI boot load-option metadata: %v", err)
	}

	const minEFIImageSize = constants.EFIImageSizeMiB << 20

	return atomicfile.Write(spec.OutputPath, minEFIImageSize, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if err := f.Truncate(constants.EFIImageSizeMiB << 20); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}

		if _, stderr, err := p.Runner.Run("mkfs.fat", "-F", "16", tmp); err != nil {
			return errors.Wrapf(err, "mkfs.fat: %s", stderr)
		}
		if _, stderr, err := p.Runner.Run("mmd", "-i", tmp, "::EFI", "::EFI/BOOT"); err != nil {
			return errors.Wrapf(err, "mmd: %s", stderr)
		}

		copies := []struct{ src, dst string }{
			{spec.Bootloader, "::EFI/BOOT/" + constants.EfiBootloaderX64},
			{spec.GrubLoader, "::EFI/BOOT/" + constants.EfiGrubX64},
			{spec.GrubCfgPath, "::EFI/BOOT/" + constants.EfiGrubCfg},
		}
		for _, c := range copies {
			if _, stderr, err := p.Runner.Run("mcopy", "-i", tmp, c.src, c.dst); err != nil {
				return errors.Wrapf(err, "mcopy %s: %s", filepath.Base(c.src), stderr)
			}
		}
		return nil
	})
}

// validatePECOFF confirms path is a well-formed PE/COFF EFI application
// before it is baked into the boot image: a truncated or misnamed download
// should fail here rather than produce an unbootable ISO.
func validatePECOFF(path string) error {
	f, err := pe.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s as PE/COFF", path)
	}
	defer f.Close()

	if f.Machine != pe.IMAGE_FILE_MACHINE_AMD64 && f.Machine != pe.IMAGE_FILE_MACHINE_ARM64 {
		return errors.Errorf("%s has unexpected PE machine type %#x", path, f.Machine)
	}
	return nil
}

// describeBootEntry encodes a best-effort UEFI load-option description for
// the bootloader entry using go-efilib's LoadOption codec. The result is
// informational only (logged, not written to an NVRAM variable store,
// since this pipeline never runs against live firmware) — it exists so the
// packer can surface a malformed device path before burning an ISO.
func describeBootEntry(spec EFIImageSpec) error {
	dp := efi.DevicePath{
		efi.FilePathDevicePathNode("\\EFI\\BOOT\\" + constants.EfiBootloaderX64),
	}

	opt := &efi.LoadOption{
		Attributes:  efi.LoadOptionActive,
		Description: "LevitateOS",
		FilePath:    dp,
	}

	var buf bytes.Buffer
	return opt.Write(&buf)
}
