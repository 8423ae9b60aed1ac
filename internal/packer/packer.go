// Package packer implements the Artifact Packer (component H): packing the
// staged root filesystem into squashfs or EROFS, building the FAT16 EFI
// boot image, authoring the hybrid BIOS+UEFI ISO with xorriso, and writing
// the final checksum. Every artifact goes through atomicfile.Write (spec.md
// §4.8/§9 "Atomicity").
//
// Grounded on the teacher's image-building flow (pkg/elemental image
// creation invoking mksquashfs/xorriso as external tools) generalized to
// the two-format, EFI-boot-image, hybrid-ISO contract this spec adds.
package packer

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/atomicfile"
	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/types"
)

// Format selects the packed root filesystem image format.
type Format int

const (
	FormatSquashfs Format = iota
	FormatErofs
)

func (f Format) String() string {
	if f == FormatErofs {
		return "erofs"
	}
	return "squashfs"
}

// Packer drives mksquashfs/mkfs.erofs, the FAT EFI image, and xorriso.
type Packer struct {
	Runner types.Runner
	Logger types.Logger
}

func New(runner types.Runner, logger types.Logger) *Packer {
	return &Packer{Runner: runner, Logger: logger}
}

// PackImage packs root into destPath using format, atomically. Minimum
// size is a coarse floor; a properly packed OS image is always well above
// a few hundred KB, so a small output signals a truncated/aborted pack.
func (p *Packer) PackImage(format Format, root, destPath string) error {
	const minImageSize = 1 << 20 // 1 MiB

	return atomicfile.Write(destPath, minImageSize, func(tmp string) error {
		switch format {
		case FormatErofs:
			args := append([]string{tmp, root}, constants.GetDefaultErofsOptions()...)
			if _, stderr, err := p.Runner.Run("mkfs.erofs", args...); err != nil {
				return errors.Wrapf(err, "mkfs.erofs: %s", stderr)
			}
		default:
			args := append([]string{root, tmp}, constants.GetDefaultSquashfsOptions()...)
			if _, stderr, err := p.Runner.Run("mksquashfs", args...); err != nil {
				return errors.Wrapf(err, "mksquashfs: %s", stderr)
			}
		}
		return nil
	})
}

// Checksum computes the sha512sum of artifactPath and writes
// "<digest>  <basename>\n" to destPath, atomically, using the host
// sha512sum tool (spec.md §6 lists it as a required host tool rather than
// delegating to Go's crypto/sha512, to match the original's checksum file
// format byte-for-byte).
func (p *Packer) Checksum(artifactPath, destPath string) error {
	const minChecksumLineSize = 16

	return atomicfile.Write(destPath, minChecksumLineSize, func(tmp string) error {
		stdout, stderr, err := p.Runner.RunWithDir(filepath.Dir(artifactPath), "sha512sum", filepath.Base(artifactPath))
		if err != nil {
			return errors.Wrapf(err, "sha512sum: %s", stderr)
		}
		return os.WriteFile(tmp, []byte(stdout), 0644)
	})
}

// ISOSpec names the inputs xorriso needs to author the hybrid ISO.
type ISOSpec struct {
	Root        string // staging tree that mirrors the final ISO layout
	BootFile    string // BIOS El Torito image relative to Root; empty for UEFI-only
	BootCatalog string // relative to Root
	HybridMBR   string // relative to Root; empty when BootFile is empty
	EFIImage    string // relative to Root, e.g. constants.IsoEFIImagePath
	OutputPath  string
	VolumeLabel string
}

// AuthorISO runs `xorriso -as mkisofs` against spec.Root, producing a
// hybrid BIOS+UEFI ISO9660+Joliet+RockRidge image at spec.OutputPath. The
// EFI boot entry uses -e/-no-emul-boot/-isohybrid-gpt-basdat so the FAT
// image is reachable both as an El Torito record and as a GPT partition.
func (p *Packer) AuthorISO(spec ISOSpec) error {
	const minISOSize = 64 << 20 // 64 MiB; anything smaller is a botched pack

	label := spec.VolumeLabel
	if label == "" {
		label = constants.ISOLabel
	}

	return atomicfile.Write(spec.OutputPath, minISOSize, func(tmp string) error {
		args := []string{
			"-as", "mkisofs",
			"-V", label,
			"-J", "-joliet-long", "-R",
			"-o", tmp,
		}
		args = append(args, constants.GetDefaultXorrisoBootloaderArgs(
			spec.Root, spec.BootFile, spec.BootCatalog, spec.HybridMBR, spec.EFIImage)...)
		args = append(args, spec.Root)

		if _, stderr, err := p.Runner.Run("xorriso", args...); err != nil {
			return errors.Wrapf(err, "xorriso: %s", stderr)
		}
		return nil
	})
}
