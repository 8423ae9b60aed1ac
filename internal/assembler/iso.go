package assembler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/packer"
	"github.com/levitateos/builder/internal/rebuildcache"
	"github.com/levitateos/builder/internal/types"
)

// grubCfgTemplate is the fixed boot menu burned into both the FAT EFI image
// and the ISO tree. The label is the sole runtime identity the init script
// uses to find its root device.
const grubCfgTemplate = `set default=0
set timeout=5

search --no-floppy --set=root --label %[1]s

menuentry "LevitateOS Live" {
    linux /boot/vmlinuz root=LABEL=%[1]s rw quiet
    initrd /boot/initramfs.img
}

menuentry "LevitateOS Live (serial console)" {
    linux /boot/vmlinuz root=LABEL=%[1]s rw console=ttyS0,115200
    initrd /boot/initramfs.img
}
`

// biosBootCandidates are the (El Torito image, catalog) pairs probed in the
// assembled ISO tree, in preference order. An upstream media tree laid out
// for GRUB wins over an isolinux one; neither present means UEFI-only.
var biosBootCandidates = []struct{ bootFile, catalog string }{
	{"boot/grub/i386-pc/eltorito.img", "boot.catalog"},
	{"isolinux/isolinux.bin", "isolinux/boot.cat"},
}

// BuildISO assembles the on-ISO tree (spec layout: /boot, /live, /EFI/BOOT)
// under output/iso-root using the .work rename discipline, builds the FAT
// EFI boot image into it, authors the hybrid ISO, and writes its checksum.
// imagePath is the packed root filesystem produced by PackImage.
func (a *Assembler) BuildISO(ctx *types.BuildContext, imagePath string, format packer.Format) (string, error) {
	isoPath := filepath.Join(ctx.Output, "levitateos.iso")
	liveInitramfs := filepath.Join(ctx.Output, filepath.Base(constants.IsoLiveInitramfsPath))
	installedInitramfs := filepath.Join(ctx.Output, filepath.Base(constants.IsoInstalledInitrdPath))
	kernelPath := filepath.Join(ctx.Staging, "boot/vmlinuz")

	stale, digest, err := a.Cache.IsStale("iso", isoPath, []rebuildcache.Input{
		rebuildcache.FilePath(imagePath),
		rebuildcache.FilePath(liveInitramfs),
		rebuildcache.FilePath(installedInitramfs),
		rebuildcache.FilePath(kernelPath),
		rebuildcache.Literal(a.ISOLabel),
	})
	if err != nil {
		return "", err
	}
	if !stale {
		ctx.Logger.Infof("ISO is up to date, skipping rebuild")
		return isoPath, nil
	}

	isoRoot := filepath.Join(ctx.Output, "iso-root")
	workDir := isoRoot + constants.WorkSuffix + "." + ctx.RunID.String()[:8]
	if err := os.RemoveAll(workDir); err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	if err := a.populateISOTree(ctx, workDir, imagePath, format, liveInitramfs, installedInitramfs, kernelPath); err != nil {
		return "", err
	}

	if err := os.RemoveAll(isoRoot); err != nil {
		return "", err
	}
	if err := os.Rename(workDir, isoRoot); err != nil {
		return "", errors.Wrapf(err, "renaming %s to %s", workDir, isoRoot)
	}

	spec := packer.ISOSpec{
		Root:        isoRoot,
		EFIImage:    constants.IsoEFIImagePath,
		OutputPath:  isoPath,
		VolumeLabel: a.ISOLabel,
	}
	for _, cand := range biosBootCandidates {
		if _, err := os.Stat(filepath.Join(isoRoot, cand.bootFile)); err == nil {
			spec.BootFile = cand.bootFile
			spec.BootCatalog = cand.catalog
			break
		}
	}
	if spec.BootFile == "" {
		ctx.Logger.Warnf("no BIOS El Torito image in the ISO tree; authoring a UEFI-only ISO")
	}

	if err := a.Packer.AuthorISO(spec); err != nil {
		return "", err
	}
	if err := a.Packer.Checksum(isoPath, isoPath+".sha512"); err != nil {
		return "", err
	}

	if err := a.Cache.MarkBuilt("iso", digest, ctx.RunID); err != nil {
		ctx.Logger.Warnf("recording ISO rebuild-cache fingerprint: %v", err)
	}
	return isoPath, nil
}

// populateISOTree lays out workDir per the on-ISO layout of spec.md §6.
func (a *Assembler) populateISOTree(ctx *types.BuildContext, workDir, imagePath string, format packer.Format,
	liveInitramfs, installedInitramfs, kernelPath string) error {

	for _, d := range []string{"boot", "live", "EFI/BOOT"} {
		if err := os.MkdirAll(filepath.Join(workDir, d), 0755); err != nil {
			return err
		}
	}

	copies := []struct {
		src, dst, what string
	}{
		{kernelPath, "boot/vmlinuz", "kernel image"},
		{liveInitramfs, "boot/" + filepath.Base(liveInitramfs), "live initramfs"},
		{installedInitramfs, "boot/" + filepath.Base(installedInitramfs), "installed-system initramfs"},
		{imagePath, "live/filesystem." + format.String(), "root filesystem image"},
	}
	for _, c := range copies {
		if err := copyHostFile(c.src, filepath.Join(workDir, c.dst)); err != nil {
			return errs.NewMissingInput(c.what, c.src+" ("+err.Error()+")")
		}
	}

	overlaySrc := filepath.Join(ctx.Output, "live-overlay")
	if _, err := os.Stat(overlaySrc); err != nil {
		return errs.NewMissingInput("live overlay", overlaySrc+"; run the rootfs staging phase first")
	}
	if err := copyHostTree(overlaySrc, filepath.Join(workDir, "live/overlay")); err != nil {
		return errors.Wrap(err, "copying live overlay into ISO tree")
	}

	bootloader, grubLoader, err := a.locateEFILoaders(ctx)
	if err != nil {
		return err
	}

	grubCfg := fmt.Sprintf(grubCfgTemplate, a.ISOLabel)
	grubCfgPath := filepath.Join(workDir, "EFI/BOOT", constants.EfiGrubCfg)
	if err := os.WriteFile(grubCfgPath, []byte(grubCfg), 0644); err != nil {
		return err
	}
	if err := copyHostFile(bootloader, filepath.Join(workDir, "EFI/BOOT", constants.EfiBootloaderX64)); err != nil {
		return err
	}
	if err := copyHostFile(grubLoader, filepath.Join(workDir, "EFI/BOOT", constants.EfiGrubX64)); err != nil {
		return err
	}

	// BIOS boot support comes straight off the upstream media tree when
	// present; the hybrid MBR/GPT side is handled by xorriso.
	isoContents := filepath.Join(ctx.BaseDir, constants.DownloadsDir, constants.DownloadsISOTreeDir)
	for _, biosDir := range []string{"boot/grub", "isolinux"} {
		src := filepath.Join(isoContents, biosDir)
		if _, err := os.Stat(src); err == nil {
			if err := copyHostTree(src, filepath.Join(workDir, biosDir)); err != nil {
				return errors.Wrapf(err, "copying BIOS boot tree %s", biosDir)
			}
		}
	}

	return a.Packer.BuildEFIImage(packer.EFIImageSpec{
		OutputPath:  filepath.Join(workDir, "EFI/BOOT/efiboot.img"),
		Bootloader:  bootloader,
		GrubLoader:  grubLoader,
		GrubCfgPath: grubCfgPath,
	})
}

// locateEFILoaders finds BOOTX64.EFI and grubx64.efi, preferring the
// extracted upstream media over the systemd-boot payload staged by
// CopySystemdBootEfi (which provides only the boot manager, not GRUB).
func (a *Assembler) locateEFILoaders(ctx *types.BuildContext) (bootloader, grubLoader string, err error) {
	efiDir := filepath.Join(ctx.BaseDir, constants.DownloadsDir, constants.DownloadsISOTreeDir, "EFI/BOOT")

	bootloader = filepath.Join(efiDir, constants.EfiBootloaderX64)
	if _, statErr := os.Stat(bootloader); statErr != nil {
		staged := filepath.Join(ctx.Staging, "usr/lib/systemd/boot/efi/systemd-bootx64.efi")
		if _, stagedErr := os.Stat(staged); stagedErr != nil {
			return "", "", errs.NewMissingInput("EFI bootloader",
				constants.EfiBootloaderX64+" not in "+efiDir+" and no staged systemd-boot payload; extract the upstream ISO first")
		}
		bootloader = staged
	}

	grubLoader = filepath.Join(efiDir, constants.EfiGrubX64)
	if _, statErr := os.Stat(grubLoader); statErr != nil {
		return "", "", errs.NewMissingInput("GRUB EFI loader",
			constants.EfiGrubX64+" not found in "+efiDir+"; extract the upstream ISO first")
	}
	return bootloader, grubLoader, nil
}

func copyHostFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

// copyHostTree copies src into dst, preserving symlinks literally.
func copyHostTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			return os.Symlink(linkTarget, target)
		case d.IsDir():
			return os.MkdirAll(target, 0755)
		default:
			return copyHostFile(path, target)
		}
	})
}
