/*
Copyright © 2022 - 2024 SUSE LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package constants holds the static paths, labels and argument builders
// shared across the pipeline.
package constants

import (
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// ISOLabel is the sole runtime identity the initramfs init script uses
	// to locate its own root device (root=LABEL=…).
	ISOLabel = "LEVITATEOS"

	// On-ISO layout, see spec.md §6.
	IsoKernelPath          = "/boot/vmlinuz"
	IsoLiveInitramfsPath   = "/boot/initramfs.img"
	IsoInstalledInitrdPath = "/boot/initramfs-installed.img"
	IsoSquashfsPath        = "/live/filesystem.squashfs"
	IsoErofsPath           = "/live/filesystem.erofs"
	IsoOverlayPath         = "/live/overlay"
	IsoEFIBootPath         = "/EFI/BOOT"
	IsoEFIImagePath        = "/EFI/BOOT/efiboot.img"

	EfiBootloaderX64 = "BOOTX64.EFI"
	EfiGrubX64       = "grubx64.efi"
	EfiGrubCfg       = "grub.cfg"

	// On-disk build-host layout, see spec.md §6.
	OutputDir           = "output"
	DownloadsDir        = "downloads"
	RootfsStagingDir    = "rootfs-staging"
	SquashfsRootDir     = "squashfs-root"
	KernelBuildDir      = "kernel-build"
	CacheDir            = ".cache"
	WorkSuffix          = ".work"
	TmpSuffix           = ".tmp"
	DownloadsRootfsDir  = "rootfs"
	DownloadsLinuxDir   = "linux"
	DownloadsISOTreeDir = "iso-contents"

	// Dir/file permissions used across staging writes.
	DirPerm  = 0755
	FilePerm = 0644

	// EFI boot image geometry.
	EFIImageSizeMiB = 16

	// Preflight thresholds, ported from the original's anti-cheat
	// validators (original_source/src/preflight/validators.rs).
	MinUpstreamISOSizeGB   = 7.0
	MinKconfigOptionCount  = 100
	MinInitScriptCodeLines = 20

	// InitramfsMinSizeBytes is the atomicity floor for a produced live
	// initramfs: an empty/aborted build must never be mistaken for success.
	InitramfsMinSizeBytes = 1024
)

// CriticalKconfigOptions must be present in the final kernel .config for
// LevitateOS to boot at all.
var CriticalKconfigOptions = []string{
	"CONFIG_SQUASHFS",     // mount the packed filesystem image
	"CONFIG_OVERLAY_FS",   // live overlay
	"CONFIG_BLK_DEV_LOOP", // loop-mount EROFS/squashfs
}

// RequiredHostTools is the hard preflight dependency list (spec.md §6).
var RequiredHostTools = []string{
	"readelf", "xorriso", "mkfs.fat", "dd", "mmd", "mcopy", "cpio", "gzip",
	"tar", "sha256sum", "sha512sum", "ssh-keygen", "depmod", "rpm2cpio",
	"git", "curl", "make", "umount",
}

// SquashfsOrErofsTools is checked as "at least one of" since only one
// packer format is used per build.
var SquashfsOrErofsTools = []string{"mksquashfs", "mkfs.erofs"}

// GetDefaultSquashfsOptions returns the default options to use when
// creating a squashfs image, matching fixed block size and compression.
func GetDefaultSquashfsOptions() []string {
	options := []string{"-b", "1024k", "-comp", "xz", "-Xbcj"}
	if runtime.GOARCH == "arm64" {
		options = append(options, "arm")
	} else {
		options = append(options, "x86")
	}
	return options
}

// GetDefaultErofsOptions returns the default mkfs.erofs arguments.
func GetDefaultErofsOptions() []string {
	return []string{"-zlz4hc,9", "-T0"}
}

// GetDefaultXorrisoBootloaderArgs builds the boot-related argument list for
// `xorriso -as mkisofs`, producing a hybrid BIOS+UEFI ISO. All paths are
// relative to the ISO tree being packed. bootFile/hybridMBR may be empty
// when the tree carries no BIOS boot images (UEFI-only media); the El
// Torito EFI entry referencing efiImagePath is always emitted.
func GetDefaultXorrisoBootloaderArgs(root, bootFile, bootCatalog, hybridMBR, efiImagePath string) []string {
	var args []string
	if bootFile != "" {
		args = append(args,
			"-b", bootFile,
			"-c", bootCatalog,
			"-no-emul-boot",
			"-boot-load-size", "4",
			"-boot-info-table",
		)
		if hybridMBR != "" {
			args = append(args, "-isohybrid-mbr", filepath.Join(root, hybridMBR))
		}
		args = append(args, "-eltorito-alt-boot")
	}
	args = append(args,
		"-e", strings.TrimPrefix(efiImagePath, "/"),
		"-no-emul-boot",
		"-isohybrid-gpt-basdat",
	)
	return args
}
