// Package copier implements the binary/library copier (component B):
// locates a binary in standard bin/sbin dirs, copies it plus its ELF
// closure into staging, preserving symlinks and chmodding executables.
//
// Grounded on original_source/src/rootfs/binary.rs.
package copier

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/elf"
	"github.com/levitateos/builder/internal/licenses"
)

// Copier copies binaries and their transitive library dependencies from a
// source rootfs into a staging tree.
type Copier struct {
	resolver *elf.Resolver
	tracker  *licenses.Tracker
}

// New returns a Copier using resolver for ELF closure resolution. tracker
// may be nil if license tracking is not needed by the caller.
func New(resolver *elf.Resolver, tracker *licenses.Tracker) *Copier {
	return &Copier{resolver: resolver, tracker: tracker}
}

// Resolver exposes the underlying ELF resolver for callers that need a raw
// closure walk (e.g. the systemd binary copied outside the bin/sbin search
// paths).
func (c *Copier) Resolver() *elf.Resolver { return c.resolver }

// FindBinary searches usr/bin, bin, usr/sbin, sbin (in that order) under
// rootfs for binary.
func FindBinary(rootfs, binary string) (string, bool) {
	return findIn(rootfs, binary, []string{"usr/bin", "bin", "usr/sbin", "sbin"})
}

// FindSbinBinary searches sbin directories first, falling back to bin.
func FindSbinBinary(rootfs, binary string) (string, bool) {
	return findIn(rootfs, binary, []string{"usr/sbin", "sbin", "usr/bin", "bin"})
}

func findIn(rootfs, binary string, dirs []string) (string, bool) {
	for _, d := range dirs {
		p := filepath.Join(rootfs, d, binary)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// CopyBinaryWithLibs copies binary (located via FindBinary) plus its full
// library closure into staging under destDir ("usr/bin" or "usr/sbin").
// Returns (false, nil) if the binary is not found in the source rootfs —
// the caller decides whether that is fatal. Returns an error if the binary
// is found but a required library is missing (the binary would be broken).
func (c *Copier) CopyBinaryWithLibs(rootfs, staging, binary, destDir string) (bool, error) {
	return c.copyWithLibs(rootfs, staging, binary, destDir, FindBinary)
}

// CopySbinBinaryWithLibs is CopyBinaryWithLibs specialized to the sbin
// search order, always destined for usr/sbin.
func (c *Copier) CopySbinBinaryWithLibs(rootfs, staging, binary string) (bool, error) {
	return c.copyWithLibs(rootfs, staging, binary, "usr/sbin", FindSbinBinary)
}

func (c *Copier) copyWithLibs(rootfs, staging, binary, destDir string, find func(string, string) (string, bool)) (bool, error) {
	binPath, ok := find(rootfs, binary)
	if !ok {
		return false, nil
	}

	dest := filepath.Join(staging, destDir, binary)
	if _, err := os.Stat(dest); err != nil {
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return false, errors.Wrapf(err, "creating %s", filepath.Dir(dest))
		}
		if err := copyFile(binPath, dest); err != nil {
			return false, errors.Wrapf(err, "copying binary %s", binary)
		}
		if err := os.Chmod(dest, 0755); err != nil {
			return false, errors.Wrapf(err, "chmod %s", dest)
		}
	}

	if c.tracker != nil {
		c.tracker.RegisterBinary(binary)
	}

	libs, err := c.resolver.Closure(rootfs, binPath)
	if err != nil {
		return false, err
	}
	for lib := range libs {
		if err := c.CopyLibrary(rootfs, lib, staging); err != nil {
			return false, errors.Wrapf(err, "binary %q requires library %q which is missing", binary, lib)
		}
	}
	return true, nil
}

// CopyBash is the special-cased Bash op: bash may live at usr/bin/bash or
// bin/bash; this FAILS if bash itself or any of its libraries are missing
// (unlike CopyBinaryWithLibs, which returns (false, nil) for a missing
// binary and leaves the decision to the caller).
func (c *Copier) CopyBash(rootfs, staging string) error {
	candidates := []string{
		filepath.Join(rootfs, "usr/bin/bash"),
		filepath.Join(rootfs, "bin/bash"),
	}
	var bashPath string
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			bashPath = p
			break
		}
	}
	if bashPath == "" {
		return errors.New("CRITICAL: could not find bash in source rootfs: not found")
	}

	dest := filepath.Join(staging, "usr/bin/bash")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if err := copyFile(bashPath, dest); err != nil {
		return errors.Wrap(err, "copying bash")
	}
	if err := os.Chmod(dest, 0755); err != nil {
		return err
	}
	if c.tracker != nil {
		c.tracker.RegisterBinary("bash")
	}

	libs, err := c.resolver.Closure(rootfs, bashPath)
	if err != nil {
		return err
	}
	for lib := range libs {
		if err := c.CopyLibrary(rootfs, lib, staging); err != nil {
			return errors.Wrapf(err, "bash requires library %q which is missing", lib)
		}
	}
	return nil
}

// CopyLibrary copies libName from rootfs into staging, preserving the
// lib/lib64 and systemd-private-directory distinction, and preserving
// symlinks rather than dereferencing them: the concrete target is copied
// alongside, and the symlink itself is recreated pointing at the same
// relative name.
func (c *Copier) CopyLibrary(rootfs, libName, staging string) error {
	src, ok := c.resolver.FindLibrary(rootfs, libName)
	if !ok {
		return errors.Errorf("could not find library %q in rootfs (searched lib64, lib, systemd paths)", libName)
	}

	var destDir string
	switch {
	case strings.Contains(src, "libexec/sudo"):
		destDir = filepath.Join(staging, "usr/libexec/sudo")
	case strings.Contains(src, "lib64/systemd") || strings.Contains(src, "lib/systemd"):
		destDir = filepath.Join(staging, "usr/lib64/systemd")
	case strings.Contains(src, "lib64"):
		destDir = filepath.Join(staging, "usr/lib64")
	default:
		destDir = filepath.Join(staging, "usr/lib")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	destPath := filepath.Join(destDir, libName)

	if _, err := os.Lstat(destPath); err == nil {
		if c.tracker != nil {
			c.tracker.RegisterLibrary(libName)
		}
		return nil // already copied
	}

	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		if err := copySymlinkedLibrary(rootfs, src, destPath); err != nil {
			return err
		}
	} else if err := copyFile(src, destPath); err != nil {
		return err
	}

	if c.tracker != nil {
		c.tracker.RegisterLibrary(libName)
	}
	return nil
}

// copySymlinkedLibrary resolves the link target (relative against the
// link's own parent, absolute against rootfs), copies the concrete file if
// it exists, then recreates the symlink. If the target cannot be resolved,
// the symlink itself is copied byte-for-byte as a last resort.
func copySymlinkedLibrary(rootfs, src, destPath string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}

	var actualSrc string
	if filepath.IsAbs(target) {
		actualSrc = filepath.Join(rootfs, strings.TrimPrefix(target, "/"))
	} else {
		actualSrc = filepath.Join(filepath.Dir(src), target)
	}

	if _, err := os.Stat(actualSrc); err == nil {
		targetName := filepath.Base(target)
		targetDest := filepath.Join(filepath.Dir(destPath), targetName)
		if _, err := os.Stat(targetDest); err != nil {
			if err := copyFile(actualSrc, targetDest); err != nil {
				return err
			}
		}
		if _, err := os.Lstat(destPath); err != nil {
			return os.Symlink(target, destPath)
		}
		return nil
	}

	// Target not resolvable; copy the dangling symlink itself.
	return os.Symlink(target, destPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
