// Package licenses tracks which upstream packages were used during a build
// (via the binaries/libraries copied into staging) so their license
// directories can be copied into the image for redistribution compliance.
//
// Grounded on original_source/src/build/licenses.rs.
package licenses

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/types"
)

// Tracker is a de-duplicated set of package names, built up as binaries and
// libraries are copied into staging.
type Tracker struct {
	mu       sync.Mutex
	packages map[string]struct{}
	logger   types.Logger
}

// NewTracker returns an empty Tracker.
func NewTracker(logger types.Logger) *Tracker {
	return &Tracker{packages: make(map[string]struct{}), logger: logger}
}

// RegisterBinary records the package owning binary, via the static mapping.
// Unknown binaries are silently ignored: not every binary maps to a
// packaged license (e.g. staging-internal scripts).
func (t *Tracker) RegisterBinary(name string) {
	if pkg, ok := PackageForBinary(name); ok {
		t.RegisterPackage(pkg)
	}
}

// RegisterLibrary records the package owning a shared library basename.
func (t *Tracker) RegisterLibrary(name string) {
	if pkg, ok := PackageForLibrary(name); ok {
		t.RegisterPackage(pkg)
	}
}

// RegisterPackage records a package directly, for content that doesn't
// flow through the binary/library mapping (firmware, kernel modules, data).
func (t *Tracker) RegisterPackage(pkg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.packages[pkg] = struct{}{}
}

// PackageCount returns the number of distinct packages tracked.
func (t *Tracker) PackageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.packages)
}

// Packages returns a sorted-independent snapshot of the tracked package set.
func (t *Tracker) Packages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.packages))
	for p := range t.packages {
		out = append(out, p)
	}
	return out
}

// CopyLicenses copies source/usr/share/licenses/<pkg> to
// staging/usr/share/licenses/<pkg> for every tracked package. Missing
// license directories are logged, not fatal. Returns the number copied.
func (t *Tracker) CopyLicenses(source, staging string) (int, error) {
	licenseSrc := filepath.Join(source, "usr/share/licenses")
	licenseDst := filepath.Join(staging, "usr/share/licenses")
	if err := os.MkdirAll(licenseDst, 0755); err != nil {
		return 0, errors.Wrap(err, "creating license destination dir")
	}

	var missing []string
	copied := 0
	for _, pkg := range t.Packages() {
		src := filepath.Join(licenseSrc, pkg)
		dst := filepath.Join(licenseDst, pkg)

		info, err := os.Lstat(src)
		if err != nil || !info.IsDir() {
			missing = append(missing, pkg)
			continue
		}
		if err := copyDirRecursive(src, dst); err != nil {
			return copied, errors.Wrapf(err, "copying licenses for %s", pkg)
		}
		copied++
	}

	if len(missing) > 0 && t.logger != nil {
		t.logger.Warnf("%d packages have no license dir: %v", len(missing), missing)
	}
	return copied, nil
}

// copyDirRecursive copies src to dst, preserving symlinks (never
// dereferencing them) and skipping entries that already exist at dst.
func copyDirRecursive(src, dst string) error {
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		info, err := os.Lstat(srcPath)
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if _, err := os.Lstat(dstPath); os.IsNotExist(err) {
				if err := os.Symlink(target, dstPath); err != nil {
					return err
				}
			}
		case info.IsDir():
			if err := copyDirRecursive(srcPath, dstPath); err != nil {
				return err
			}
		default:
			if _, err := os.Lstat(dstPath); err == nil {
				continue
			}
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode())
}
