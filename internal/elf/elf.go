// Package elf implements the ELF dependency resolver (component A):
// extracting DT_NEEDED entries via `readelf -d` and resolving the
// transitive closure of shared libraries within a rootfs tree.
//
// readelf is chosen over the host dynamic loader (ldd) so that
// cross-architecture builds are safe: readelf reads ELF headers directly
// without executing the binary.
//
// Grounded on original_source/src/rootfs/binary.rs.
package elf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/levitateos/builder/internal/types"
)

// Resolver extracts and resolves ELF shared-library dependencies against a
// rootfs tree.
type Resolver struct {
	runner types.Runner
	// ExtraSearchDirs are additional candidate directories (relative to
	// rootfs) consulted after the standard lib/lib64 set, for private
	// subdirectories such as usr/libexec/sudo.
	ExtraSearchDirs []string
}

// NewResolver returns a Resolver using runner for readelf invocations.
func NewResolver(runner types.Runner) *Resolver {
	return &Resolver{
		runner: runner,
		ExtraSearchDirs: []string{
			"usr/lib64/systemd",
			"usr/lib/systemd",
			"usr/libexec/sudo",
		},
	}
}

// Dependencies runs `readelf -d` against binaryPath and returns the
// NEEDED library basenames. Non-ELF files (scripts, data) produce an empty
// set silently: readelf exits non-zero on them, which is treated as "no
// dependencies". A missing readelf itself is an error (install binutils),
// never an empty set.
func (r *Resolver) Dependencies(binaryPath string) ([]string, error) {
	if _, err := r.runner.LookPath("readelf"); err != nil {
		return nil, err
	}
	stdout, _, err := r.runner.Run("readelf", "-d", binaryPath)
	if err != nil {
		return nil, nil
	}
	return parseReadelfOutput(stdout), nil
}

// parseReadelfOutput extracts NEEDED library names from `readelf -d`
// output, matching lines containing both "(NEEDED)" and "Shared library:".
func parseReadelfOutput(output string) []string {
	var libs []string
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "(NEEDED)") || !strings.Contains(line, "Shared library:") {
			continue
		}
		start := strings.Index(line, "[")
		end := strings.Index(line, "]")
		if start == -1 || end == -1 || end <= start {
			continue
		}
		libs = append(libs, line[start+1:end])
	}
	return libs
}

// FindLibrary searches the standard candidate directories (plus
// r.ExtraSearchDirs) under rootfs for libName, returning the first path
// that exists (as a file or a symlink, even if dangling).
func (r *Resolver) FindLibrary(rootfs, libName string) (string, bool) {
	candidates := []string{
		filepath.Join(rootfs, "usr/lib64", libName),
		filepath.Join(rootfs, "lib64", libName),
		filepath.Join(rootfs, "usr/lib", libName),
		filepath.Join(rootfs, "lib", libName),
	}
	for _, dir := range r.ExtraSearchDirs {
		candidates = append(candidates, filepath.Join(rootfs, dir, libName))
	}

	for _, p := range candidates {
		if _, err := os.Lstat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// Closure returns the transitive set of library basenames needed by the
// ELF file at binaryPath, resolved within rootfs. Libraries that cannot be
// located in rootfs are still included in the returned set (the copier
// decides whether that is fatal); only libraries that ARE found are walked
// further for their own dependencies.
func (r *Resolver) Closure(rootfs, binaryPath string) (map[string]struct{}, error) {
	allLibs := make(map[string]struct{})
	toProcess := []string{binaryPath}
	processed := make(map[string]struct{})

	for len(toProcess) > 0 {
		path := toProcess[len(toProcess)-1]
		toProcess = toProcess[:len(toProcess)-1]

		if _, done := processed[path]; done {
			continue
		}
		processed[path] = struct{}{}

		deps, err := r.Dependencies(path)
		if err != nil {
			return nil, err
		}
		for _, lib := range deps {
			if _, seen := allLibs[lib]; seen {
				continue
			}
			allLibs[lib] = struct{}{}
			if libPath, ok := r.FindLibrary(rootfs, lib); ok {
				toProcess = append(toProcess, libPath)
			}
		}
	}

	return allLibs, nil
}
