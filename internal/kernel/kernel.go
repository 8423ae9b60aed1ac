// Package kernel implements the kernel build driver (component I): applies
// a kconfig patch over x86_64_defconfig, resolves implications with
// olddefconfig, compiles the kernel and modules, and installs them into a
// staging tree.
//
// Grounded directly on spec.md §4.9 (original_source/src/build/kernel.rs
// was not retrieved verbatim in this pass; the defconfig/olddefconfig/
// modules_install sequence here is the one common to the rest of the pack
// and to spec.md's own description — see DESIGN.md).
package kernel

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/types"
)

// Build drives one kernel compile inside sourceDir (the kernel source
// tree), applying every line of kconfigPath as an override over
// x86_64_defconfig, then installing bzImage and modules into staging.
// Returns the determined kernel version string.
type Builder struct {
	Runner types.Runner
	Logger types.Logger
}

// New returns a Builder.
func New(runner types.Runner, logger types.Logger) *Builder {
	return &Builder{Runner: runner, Logger: logger}
}

// Build runs the full defconfig -> kconfig overlay -> olddefconfig ->
// build -> install sequence, compiling out-of-tree into buildDir
// (output/kernel-build; the source tree stays pristine). jobs is the
// parallelism for make -jN; runtime.NumCPU() is used by callers that
// don't have a more specific count.
func (b *Builder) Build(sourceDir, buildDir, kconfigPath, staging string, jobs int) (string, error) {
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	if _, err := os.Stat(filepath.Join(sourceDir, "Makefile")); err != nil {
		return "", errs.NewMissingInput("kernel source", "no Makefile at "+sourceDir)
	}
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return "", err
	}
	outArg := "O=" + buildDir

	b.Logger.Infof("kernel: make x86_64_defconfig")
	if _, _, err := b.Runner.RunWithDir(sourceDir, "make", outArg, "x86_64_defconfig"); err != nil {
		return "", errors.Wrap(err, "make x86_64_defconfig")
	}

	if kconfigPath != "" {
		if err := b.applyKconfig(buildDir, kconfigPath); err != nil {
			return "", err
		}
	}

	b.Logger.Infof("kernel: make olddefconfig")
	if _, _, err := b.Runner.RunWithDir(sourceDir, "make", outArg, "olddefconfig"); err != nil {
		return "", errors.Wrap(err, "make olddefconfig")
	}

	jobsArg := fmt.Sprintf("-j%d", jobs)

	b.Logger.Infof("kernel: make %s", jobsArg)
	if _, _, err := b.Runner.RunWithDir(sourceDir, "make", outArg, jobsArg); err != nil {
		return "", errors.Wrap(err, "make (kernel image)")
	}

	b.Logger.Infof("kernel: make %s modules", jobsArg)
	if _, _, err := b.Runner.RunWithDir(sourceDir, "make", outArg, jobsArg, "modules"); err != nil {
		return "", errors.Wrap(err, "make modules")
	}

	version, err := b.kernelVersion(buildDir, sourceDir)
	if err != nil {
		return "", err
	}

	if err := b.install(sourceDir, buildDir, staging); err != nil {
		return "", err
	}

	return version, nil
}

// applyKconfig overrides every CONFIG_XXX=... or "# CONFIG_XXX is not set"
// line from kconfigPath into buildDir/.config: any existing line for the
// same key is filtered out first, then the new line is appended, so a
// kconfig override produces exactly one line for that key.
func (b *Builder) applyKconfig(buildDir, kconfigPath string) error {
	overrides, err := parseKconfig(kconfigPath)
	if err != nil {
		return err
	}

	dotConfig := filepath.Join(buildDir, ".config")
	existing, err := os.ReadFile(dotConfig)
	if err != nil {
		return errors.Wrap(err, "reading .config after defconfig")
	}

	keyPattern := regexp.MustCompile(`^(?:# )?(CONFIG_[A-Za-z0-9_]+)(?:=| is not set)`)

	var kept []string
	for _, line := range strings.Split(string(existing), "\n") {
		m := keyPattern.FindStringSubmatch(line)
		if m != nil {
			if _, overridden := overrides[m[1]]; overridden {
				continue
			}
		}
		kept = append(kept, line)
	}

	var out strings.Builder
	out.WriteString(strings.Join(kept, "\n"))
	for _, key := range sortedKeys(overrides) {
		out.WriteString(overrides[key])
		out.WriteString("\n")
	}

	return os.WriteFile(dotConfig, []byte(out.String()), 0644)
}

// parseKconfig reads a kconfig file into a map of CONFIG_KEY -> full
// override line (including "# CONFIG_X is not set" form).
func parseKconfig(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.NewMissingInput("kconfig", path)
	}
	defer f.Close()

	keyPattern := regexp.MustCompile(`^(?:# )?(CONFIG_[A-Za-z0-9_]+)(?:=| is not set)`)
	overrides := make(map[string]string)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		m := keyPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		overrides[m[1]] = line
	}
	return overrides, scanner.Err()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// kernelVersion determines the built kernel's version string from the
// build directory's include/config/kernel.release, falling back to parsing
// VERSION/PATCHLEVEL/SUBLEVEL/EXTRAVERSION out of the source Makefile.
func (b *Builder) kernelVersion(buildDir, sourceDir string) (string, error) {
	release := filepath.Join(buildDir, "include/config/kernel.release")
	if data, err := os.ReadFile(release); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	makefile := filepath.Join(sourceDir, "Makefile")
	data, err := os.ReadFile(makefile)
	if err != nil {
		return "", errors.Wrap(err, "reading Makefile to determine kernel version")
	}

	var version, patchlevel, sublevel, extraversion string
	fields := map[string]*string{
		"VERSION":      &version,
		"PATCHLEVEL":   &patchlevel,
		"SUBLEVEL":     &sublevel,
		"EXTRAVERSION": &extraversion,
	}
	linePattern := regexp.MustCompile(`^(\w+)\s*=\s*(.*)$`)
	for i, line := range strings.Split(string(data), "\n") {
		if i > 10 {
			break // these fields are always the first lines of the Makefile
		}
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if ptr, ok := fields[m[1]]; ok {
			*ptr = strings.TrimSpace(m[2])
		}
	}

	if version == "" || patchlevel == "" {
		return "", errors.New("could not determine kernel version from kernel.release or Makefile")
	}
	return fmt.Sprintf("%s.%s.%s%s", version, patchlevel, sublevel, extraversion), nil
}

// install copies the built kernel and its modules into staging:
// arch/x86/boot/bzImage to staging/boot/vmlinuz, then
// `make modules_install INSTALL_MOD_PATH=<staging>`, then removes the
// source/build convenience symlinks modules_install leaves behind.
func (b *Builder) install(sourceDir, buildDir, staging string) error {
	bzImage := filepath.Join(buildDir, "arch/x86/boot/bzImage")
	if _, err := os.Stat(bzImage); err != nil {
		return errs.NewMissingInput("bzImage", "not found at "+bzImage+"; did the kernel build fail?")
	}

	dest := filepath.Join(staging, "boot/vmlinuz")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	if err := copyFile(bzImage, dest); err != nil {
		return errors.Wrap(err, "installing vmlinuz")
	}

	if _, _, err := b.Runner.RunWithDir(sourceDir, "make", "O="+buildDir,
		"modules_install", "INSTALL_MOD_PATH="+staging); err != nil {
		return errors.Wrap(err, "make modules_install")
	}

	modulesDir, err := findModulesDir(staging)
	if err == nil {
		_ = os.Remove(filepath.Join(modulesDir, "source"))
		_ = os.Remove(filepath.Join(modulesDir, "build"))
	}

	return nil
}

// InstalledVersion reads the kernel version already installed into staging
// back out of its lib/modules/<version> directory name, for callers that
// skip a rebuild because the rebuild cache found nothing stale.
func InstalledVersion(staging string) (string, error) {
	dir, err := findModulesDir(staging)
	if err != nil {
		return "", errors.Wrap(err, "determining installed kernel version")
	}
	return filepath.Base(dir), nil
}

func findModulesDir(staging string) (string, error) {
	base := filepath.Join(staging, "lib/modules")
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(base, e.Name()), nil
		}
	}
	return "", errors.New("no installed modules directory found")
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

// ParseJobsFromNproc is a small helper for callers that want make -jN to
// match the detected CPU count via `nproc` rather than runtime.NumCPU()
// (e.g. when cross-compiling under a container with a different affinity
// mask than the Go runtime sees).
func ParseJobsFromNproc(runner types.Runner) int {
	stdout, _, err := runner.Run("nproc")
	if err != nil {
		return runtime.NumCPU()
	}
	n, err := strconv.Atoi(strings.TrimSpace(stdout))
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
