package custom

import (
	"path/filepath"
	"strings"

	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/types"
)

// moduleMetadataFiles are the modprobe index files copied alongside .ko
// files, grounded on original_source's MODULE_METADATA_FILES.
var moduleMetadataFiles = []string{
	"modules.dep", "modules.dep.bin", "modules.alias", "modules.alias.bin",
	"modules.softdep", "modules.symbols", "modules.symbols.bin",
	"modules.builtin", "modules.builtin.bin", "modules.builtin.modinfo", "modules.order",
}

// copyModules installs kernel modules into staging. A custom-built kernel
// (output/staging/lib/modules, populated by internal/kernel ahead of this
// phase) takes priority over any modules the source rootfs shipped.
func copyModules(ctx *types.BuildContext) error {
	ctx.Logger.Infof("setting up kernel modules")

	customBase := filepath.Join(ctx.Output, "staging/lib/modules")
	sourceBase := filepath.Join(ctx.Source, "usr/lib/modules")

	modulesBase := sourceBase
	isCustom := false
	if hasEntries(ctx, customBase) {
		modulesBase = customBase
		isCustom = true
		ctx.Logger.Infof("using custom kernel modules from %s", customBase)
	} else {
		ctx.Logger.Infof("using source kernel modules from %s", sourceBase)
	}

	kernelVersion, err := findKernelVersion(ctx, modulesBase)
	if err != nil {
		return err
	}
	ctx.Logger.Infof("kernel version: %s", kernelVersion)

	srcModules := filepath.Join(modulesBase, kernelVersion)
	dstModules := filepath.Join(ctx.Staging, "lib/modules", kernelVersion)
	if err := ctx.FS.MkdirAll(dstModules, 0755); err != nil {
		return err
	}

	if isCustom {
		kernelSrc := filepath.Join(srcModules, "kernel")
		if pathExists(ctx.FS, kernelSrc) {
			if err := copyTree(ctx.FS, kernelSrc, filepath.Join(dstModules, "kernel")); err != nil {
				return err
			}
		}
	}

	for _, meta := range moduleMetadataFiles {
		src := filepath.Join(srcModules, meta)
		if pathExists(ctx.FS, src) {
			data, err := ctx.FS.ReadFile(src)
			if err != nil {
				return err
			}
			if err := ctx.FS.WriteFile(filepath.Join(dstModules, meta), data, 0644); err != nil {
				return err
			}
		}
	}

	return runDepmodFor(ctx, kernelVersion)
}

// runDepmod regenerates module dependency metadata for whatever kernel
// version is already staged.
func runDepmod(ctx *types.BuildContext) error {
	modulesBase := filepath.Join(ctx.Staging, "lib/modules")
	kernelVersion, err := findKernelVersion(ctx, modulesBase)
	if err != nil {
		return err
	}
	return runDepmodFor(ctx, kernelVersion)
}

func runDepmodFor(ctx *types.BuildContext, kernelVersion string) error {
	ctx.Logger.Infof("running depmod")
	_, _, err := ctx.Runner.Run("depmod", "-a", "-b", ctx.Staging, kernelVersion)
	return err
}

func findKernelVersion(ctx *types.BuildContext, modulesBase string) (string, error) {
	entries, err := ctx.FS.ReadDir(modulesBase)
	if err != nil {
		return "", errs.NewMissingInput("kernel modules directory", modulesBase)
	}
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), ".") {
			return entry.Name(), nil
		}
	}
	return "", errs.NewMissingInput("kernel modules directory", "no versioned subdirectory under "+modulesBase)
}

func hasEntries(ctx *types.BuildContext, dir string) bool {
	entries, err := ctx.FS.ReadDir(dir)
	return err == nil && len(entries) > 0
}
