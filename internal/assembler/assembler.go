// Package assembler wires the Component Assembly Engine (component F):
// the static registry, the executor, the license tracker, and — past the
// rootfs staging phase — the kernel, initramfs and packer stages, each
// gated by the rebuild cache. It is the one package that knows the whole
// pipeline order from spec.md §2.
//
// Grounded on the teacher's top-level build driver (the run loop that
// iterates a component/action list and calls out to copier/elf/licenses),
// generalized to the kernel/initramfs/packer stages this spec adds after
// the staging tree is complete.
package assembler

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/levitateos/builder/internal/component"
	"github.com/levitateos/builder/internal/component/custom"
	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/copier"
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/elf"
	"github.com/levitateos/builder/internal/initramfs"
	"github.com/levitateos/builder/internal/kernel"
	"github.com/levitateos/builder/internal/licenses"
	"github.com/levitateos/builder/internal/packer"
	"github.com/levitateos/builder/internal/rebuildcache"
	"github.com/levitateos/builder/internal/registry"
	"github.com/levitateos/builder/internal/types"
)

// Assembler drives a complete build: rootfs staging, kernel, both
// initramfs variants, and the final packed artifacts.
type Assembler struct {
	Tracker     *licenses.Tracker
	Executor    *component.Executor
	Cache       *rebuildcache.Cache
	KernelBldr  *kernel.Builder
	LiveInit    *initramfs.LiveBuilder
	InstallInit *initramfs.InstalledBuilder
	Packer      *packer.Packer
	ISOLabel    string
}

// New wires an Assembler from its collaborators, constructing the executor
// and its dispatcher/copier/elf-resolver chain the way cmd/leviso's build
// command is expected to. Resolving the host `mount` binary for the
// installed-system initramfs's chroot bind mounts happens here too, fail-fast,
// matching spec.md §7's MissingHostTool discipline. depResolver and
// busyboxURL feed the live initramfs's static-busybox resolution chain;
// isoLabel overrides the default ISO volume label when non-empty.
func New(ctx *types.BuildContext, cache *rebuildcache.Cache, toolResolver custom.ToolResolver,
	depResolver *deps.Resolver, busyboxURL, isoLabel string) (*Assembler, error) {
	tracker := licenses.NewTracker(ctx.Logger)
	resolver := elf.NewResolver(ctx.Runner)
	cp := copier.New(resolver, tracker)

	recipeCfg, err := custom.LoadRecipeConfig(filepath.Join(ctx.BaseDir, "recipe.yaml"))
	if err != nil {
		return nil, errors.Wrap(err, "loading recipe.yaml")
	}
	dispatcher := custom.New(toolResolver, recipeCfg)
	exec := component.NewExecutor(cp, dispatcher)

	mounter, err := initramfs.NewMounter()
	if err != nil {
		return nil, errors.Wrap(err, "locating mount binary for installed-system initramfs chroot")
	}

	if isoLabel == "" {
		isoLabel = constants.ISOLabel
	}

	return &Assembler{
		Tracker:     tracker,
		Executor:    exec,
		Cache:       cache,
		KernelBldr:  kernel.New(ctx.Runner, ctx.Logger),
		LiveInit:    &initramfs.LiveBuilder{Logger: ctx.Logger, Resolver: depResolver, BusyboxURL: busyboxURL},
		InstallInit: &initramfs.InstalledBuilder{Runner: ctx.Runner, Mounter: mounter, Logger: ctx.Logger},
		Packer:      packer.New(ctx.Runner, ctx.Logger),
		ISOLabel:    isoLabel,
	}, nil
}

// StageRootfs runs every registered component in phase order, then copies
// licenses for every binary/library that was pulled into staging.
// Corresponds to spec.md §2's "Component Assembly Engine" stage.
func (a *Assembler) StageRootfs(ctx *types.BuildContext) error {
	components := registry.All()
	if err := registry.Validate(components); err != nil {
		return errors.Wrap(err, "component registry is inconsistent")
	}

	for _, item := range components {
		if err := a.Executor.ExecuteComponent(ctx, a.Tracker, item); err != nil {
			return errors.Wrapf(err, "component %q", item.Name())
		}
	}

	n, err := a.Tracker.CopyLicenses(ctx.Source, ctx.Staging)
	if err != nil {
		return errors.Wrap(err, "copying licenses")
	}
	ctx.Logger.Infof("copied licenses for %d of %d referenced packages", n, a.Tracker.PackageCount())
	return nil
}

// BuildKernel builds the kernel into the dedicated output/staging tree
// (CopyModules later harvests modules from there during rootfs assembly,
// which is why this stage runs before StageRootfs), then places the boot
// image into the rootfs staging as /boot/vmlinuz. The compile is skipped
// when the rebuild cache shows the kconfig contents and the source
// directory path unchanged; the source tree's contents are not hashed.
func (a *Assembler) BuildKernel(ctx *types.BuildContext, sourceDir, kconfigPath string, jobs int) (string, error) {
	kernelStaging := filepath.Join(ctx.Output, "staging")
	bzImage := filepath.Join(kernelStaging, "boot", "vmlinuz")

	stale, digest, err := a.Cache.IsStale("kernel", bzImage, []rebuildcache.Input{
		rebuildcache.FilePath(kconfigPath),
		rebuildcache.Literal(sourceDir),
	})
	if err != nil {
		return "", err
	}

	var version string
	if stale {
		buildDir := filepath.Join(ctx.Output, constants.KernelBuildDir)
		version, err = a.KernelBldr.Build(sourceDir, buildDir, kconfigPath, kernelStaging, jobs)
		if err != nil {
			return "", errors.Wrap(err, "building kernel")
		}
		if err := a.Cache.MarkBuilt("kernel", digest, ctx.RunID); err != nil {
			ctx.Logger.Warnf("recording kernel rebuild-cache fingerprint: %v", err)
		}
	} else {
		ctx.Logger.Infof("kernel artifact is up to date, skipping rebuild")
		version, err = kernel.InstalledVersion(kernelStaging)
		if err != nil {
			return "", err
		}
	}

	if err := copyHostFile(bzImage, filepath.Join(ctx.Staging, "boot/vmlinuz")); err != nil {
		return "", errors.Wrap(err, "installing vmlinuz into rootfs staging")
	}
	return version, nil
}

// BuildLiveInitramfs produces the live-boot initramfs at
// output/<IsoLiveInitramfsPath basename>, gated on the rebuild cache.
func (a *Assembler) BuildLiveInitramfs(ctx *types.BuildContext, kernelVersion string, customKernel bool) error {
	dest := filepath.Join(ctx.Output, filepath.Base(constants.IsoLiveInitramfsPath))
	modulesDir := filepath.Join(ctx.Staging, "lib/modules")

	stale, digest, err := a.Cache.IsStale("initramfs-live", dest, []rebuildcache.Input{
		rebuildcache.Literal(kernelVersion),
	})
	if err != nil {
		return err
	}
	if !stale {
		ctx.Logger.Infof("live initramfs is up to date, skipping rebuild")
		return nil
	}

	spec := initramfs.LiveSpec{
		WorkDir:        filepath.Join(ctx.Output, ".initramfs-live"+constants.WorkSuffix),
		OutputPath:     dest,
		ModulesDir:     modulesDir,
		KernelVersion:  kernelVersion,
		ModulesBuiltin: filepath.Join(modulesDir, kernelVersion, "modules.builtin"),
		Custom:         customKernel,
	}
	if err := a.LiveInit.Build(spec); err != nil {
		return errors.Wrap(err, "building live initramfs")
	}
	return a.Cache.MarkBuilt("initramfs-live", digest, ctx.RunID)
}

// BuildInstalledInitramfs produces the dracut-in-chroot initramfs used by
// an installed system, gated on the rebuild cache.
func (a *Assembler) BuildInstalledInitramfs(ctx *types.BuildContext, kernelVersion string) error {
	dest := filepath.Join(ctx.Output, filepath.Base(constants.IsoInstalledInitrdPath))

	stale, digest, err := a.Cache.IsStale("initramfs-installed", dest, []rebuildcache.Input{
		rebuildcache.Literal(kernelVersion),
	})
	if err != nil {
		return err
	}
	if !stale {
		ctx.Logger.Infof("installed-system initramfs is up to date, skipping rebuild")
		return nil
	}

	if err := a.InstallInit.Build(ctx.Staging, kernelVersion, dest); err != nil {
		return errors.Wrap(err, "building installed-system initramfs")
	}
	return a.Cache.MarkBuilt("initramfs-installed", digest, ctx.RunID)
}

// PackImage packs the staged squashfs-root into the chosen format, gated
// on the rebuild cache.
func (a *Assembler) PackImage(ctx *types.BuildContext, format packer.Format) (string, error) {
	name := "filesystem." + format.String()
	dest := filepath.Join(ctx.Output, name)
	root := ctx.Staging

	stale, digest, err := a.Cache.IsStale("image-"+format.String(), dest, []rebuildcache.Input{
		rebuildcache.Literal(root),
	})
	if err != nil {
		return "", err
	}
	if !stale {
		ctx.Logger.Infof("%s image is up to date, skipping rebuild", format)
		return dest, nil
	}

	if err := a.Packer.PackImage(format, root, dest); err != nil {
		return "", err
	}
	if err := a.Cache.MarkBuilt("image-"+format.String(), digest, ctx.RunID); err != nil {
		return "", err
	}
	return dest, nil
}
