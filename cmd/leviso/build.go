package main

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/levitateos/builder/internal/assembler"
	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/initramfs"
	"github.com/levitateos/builder/internal/packer"
	"github.com/levitateos/builder/internal/preflight"
	"github.com/levitateos/builder/internal/rebuildcache"
	"github.com/levitateos/builder/internal/types"
)

var (
	buildJobs     int
	buildFormat   string
	skipPreflight bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the full pipeline: stage rootfs, build kernel, pack artifacts",
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().IntVar(&buildJobs, "jobs", 0, "kernel build parallelism (default: nproc)")
	buildCmd.Flags().StringVar(&buildFormat, "format", "squashfs", "root image format: squashfs or erofs")
	buildCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "skip the preflight check pass")
}

func newTransport() deps.Transport {
	return &deps.SchemeTransport{
		HTTP: deps.NewHTTPTransport(),
		SCP:  &deps.SCPTransport{},
		S3:   &deps.S3Transport{},
		OCI:  &deps.OCITransport{},
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	outputDir := filepath.Join(baseDir, constants.OutputDir)
	downloadsDir := filepath.Join(baseDir, constants.DownloadsDir)
	kconfigPath := filepath.Join(baseDir, "kconfig")

	if !skipPreflight {
		report := preflight.New(runner, logger).Run(preflight.Input{
			OutputDir:        outputDir,
			DownloadsDir:     downloadsDir,
			UpstreamISOPath:  cfg.UpstreamISOPath,
			KconfigPath:      kconfigPath,
			InitScriptSource: initramfs.InitTemplate(),
		})
		for _, check := range report.Checks {
			logger.Infof("preflight: %s: %s %s", check.Name, check.Status, check.Message)
		}
		if !report.OK() {
			for _, f := range report.Failures() {
				logger.Errorf("preflight failure: %s: %s", f.Name, f.Message)
			}
			return errBuildFailed("preflight checks failed")
		}
	}

	resolver := deps.New(baseDir, "levitateos", logger, runner, newTransport())

	kernelSrc, err := resolver.Resolve(deps.Descriptor{
		Name:      "kernel-source",
		EnvVar:    "LEVITATE_KERNEL_SOURCE",
		Sibling:   "linux",
		URL:       cfg.KernelSource,
		IsGitRepo: true,
		Validate:  deps.ValidateKernelTree,
	})
	if err != nil {
		return err
	}

	upstream, err := resolver.Resolve(deps.Descriptor{
		Name:   "upstream-iso",
		EnvVar: "LEVITATE_UPSTREAM_ISO_PATH",
		URL:    cfg.UpstreamISOURL,
		SHA256: cfg.UpstreamISOSHA,
	})
	if err != nil {
		return err
	}

	sourceRootfs := filepath.Join(downloadsDir, constants.DownloadsRootfsDir)
	if err := ensureUpstreamInputs(downloadsDir, upstream.Path, sourceRootfs); err != nil {
		return err
	}

	ctx := &types.BuildContext{
		Source:  sourceRootfs,
		Staging: filepath.Join(outputDir, constants.SquashfsRootDir),
		BaseDir: baseDir,
		Output:  outputDir,
		RunID:   uuid.New(),
		Logger:  logger,
		FS:      types.NewFS(),
		Runner:  runner,
	}
	logger.Infof("run %s: upstream ISO resolved via %s (%s)", ctx.RunID, upstream.Source, upstream.Path)

	cache, err := rebuildcache.New(outputDir, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	toolResolver := newCLIToolResolver(resolver, cfg)
	asm, err := assembler.New(ctx, cache, toolResolver, resolver, cfg.BusyboxURL, cfg.ISOLabel)
	if err != nil {
		return err
	}

	// Kernel first: CopyModules harvests the custom kernel's modules out of
	// output/staging while the rootfs is assembled.
	kernelVersion, err := asm.BuildKernel(ctx, kernelSrc.Path, kconfigPath, buildJobs)
	if err != nil {
		return err
	}
	logger.Infof("kernel version: %s", kernelVersion)

	if err := asm.StageRootfs(ctx); err != nil {
		return err
	}

	customKernel := kernelSrc.Source != deps.SourceDownloaded
	if err := asm.BuildLiveInitramfs(ctx, kernelVersion, customKernel); err != nil {
		return err
	}
	if err := asm.BuildInstalledInitramfs(ctx, kernelVersion); err != nil {
		return err
	}

	format := packer.FormatSquashfs
	if buildFormat == "erofs" {
		format = packer.FormatErofs
	}
	imagePath, err := asm.PackImage(ctx, format)
	if err != nil {
		return err
	}

	isoPath, err := asm.BuildISO(ctx, imagePath, format)
	if err != nil {
		return err
	}

	logger.Infof("build complete: %s, %s", imagePath, isoPath)
	return nil
}

// ensureUpstreamInputs extracts the upstream ISO's content tree (via
// xorriso's osirrox mode) when it is not already on disk, and confirms the
// extracted source rootfs exists. The rootfs extraction itself is a
// separate host-side step: it depends on the upstream's media layout
// (install.img vs. a container image) and is out of this pipeline's hands.
func ensureUpstreamInputs(downloadsDir, isoPath, sourceRootfs string) error {
	isoTree := filepath.Join(downloadsDir, constants.DownloadsISOTreeDir)
	if _, err := os.Stat(isoTree); err != nil {
		logger.Infof("extracting upstream ISO tree to %s", isoTree)
		if err := os.MkdirAll(isoTree, 0755); err != nil {
			return err
		}
		if _, stderr, err := runner.Run("xorriso",
			"-osirrox", "on", "-indev", isoPath, "-extract", "/", isoTree); err != nil {
			return errors.Wrapf(err, "extracting upstream ISO: %s", stderr)
		}
	}

	if _, err := os.Stat(sourceRootfs); err != nil {
		return errs.NewMissingInput("source rootfs", sourceRootfs+
			"; extract the upstream base distribution's root filesystem there before building")
	}
	return nil
}

func errBuildFailed(msg string) error { return errors.New(msg) }
