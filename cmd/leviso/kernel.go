package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/kernel"
)

var (
	kernelJobs int
)

var kernelCmd = &cobra.Command{
	Use:   "kernel",
	Short: "Build the kernel only, into output/staging",
	RunE:  runKernel,
}

func init() {
	kernelCmd.Flags().IntVar(&kernelJobs, "jobs", 0, "build parallelism (default: nproc)")
}

func runKernel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	jobs := kernelJobs
	if jobs <= 0 {
		jobs = kernel.ParseJobsFromNproc(runner)
	}

	staging := filepath.Join(baseDir, constants.OutputDir, "staging")
	buildDir := filepath.Join(baseDir, constants.OutputDir, constants.KernelBuildDir)
	kconfigPath := filepath.Join(baseDir, "kconfig")

	version, err := kernel.New(runner, logger).Build(kernelSrc.Path, buildDir, kconfigPath, staging, jobs)
	if err != nil {
		return err
	}
	logger.Infof("kernel %s built into %s", version, staging)
	return nil
}
