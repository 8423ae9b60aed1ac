package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/initramfs"
	"github.com/levitateos/builder/internal/kernel"
)

var (
	initramfsVariant string
)

var initramfsCmd = &cobra.Command{
	Use:   "initramfs",
	Short: "Build one initramfs variant (live or installed) from the staged rootfs",
	RunE:  runInitramfs,
}

func init() {
	initramfsCmd.Flags().StringVar(&initramfsVariant, "variant", "live", "live or installed")
}

func runInitramfs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	staging := filepath.Join(baseDir, constants.OutputDir, constants.SquashfsRootDir)
	outputDir := filepath.Join(baseDir, constants.OutputDir)

	version, err := kernel.InstalledVersion(staging)
	if err != nil {
		return err
	}

	switch initramfsVariant {
	case "installed":
		mounter, err := initramfs.NewMounter()
		if err != nil {
			return err
		}
		dest := filepath.Join(outputDir, filepath.Base(constants.IsoInstalledInitrdPath))
		builder := &initramfs.InstalledBuilder{Runner: runner, Mounter: mounter, Logger: logger}
		if err := builder.Build(staging, version, dest); err != nil {
			return err
		}
		logger.Infof("installed-system initramfs written to %s", dest)
		return nil

	default:
		resolver := deps.New(baseDir, "levitateos", logger, runner, newTransport())

		dest := filepath.Join(outputDir, filepath.Base(constants.IsoLiveInitramfsPath))
		modulesDir := filepath.Join(staging, "lib/modules")
		builder := &initramfs.LiveBuilder{Logger: logger, Resolver: resolver, BusyboxURL: cfg.BusyboxURL}

		err := builder.Build(initramfs.LiveSpec{
			WorkDir:        filepath.Join(outputDir, ".initramfs-live"+constants.WorkSuffix),
			OutputPath:     dest,
			ModulesDir:     modulesDir,
			KernelVersion:  version,
			ModulesBuiltin: filepath.Join(modulesDir, version, "modules.builtin"),
		})
		if err != nil {
			return err
		}
		logger.Infof("live initramfs written to %s", dest)
		return nil
	}
}
