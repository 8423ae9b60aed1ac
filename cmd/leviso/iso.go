package main

import (
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/levitateos/builder/internal/assembler"
	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/packer"
	"github.com/levitateos/builder/internal/rebuildcache"
	"github.com/levitateos/builder/internal/types"
)

var isoFormat string

var isoCmd = &cobra.Command{
	Use:   "iso",
	Short: "Pack the staged rootfs and author the final hybrid ISO + checksum",
	RunE:  runISO,
}

func init() {
	isoCmd.Flags().StringVar(&isoFormat, "format", "squashfs", "root image format: squashfs or erofs")
}

func runISO(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	outputDir := filepath.Join(baseDir, constants.OutputDir)

	ctx := &types.BuildContext{
		Source:  filepath.Join(baseDir, constants.DownloadsDir, constants.DownloadsRootfsDir),
		Staging: filepath.Join(outputDir, constants.SquashfsRootDir),
		BaseDir: baseDir,
		Output:  outputDir,
		RunID:   uuid.New(),
		Logger:  logger,
		FS:      types.NewFS(),
		Runner:  runner,
	}

	cache, err := rebuildcache.New(outputDir, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	resolver := deps.New(baseDir, "levitateos", logger, runner, newTransport())
	asm, err := assembler.New(ctx, cache, newCLIToolResolver(resolver, cfg), resolver, cfg.BusyboxURL, cfg.ISOLabel)
	if err != nil {
		return err
	}

	format := packer.FormatSquashfs
	if isoFormat == "erofs" {
		format = packer.FormatErofs
	}

	imagePath, err := asm.PackImage(ctx, format)
	if err != nil {
		return err
	}
	logger.Infof("packed root image: %s", imagePath)

	isoPath, err := asm.BuildISO(ctx, imagePath, format)
	if err != nil {
		return err
	}
	logger.Infof("authored ISO: %s (checksum alongside)", isoPath)
	return nil
}
