package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/levitateos/builder/internal/constants"
	"github.com/levitateos/builder/internal/initramfs"
	"github.com/levitateos/builder/internal/preflight"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Run host/input validation checks without building anything",
	RunE:  runPreflight,
}

func runPreflight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	report := preflight.New(runner, logger).Run(preflight.Input{
		OutputDir:        filepath.Join(baseDir, constants.OutputDir),
		DownloadsDir:     filepath.Join(baseDir, constants.DownloadsDir),
		UpstreamISOPath:  cfg.UpstreamISOPath,
		KconfigPath:      filepath.Join(baseDir, "kconfig"),
		InitScriptSource: initramfs.InitTemplate(),
	})

	for _, check := range report.Checks {
		logger.Infof("%-28s %-5s %s", check.Name, check.Status, check.Message)
	}
	if !report.OK() {
		return errBuildFailed("preflight checks failed")
	}
	logger.Infof("preflight passed")
	return nil
}
