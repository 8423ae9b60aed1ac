package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/levitateos/builder/internal/process"
	"github.com/levitateos/builder/internal/types"
)

var (
	cfgFile  string
	baseDir  string
	debugLog bool

	logger types.Logger
	runner types.Runner
)

var rootCmd = &cobra.Command{
	Use:   "leviso",
	Short: "Build LevitateOS: a reproducible, minimal Linux distribution",
	Long: `leviso assembles a LevitateOS root filesystem from an upstream rootfs,
builds its kernel, produces both initramfs variants, and packs the final
squashfs/EROFS image, FAT EFI boot image, hybrid ISO and checksum.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}
		return bindCommandFlags(cmd.Flags())
	},
}

// bindCommandFlags layers the invoked subcommand's own flags (e.g.
// `build --format`, `initramfs --variant`) on top of viper's env/config-file
// values, so loadConfig's Unmarshal sees a single merged view regardless of
// which of the three surfaces set a given key — the same layered-config
// idiom the teacher's config.ReadConfigBuild(..., cmd.Flags(), ...) follows.
func bindCommandFlags(flags *pflag.FlagSet) error {
	return viper.BindPFlags(flags)
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./leviso.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", ".", "project root (output/, downloads/ live here)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug logging")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(preflightCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(kernelCmd)
	rootCmd.AddCommand(initramfsCmd)
	rootCmd.AddCommand(isoCmd)
}

func initConfig() error {
	viper.SetConfigName("leviso")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(baseDir)
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetEnvPrefix("LEVITATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	logger = types.NewLogger(debugLog)
	runner = process.New()
	return nil
}

// loadConfig unmarshals the bound viper state into a types.Config.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(&cfg, decodeHook); err != nil {
		return cfg, fmt.Errorf("unmarshalling configuration: %w", err)
	}
	return cfg, nil
}
