package types

import "github.com/google/uuid"

// BuildContext is the value passed through the executor for a single
// artifact build. It is created once, is read-only to callees, and is
// discarded with the build.
type BuildContext struct {
	// Source is the path to the extracted upstream rootfs tree.
	Source string
	// Staging is the destination tree under construction.
	Staging string
	// BaseDir is the project root.
	BaseDir string
	// Output is the artifact directory.
	Output string
	// RecipeBinary is an optional path to the recipe package-manager binary.
	RecipeBinary string

	RunID  uuid.UUID
	Logger Logger
	FS     FS
	Runner Runner
}

// Config is the ambient, env/flag-facing configuration distinct from the
// per-build BuildContext: it carries the environment-variable surface of
// spec.md §6 (kernel source location, upstream ISO, helper binary
// overrides, ISO_LABEL, busybox URL).
type Config struct {
	KernelSource     string `mapstructure:"kernel-source"`
	UpstreamISOPath  string `mapstructure:"upstream-iso-path"`
	UpstreamISOURL   string `mapstructure:"upstream-iso-url"`
	UpstreamISOSHA   string `mapstructure:"upstream-iso-sha256"`
	BusyboxURL       string `mapstructure:"busybox-url"`
	ISOLabel         string `mapstructure:"iso-label"`
	RecipeBinaryPath string `mapstructure:"recipe-bin"`
	DocsTuiPath      string `mapstructure:"docs-tui-bin"`
	InstallToolsPath string `mapstructure:"install-tools-bin"`
	CacheDir         string `mapstructure:"cache-dir"`
}
