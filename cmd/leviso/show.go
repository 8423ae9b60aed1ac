package main

import (
	"fmt"

	"github.com/sanity-io/litter"
	"github.com/spf13/cobra"

	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/registry"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the component registry or resolved dependency status without building",
}

var showComponentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List every registered component: name, phase, op count",
	RunE:  runShowComponents,
}

var showDepsCmd = &cobra.Command{
	Use:   "deps",
	Short: "Resolve every external input and print how each was found",
	RunE:  runShowDeps,
}

func init() {
	showCmd.AddCommand(showComponentsCmd)
	showCmd.AddCommand(showDepsCmd)
}

func runShowComponents(cmd *cobra.Command, args []string) error {
	components := registry.All()
	if err := registry.Validate(components); err != nil {
		return err
	}
	for _, c := range components {
		fmt.Printf("%-10s %-28s %d op(s)\n", c.Phase(), c.Name(), len(c.Ops()))
	}
	fmt.Printf("\n%d components total\n", len(components))
	return nil
}

func runShowDeps(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	resolver := deps.New(baseDir, "levitateos", logger, runner, newTransport())

	descriptors := []deps.Descriptor{
		{Name: "kernel-source", EnvVar: "LEVITATE_KERNEL_SOURCE", Sibling: "linux", URL: cfg.KernelSource, IsGitRepo: true, Validate: deps.ValidateKernelTree},
		{Name: "upstream-iso", EnvVar: "LEVITATE_UPSTREAM_ISO_PATH", URL: cfg.UpstreamISOURL, SHA256: cfg.UpstreamISOSHA},
		{Name: "busybox", EnvVar: "LEVITATE_BUSYBOX_PATH", URL: cfg.BusyboxURL},
	}

	for _, d := range descriptors {
		resolved, err := resolver.Resolve(d)
		if err != nil {
			fmt.Printf("%-16s UNRESOLVED: %v\n", d.Name, err)
			continue
		}
		fmt.Printf("%-16s %-12s %s\n", d.Name, resolved.Source, resolved.Path)
	}

	if debugLog {
		litter.Dump(cfg)
	}
	return nil
}
