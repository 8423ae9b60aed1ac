package main

import (
	"github.com/levitateos/builder/internal/deps"
	"github.com/levitateos/builder/internal/types"
)

// cliToolResolver adapts internal/deps's Descriptor-based Resolver to the
// single-argument custom.ToolResolver interface the component dispatcher
// needs, covering the out-of-tree helper binaries named in spec.md §4.10
// (recipe package manager, docs TUI, on-ISO install tools).
type cliToolResolver struct {
	resolver    *deps.Resolver
	descriptors map[string]deps.Descriptor
}

func newCLIToolResolver(resolver *deps.Resolver, cfg types.Config) *cliToolResolver {
	isExecutable := deps.ValidateExecutable(runner)
	return &cliToolResolver{
		resolver: resolver,
		descriptors: map[string]deps.Descriptor{
			"recipe": {
				Name:     "recipe",
				EnvVar:   "LEVITATE_RECIPE_BIN",
				Sibling:  "levitate-recipe",
				Validate: isExecutable,
			},
			"docs-tui": {
				Name:     "docs-tui",
				EnvVar:   "LEVITATE_DOCS_TUI_BIN",
				Sibling:  "levitate-docs",
				Validate: isExecutable,
			},
			"recstrap": {
				Name:     "recstrap",
				EnvVar:   "LEVITATE_INSTALL_TOOLS_BIN",
				Sibling:  "levitate-install-tools",
				Validate: isExecutable,
			},
			"recfstab": {
				Name:     "recfstab",
				EnvVar:   "LEVITATE_INSTALL_TOOLS_BIN",
				Sibling:  "levitate-install-tools",
				Validate: isExecutable,
			},
			"recchroot": {
				Name:     "recchroot",
				EnvVar:   "LEVITATE_INSTALL_TOOLS_BIN",
				Sibling:  "levitate-install-tools",
				Validate: isExecutable,
			},
		},
	}
}

func (r *cliToolResolver) Resolve(name string) (string, error) {
	d, ok := r.descriptors[name]
	if !ok {
		d = deps.Descriptor{Name: name}
	}
	resolved, err := r.resolver.Resolve(d)
	if err != nil {
		return "", err
	}
	return resolved.Path, nil
}
