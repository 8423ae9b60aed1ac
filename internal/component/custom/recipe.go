package custom

import (
	"fmt"
	"path/filepath"

	"github.com/levitateos/builder/internal/elf"
	"github.com/levitateos/builder/internal/errs"
	"github.com/levitateos/builder/internal/licenses"
	"github.com/levitateos/builder/internal/types"
)

const recipeConfContent = `[repos]
default = rocky10

[cache]
dir = /var/cache/recipe
`

const recipeShContent = `export PATH="/usr/bin:$PATH"
`

// recipeDirs are the directories the recipe package manager expects at
// runtime.
var recipeDirs = []string{
	"etc/recipe",
	"etc/recipe/repos",
	"etc/recipe/repos/rocky10",
	"var/lib/recipe",
	"var/cache/recipe",
}

// copyRecipe installs the recipe package-manager binary. The ISO cannot
// install or update itself without it, so a missing binary fails the build
// rather than degrading silently.
func (h *Handler) copyRecipe(ctx *types.BuildContext, tracker *licenses.Tracker) error {
	ctx.Logger.Infof("copying recipe package manager")

	path, err := h.Deps.Resolve("recipe")
	if err != nil {
		return errs.NewMissingInput("recipe binary", err.Error())
	}

	dest := filepath.Join(ctx.Staging, "usr/bin/recipe")
	if err := copyExecutable(ctx, path, dest); err != nil {
		return fmt.Errorf("copying recipe from %s: %w", path, err)
	}
	if tracker != nil {
		tracker.RegisterBinary("recipe")
	}

	ctx.Logger.Infof("copied recipe to /usr/bin/recipe")
	return nil
}

// setupRecipeConfig lays down recipe's runtime directory tree and
// configuration. When h.Recipe is set (an on-disk recipe.yaml was found),
// its rendered content replaces the built-in recipeConfContent default.
func (h *Handler) setupRecipeConfig(ctx *types.BuildContext) error {
	ctx.Logger.Infof("setting up recipe configuration")

	for _, dir := range recipeDirs {
		if err := ctx.FS.MkdirAll(filepath.Join(ctx.Staging, dir), 0755); err != nil {
			return err
		}
	}

	content := recipeConfContent
	if h.Recipe != nil {
		content = h.Recipe.render()
	}
	if err := writeFile(ctx.FS, filepath.Join(ctx.Staging, "etc/recipe/recipe.conf"), content, 0644); err != nil {
		return err
	}
	return writeFile(ctx.FS, filepath.Join(ctx.Staging, "etc/profile.d/recipe.sh"), recipeShContent, 0644)
}

// docsTuiRequiredLibs are glibc libraries copyDocsTui must guarantee are
// present: the docs TUI is typically a statically-linked Bun binary built
// outside the rootfs toolchain, so its libc dependencies aren't picked up
// by the usual ELF-closure walk over rootfs binaries.
var docsTuiRequiredLibs = []string{"libpthread.so.0", "libdl.so.2", "libm.so.6"}

// copyDocsTui installs the terminal documentation viewer shown on first
// login to the live ISO.
func (h *Handler) copyDocsTui(ctx *types.BuildContext, tracker *licenses.Tracker) error {
	ctx.Logger.Infof("copying docs-tui")

	path, err := h.Deps.Resolve("docs-tui")
	if err != nil {
		return errs.NewMissingInput("docs-tui binary", err.Error())
	}

	dest := filepath.Join(ctx.Staging, "usr/bin/levitate-docs")
	if err := copyExecutable(ctx, path, dest); err != nil {
		return fmt.Errorf("copying docs-tui from %s: %w", path, err)
	}
	if tracker != nil {
		tracker.RegisterBinary("levitate-docs")
	}

	resolver := elf.NewResolver(ctx.Runner)
	for _, lib := range docsTuiRequiredLibs {
		if err := ensureLibraryPresent(ctx, resolver, lib, tracker); err != nil {
			return fmt.Errorf("required library %q not found for levitate-docs: %w", lib, err)
		}
	}

	ctx.Logger.Infof("copied levitate-docs to /usr/bin/levitate-docs")
	return nil
}

func ensureLibraryPresent(ctx *types.BuildContext, resolver *elf.Resolver, lib string, tracker *licenses.Tracker) error {
	for _, dir := range []string{"usr/lib64", "usr/lib"} {
		if pathExists(ctx.FS, filepath.Join(ctx.Staging, dir, lib)) {
			return nil
		}
	}
	if src, ok := resolver.FindLibrary(ctx.Source, lib); ok {
		data, err := ctx.FS.ReadFile(src)
		if err != nil {
			return err
		}
		if err := ctx.FS.MkdirAll(filepath.Join(ctx.Staging, "usr/lib64"), 0755); err != nil {
			return err
		}
		if err := ctx.FS.WriteFile(filepath.Join(ctx.Staging, "usr/lib64", lib), data, 0644); err != nil {
			return err
		}
		if tracker != nil {
			tracker.RegisterLibrary(lib)
		}
		return nil
	}
	return errs.NewMissingInput("library "+lib, "not present in staging or source rootfs")
}

// installTools copies the on-ISO installer tools (recstrap/recfstab/
// recchroot) that let the live ISO install itself to disk.
func (h *Handler) installTools(ctx *types.BuildContext) error {
	ctx.Logger.Infof("copying installation tools")

	for _, name := range []string{"recstrap", "recfstab", "recchroot"} {
		path, err := h.Deps.Resolve(name)
		if err != nil {
			return errs.NewMissingInput(name, err.Error()+"; installation tools are required: the ISO cannot install itself without them")
		}
		dest := filepath.Join(ctx.Staging, "usr/bin", name)
		if err := copyExecutable(ctx, path, dest); err != nil {
			return fmt.Errorf("copying %s from %s: %w", name, path, err)
		}
		ctx.Logger.Infof("copied %s to /usr/bin/%s", name, name)
	}
	return nil
}

func copyExecutable(ctx *types.BuildContext, src, dst string) error {
	data, err := ctx.FS.ReadFile(src)
	if err != nil {
		return err
	}
	if err := ctx.FS.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := ctx.FS.WriteFile(dst, data, 0755); err != nil {
		return err
	}
	return ctx.FS.Chmod(dst, 0755)
}
