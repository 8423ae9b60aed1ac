// Package custom implements the imperative handlers behind component.OpCustom
// tags: everything that doesn't reduce to a declarative Dir/Bin/CopyFile/...
// record. Grounded on original_source/src/component/custom/*.rs.
package custom

import (
	"fmt"

	"github.com/levitateos/builder/internal/component"
	"github.com/levitateos/builder/internal/licenses"
	"github.com/levitateos/builder/internal/types"
)

// Handler implements component.CustomDispatcher, routing each CustomOp tag
// to its concrete implementation.
type Handler struct {
	Deps ToolResolver
	// Recipe overrides the built-in recipe.conf defaults when set, loaded
	// from an optional on-disk YAML file (see LoadRecipeConfig). Nil means
	// setupRecipeConfig writes the built-in default.
	Recipe *RecipeConfig
}

// ToolResolver locates out-of-tree helper binaries (recipe package manager,
// docs TUI, install tools) the way internal/deps resolves them. Declared
// here to avoid component/custom importing internal/deps for a single
// method set.
type ToolResolver interface {
	Resolve(name string) (path string, err error)
}

// New builds a Handler. recipe may be nil, meaning setupRecipeConfig uses
// the built-in default rather than an on-disk override.
func New(deps ToolResolver, recipe *RecipeConfig) *Handler {
	return &Handler{Deps: deps, Recipe: recipe}
}

// Dispatch routes tag to its handler function.
func (h *Handler) Dispatch(ctx *types.BuildContext, tracker *licenses.Tracker, tag component.CustomOp) error {
	switch tag {
	case component.CreateFhsSymlinks:
		return createFhsSymlinks(ctx)
	case component.CreateLiveOverlay:
		return createLiveOverlay(ctx)
	case component.CopyWifiFirmware:
		return copyWifiFirmware(ctx)
	case component.CopyAllFirmware:
		return copyAllFirmware(ctx)
	case component.RunDepmod:
		return runDepmod(ctx)
	case component.CopyModules:
		return copyModules(ctx)
	case component.CreateEtcFiles:
		return createEtcFiles(ctx)
	case component.CopyTimezoneData:
		return copyTimezoneData(ctx)
	case component.CopyLocales:
		return copyLocales(ctx)
	case component.CopySystemdBootEfi:
		return copySystemdBootEfi(ctx)
	case component.CopyKeymaps:
		return copyKeymaps(ctx)
	case component.CreateWelcomeMessage:
		return createWelcomeMessage(ctx)
	case component.InstallTools:
		return h.installTools(ctx)
	case component.DisableSelinux:
		return disableSelinux(ctx)
	case component.CreatePamFiles:
		return createPamFiles(ctx)
	case component.CreateSecurityConfig:
		return createSecurityConfig(ctx)
	case component.CopyRecipe:
		return h.copyRecipe(ctx, tracker)
	case component.SetupRecipeConfig:
		return h.setupRecipeConfig(ctx)
	case component.SetupLiveSystemdConfigs:
		return setupLiveSystemdConfigs(ctx)
	case component.CopyDocsTui:
		return h.copyDocsTui(ctx, tracker)
	case component.CreateSshHostKeys:
		return createSshHostKeys(ctx)
	default:
		return fmt.Errorf("unhandled custom op %d", tag)
	}
}
