package custom

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecipeConfig is the optional on-disk override for the recipe package
// manager's default repo/cache settings, read from a project-root YAML
// file (conventionally "recipe.yaml") rather than hardcoded. Absent a
// file, setupRecipeConfig falls back to the built-in default.
type RecipeConfig struct {
	DefaultRepo string            `yaml:"default_repo"`
	Repos       map[string]string `yaml:"repos"`
	CacheDir    string            `yaml:"cache_dir"`
}

// LoadRecipeConfig reads and parses path as a RecipeConfig. A missing file
// is not an error — the caller treats a nil *RecipeConfig as "use the
// built-in default".
func LoadRecipeConfig(path string) (*RecipeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading recipe config %s: %w", path, err)
	}

	var cfg RecipeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing recipe config %s: %w", path, err)
	}
	if cfg.DefaultRepo == "" {
		cfg.DefaultRepo = "rocky10"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "/var/cache/recipe"
	}
	return &cfg, nil
}

// render produces the INI-style recipe.conf content for this config.
func (c *RecipeConfig) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[repos]\ndefault = %s\n\n", c.DefaultRepo)

	names := make([]string, 0, len(c.Repos))
	for name := range c.Repos {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "[repos.%s]\nurl = %s\n\n", name, c.Repos[name])
	}
	fmt.Fprintf(&b, "[cache]\ndir = %s\n", c.CacheDir)
	return b.String()
}
