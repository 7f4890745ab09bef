// Package config loads cratescope settings from defaults, an optional
// .cratescope.yaml in the workspace root, CRATESCOPE_* environment
// variables and command-line flags, in increasing priority.
package config

import (
	"path/filepath"

	"github.com/jward/cratescope/internal/workspace"
)

// FileName is the config file looked up in the workspace root.
const FileName = ".cratescope"

// DefaultDBPath is the database location relative to the workspace root
// when db is unset.
const DefaultDBPath = "target/cratescope.db"

// Config is the full set of settings.
type Config struct {
	DB        string     `mapstructure:"db"`
	Format    string     `mapstructure:"format"`
	Metrics   bool       `mapstructure:"metrics"`
	CacheSize int        `mapstructure:"cache_size"`
	Load      LoadConfig `mapstructure:"load"`
}

// LoadConfig controls how the workspace loader builds the database.
type LoadConfig struct {
	BuildScripts      bool     `mapstructure:"build_scripts"`
	ProcMacros        bool     `mapstructure:"proc_macros"`
	Features          []string `mapstructure:"features"`
	AllFeatures       bool     `mapstructure:"all_features"`
	NoDefaultFeatures bool     `mapstructure:"no_default_features"`
	Cfg               []string `mapstructure:"cfg"`
	Ignore            []string `mapstructure:"ignore"`
	Workers           int      `mapstructure:"workers"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Format:    "text",
		CacheSize: 1024,
		Load: LoadConfig{
			Features: []string{},
			Cfg:      []string{},
			Ignore:   []string{},
		},
	}
}

// DBPath resolves the database path against the workspace root.
func (c *Config) DBPath(root string) string {
	p := c.DB
	if p == "" {
		p = filepath.FromSlash(DefaultDBPath)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ToLoadOptions converts the load section into loader options.
func (c *Config) ToLoadOptions() workspace.Options {
	return workspace.Options{
		IncludeBuildScripts: c.Load.BuildScripts,
		IncludeProcMacros:   c.Load.ProcMacros,
		Features:            c.Load.Features,
		AllFeatures:         c.Load.AllFeatures,
		NoDefaultFeatures:   c.Load.NoDefaultFeatures,
		Cfg:                 c.Load.Cfg,
		Ignore:              c.Load.Ignore,
		Workers:             c.Load.Workers,
	}
}
