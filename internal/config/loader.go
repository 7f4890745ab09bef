package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CRATESCOPE_METRICS.
const EnvPrefix = "CRATESCOPE"

// FlagKeys maps command-line flag names to the config keys they override.
// Flags missing from the set passed to Load are skipped.
var FlagKeys = map[string]string{
	"db":                  "db",
	"format":              "format",
	"metrics":             "metrics",
	"cache-size":          "cache_size",
	"load-output-dirs":    "load.build_scripts",
	"with-proc-macro":     "load.proc_macros",
	"features":            "load.features",
	"all-features":        "load.all_features",
	"no-default-features": "load.no_default_features",
	"cfg":                 "load.cfg",
	"ignore":              "load.ignore",
	"workers":             "load.workers",
}

// Load reads configuration with the following priority (highest to lowest):
//  1. Flags in flags that were set on the command line
//  2. Environment variables (CRATESCOPE_*)
//  3. Config file (.cratescope.yaml or .cratescope.yml in rootDir), or
//     configFile when non-empty
//  4. Default values
func Load(rootDir, configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(rootDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// CRATESCOPE_LOAD_BUILD_SCRIPTS -> load.build_scripts
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env still apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("db", d.DB)
	v.SetDefault("format", d.Format)
	v.SetDefault("metrics", d.Metrics)
	v.SetDefault("cache_size", d.CacheSize)

	v.SetDefault("load.build_scripts", d.Load.BuildScripts)
	v.SetDefault("load.proc_macros", d.Load.ProcMacros)
	v.SetDefault("load.features", d.Load.Features)
	v.SetDefault("load.all_features", d.Load.AllFeatures)
	v.SetDefault("load.no_default_features", d.Load.NoDefaultFeatures)
	v.SetDefault("load.cfg", d.Load.Cfg)
	v.SetDefault("load.ignore", d.Load.Ignore)
	v.SetDefault("load.workers", d.Load.Workers)
}
