// Package config holds the CLI-wide run settings (spec.md §6): log level,
// default request timeout, predefined variable overrides, and the merge of
// one or more YAML config files supplied via -config.
//
// Grounded on the now-retired internal/config/config.go's
// configDir/Load/Save pattern (YAML file under a dotfile directory,
// defaulted when absent); repurposed here for an explicit, possibly
// multi-file -config flag instead of an implicit per-user dotfile, and
// trimmed of the license-key/registry fields that belonged to the
// teacher's install-and-run-twins product.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully merged set of run settings.
type Config struct {
	LogLevel       string            `yaml:"log_level"`
	DefaultTimeout time.Duration     `yaml:"default_timeout"`
	Vars           map[string]string `yaml:"vars"`
}

// Default returns the zero-config starting point, matching the teacher's
// defaultConfig() pattern of an explicit, documented set of defaults
// rather than relying on Go's zero values to mean the right thing.
func Default() Config {
	return Config{
		LogLevel:       "info",
		DefaultTimeout: 30 * time.Second,
		Vars:           map[string]string{},
	}
}

// Load merges one or more YAML config files, in the order given, into
// Default()'s starting point; later files win field-by-field, and Vars
// entries accumulate rather than replace wholesale.
func Load(paths []string) (Config, error) {
	cfg := Default()
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		var overlay Config
		if err := yaml.Unmarshal(raw, &overlay); err != nil {
			return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		cfg = merge(cfg, overlay)
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.DefaultTimeout != 0 {
		base.DefaultTimeout = overlay.DefaultTimeout
	}
	for k, v := range overlay.Vars {
		base.Vars[k] = v
	}
	return base
}

// ParseConfigPaths splits the -config flag's comma-separated file list.
func ParseConfigPaths(flag string) []string {
	if flag == "" {
		return nil
	}
	parts := strings.Split(flag, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseVarFlags parses repeated -var NAME=VALUE flags into a map, merged
// on top of whatever -config already populated.
func ParseVarFlags(flags []string, into map[string]string) error {
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("config: -var %q must be in NAME=VALUE form", f)
		}
		if name == "" {
			return fmt.Errorf("config: -var %q has an empty variable name", f)
		}
		into[name] = value
	}
	return nil
}

// ParseTestPrefixes splits the -tests flag's comma-separated prefix list.
func ParseTestPrefixes(flag string) []string {
	if flag == "" {
		return nil
	}
	parts := strings.Split(flag, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
