// Package config holds compiler-wide constants and the optional
// `.sblrc.yaml` project configuration file: additional import search
// paths, default optimizer flags, and an FFI library alias table.
package config

import (
	"os"
	"path/filepath"

	"github.com/alekratz/sbl/internal/optimize"
	"gopkg.in/yaml.v3"
)

// SourceExt is the recognized extension for SBL source files.
const SourceExt = ".sbl"

// RCFileName is the project config file the CLI looks for in the current
// directory before falling back to built-in defaults.
const RCFileName = ".sblrc.yaml"

// DefaultSearchPaths lists the import search directories the CLI always
// appends last, after `.sblrc.yaml` and SBL_PATH entries.
var DefaultSearchPaths = []string{".", "./lib"}

// OptimizeFlags mirrors optimize.Flags in a YAML-friendly shape (named
// fields with `yaml` tags), since optimize.Flags itself carries no tags.
type OptimizeFlags struct {
	Inline        bool `yaml:"inline"`
	Store         bool `yaml:"store"`
	PushCompress  bool `yaml:"push_compress"`
	AbsoluteJumps bool `yaml:"absolute_jumps"`
}

// FFI holds the `.sblrc.yaml` `ffi.libs` alias table: short names mapped to
// platform-specific shared-library filenames, supplementing §4.9's raw
// library-name lookup.
type FFI struct {
	Libs map[string]string `yaml:"libs"`
}

// Config is the parsed `.sblrc.yaml` project file.
type Config struct {
	SearchPaths []string       `yaml:"search_paths"`
	Optimize    *OptimizeFlags `yaml:"optimize"`
	FFI         FFI            `yaml:"ffi"`
}

// Load reads and parses path. A missing file is not an error: Load returns
// an empty Config so the caller falls through to built-in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// OptimizeFlagsOrDefault returns the config's optimizer flags as
// optimize.Flags, or optimize.Default() if the file didn't set any.
func (c *Config) OptimizeFlagsOrDefault() optimize.Flags {
	if c.Optimize == nil {
		return optimize.Default()
	}
	return optimize.Flags{
		Inline:        c.Optimize.Inline,
		Store:         c.Optimize.Store,
		PushCompress:  c.Optimize.PushCompress,
		AbsoluteJumps: c.Optimize.AbsoluteJumps,
	}
}

// ResolveLib maps a `foreign` block's declared library name through the
// `ffi.libs` alias table, falling back to the literal name if it has no
// entry (purely additive, per SPEC_FULL.md §4).
func (c *Config) ResolveLib(name string) string {
	if alias, ok := c.FFI.Libs[name]; ok {
		return alias
	}
	return name
}

// SearchPathsFromEnv splits SBL_PATH (an OS path-list, like PATH) into
// directories, to be appended after the importing file's own directory and
// any `.sblrc.yaml` entries and before DefaultSearchPaths: the importing file's own
// directory is always searched first and is never overridden.
func SearchPathsFromEnv(sblPath string) []string {
	if sblPath == "" {
		return nil
	}
	return filepath.SplitList(sblPath)
}
