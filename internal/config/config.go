// Package config loads tool configuration from luma.yaml files.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the script's
// directory and its ancestors.
const FileName = "luma.yaml"

// Config is the tool configuration. The zero value is a usable default.
type Config struct {
	// SearchPaths are extra directories for resolving imports,
	// relative paths resolve against the config file's directory.
	SearchPaths []string `yaml:"search_paths"`

	// LogLevel is one of debug, info, warn, error. Empty means warn.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no luma.yaml exists.
func Default() *Config {
	return &Config{LogLevel: "warn"}
}

// Load reads and parses one configuration file. Relative search paths
// are rewritten to be absolute against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for i, sp := range cfg.SearchPaths {
		if !filepath.IsAbs(sp) {
			cfg.SearchPaths[i] = filepath.Join(base, sp)
		}
	}
	return cfg, nil
}

// Discover walks from dir upward looking for a luma.yaml, returning
// the default configuration when none exists.
func Discover(dir string) (*Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// ErrNotFound reports a missing configuration file to callers that
// require one explicitly.
var ErrNotFound = errors.New("config: luma.yaml not found")

// LoadExplicit loads a configuration the user named on the command
// line, distinguishing a missing file from a malformed one.
func LoadExplicit(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, ErrNotFound
	}
	return Load(path)
}
