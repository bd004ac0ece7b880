// Package config loads classpeek configuration from a YAML file.
// All fields have working defaults so the tool runs with no config at all.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all classpeek configuration.
type Config struct {
	// Index database settings
	Index IndexConfig `yaml:"index"`

	// Viewer settings
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// IndexConfig configures the class index database.
type IndexConfig struct {
	// DatabasePath is where the SQLite index lives.
	DatabasePath string `yaml:"database_path"`

	// Workers bounds concurrent parsing during `classpeek index`.
	Workers int `yaml:"workers"`
}

// UIConfig configures the terminal viewer.
type UIConfig struct {
	Theme string `yaml:"theme"` // "dark" or "light"
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// EnvIndexPath overrides the index database path when set.
const EnvIndexPath = "CLASSPEEK_INDEX_PATH"

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Index: IndexConfig{
			DatabasePath: filepath.Join(home, ".classpeek", "index.db"),
			Workers:      4,
		},
		UI: UIConfig{
			Theme: "dark",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".classpeek.yaml"
	}
	return filepath.Join(home, ".classpeek.yaml")
}

// Load reads the config at path, falling back to defaults for anything the
// file leaves out. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Index.Workers <= 0 {
		cfg.Index.Workers = DefaultConfig().Index.Workers
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if p := os.Getenv(EnvIndexPath); p != "" {
		c.Index.DatabasePath = p
	}
}

// Save writes the config as YAML, creating the parent directory if needed.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
