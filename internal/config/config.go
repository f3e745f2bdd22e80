package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig represents run-history store configuration
type HistoryConfig struct {
	// Enabled enables recording runs to the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`

	// KeepRuns is the number of most recent runs to retain (0 = unlimited)
	KeepRuns int `yaml:"keep_runs"`
}

// Config represents dunesmoke configuration options
type Config struct {
	// DuneBinary is the dune executable to invoke
	DuneBinary string `yaml:"dune_binary"`

	// BuildTimeout is the maximum time for a single build command
	BuildTimeout time.Duration `yaml:"build_timeout"`

	// RunTimeout is the maximum time for running a produced binary
	RunTimeout time.Duration `yaml:"run_timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written (empty disables)
	LogDir string `yaml:"log_dir"`

	// NoColor disables colored console output
	NoColor bool `yaml:"no_color"`

	// SuiteDirs are directories scanned for custom suite files
	SuiteDirs []string `yaml:"suite_dirs"`

	// Arch overrides target architecture detection
	Arch string `yaml:"arch"`

	// OCamlVersion overrides toolchain version detection
	OCamlVersion string `yaml:"ocaml_version"`

	// ArtifactPath is where the JSON run artifact is written (empty disables)
	ArtifactPath string `yaml:"artifact_path"`

	// KeepTemp preserves scenario temp directories for debugging
	KeepTemp bool `yaml:"keep_temp"`

	// History contains run-history store configuration
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		DuneBinary:   "dune",
		BuildTimeout: 5 * time.Minute,
		RunTimeout:   1 * time.Minute,
		LogLevel:     "info",
		LogDir:       "",
		NoColor:      false,
		SuiteDirs:    nil,
		Arch:         "",
		OCamlVersion: "",
		ArtifactPath: "",
		KeepTemp:     false,
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   "", // resolved via GetHistoryDBPath when empty
			KeepRuns: 100,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Temporary struct so duration fields can be written as strings
	type yamlConfig struct {
		DuneBinary   string        `yaml:"dune_binary"`
		BuildTimeout string        `yaml:"build_timeout"`
		RunTimeout   string        `yaml:"run_timeout"`
		LogLevel     string        `yaml:"log_level"`
		LogDir       string        `yaml:"log_dir"`
		NoColor      bool          `yaml:"no_color"`
		SuiteDirs    []string      `yaml:"suite_dirs"`
		Arch         string        `yaml:"arch"`
		OCamlVersion string        `yaml:"ocaml_version"`
		ArtifactPath string        `yaml:"artifact_path"`
		KeepTemp     bool          `yaml:"keep_temp"`
		History      HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.DuneBinary != "" {
		cfg.DuneBinary = yamlCfg.DuneBinary
	}
	if yamlCfg.BuildTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.BuildTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid build_timeout format %q: %w", yamlCfg.BuildTimeout, err)
		}
		cfg.BuildTimeout = timeout
	}
	if yamlCfg.RunTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.RunTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid run_timeout format %q: %w", yamlCfg.RunTimeout, err)
		}
		cfg.RunTimeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.NoColor {
		cfg.NoColor = yamlCfg.NoColor
	}
	if len(yamlCfg.SuiteDirs) > 0 {
		cfg.SuiteDirs = yamlCfg.SuiteDirs
	}
	if yamlCfg.Arch != "" {
		cfg.Arch = yamlCfg.Arch
	}
	if yamlCfg.OCamlVersion != "" {
		cfg.OCamlVersion = yamlCfg.OCamlVersion
	}
	if yamlCfg.ArtifactPath != "" {
		cfg.ArtifactPath = yamlCfg.ArtifactPath
	}
	if yamlCfg.KeepTemp {
		cfg.KeepTemp = yamlCfg.KeepTemp
	}

	// Merge the history section only if it was provided at all; a second
	// unmarshal into a raw map tells us which keys were actually present.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if historySection, exists := rawMap["history"]; exists && historySection != nil {
			history := yamlCfg.History
			historyMap, _ := historySection.(map[string]interface{})

			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = history.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				cfg.History.DBPath = history.DBPath
			}
			if _, exists := historyMap["keep_runs"]; exists {
				cfg.History.KeepRuns = history.KeepRuns
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .dunesmoke/config.yaml in the
// specified directory. Missing directory or file yields defaults.
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".dunesmoke", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(duneBinary *string, buildTimeout *time.Duration, runTimeout *time.Duration, arch *string, ocamlVersion *string, artifactPath *string, keepTemp *bool) {
	if duneBinary != nil {
		c.DuneBinary = *duneBinary
	}
	if buildTimeout != nil {
		c.BuildTimeout = *buildTimeout
	}
	if runTimeout != nil {
		c.RunTimeout = *runTimeout
	}
	if arch != nil {
		c.Arch = *arch
	}
	if ocamlVersion != nil {
		c.OCamlVersion = *ocamlVersion
	}
	if artifactPath != nil {
		c.ArtifactPath = *artifactPath
	}
	if keepTemp != nil {
		c.KeepTemp = *keepTemp
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.DuneBinary == "" {
		return fmt.Errorf("dune_binary cannot be empty")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	// Timeouts can be 0 (no timeout) or positive, negative is invalid
	if c.BuildTimeout < 0 {
		return fmt.Errorf("build_timeout must be >= 0, got %v", c.BuildTimeout)
	}
	if c.RunTimeout < 0 {
		return fmt.Errorf("run_timeout must be >= 0, got %v", c.RunTimeout)
	}

	for _, dir := range c.SuiteDirs {
		if dir == "" {
			return fmt.Errorf("suite_dirs entries cannot be empty")
		}
	}

	if c.History.Enabled {
		if c.History.KeepRuns < 0 {
			return fmt.Errorf("history.keep_runs must be >= 0, got %d", c.History.KeepRuns)
		}
	}

	return nil
}
