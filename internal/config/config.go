package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace configuration file.
const FileName = "recon.yaml"

// Config represents the top-level recon.yaml configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Storage  StorageConfig  `yaml:"storage"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// EngineConfig controls reconciliation runs.
type EngineConfig struct {
	Currency       string `yaml:"currency" env:"RECON_CURRENCY"`
	Parallelism    int    `yaml:"parallelism" env:"RECON_PARALLELISM"`
	PageSize       int    `yaml:"page_size" env:"RECON_PAGE_SIZE"`
	RecordFailures bool   `yaml:"record_failures" env:"RECON_RECORD_FAILURES"`
}

// StorageConfig locates the ledger database. DBPath is relative to the
// workspace root unless absolute.
type StorageConfig struct {
	DBPath string `yaml:"db_path" env:"RECON_DB_PATH"`
}

// RegistryConfig locates the supplier registry.
type RegistryConfig struct {
	Path string `yaml:"path" env:"RECON_REGISTRY_PATH"`
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"RECON_LOG_LEVEL"`
	Format string `yaml:"format" env:"RECON_LOG_FORMAT"` // console or json
}

// Load reads a recon.yaml file from disk and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any RECON_* environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}
	cfg.Engine.Currency = strings.ToUpper(cfg.Engine.Currency)
	return nil
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Engine.Parallelism < 1 {
		return fmt.Errorf("engine.parallelism must be at least 1, got %d", c.Engine.Parallelism)
	}
	if c.Engine.PageSize < 0 {
		return fmt.Errorf("engine.page_size must not be negative, got %d", c.Engine.PageSize)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new workspace.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Currency:       "MYR",
			Parallelism:    4,
			PageSize:       500,
			RecordFailures: true,
		},
		Storage: StorageConfig{
			DBPath: "data/recon.db",
		},
		Registry: RegistryConfig{
			Path: "registry.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
