package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Engine.Currency = "SGD"
	cfg.Engine.Parallelism = 8
	cfg.Storage.DBPath = "/var/lib/recon/recon.db"

	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "MYR", cfg.Engine.Currency)
	assert.Equal(t, 4, cfg.Engine.Parallelism)
	assert.Equal(t, 500, cfg.Engine.PageSize)
	assert.True(t, cfg.Engine.RecordFailures)
	assert.Equal(t, "data/recon.db", cfg.Storage.DBPath)
	assert.Equal(t, "registry.yaml", cfg.Registry.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  currency: sgd\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "SGD", cfg.Engine.Currency)
	assert.Equal(t, 4, cfg.Engine.Parallelism)
	assert.Equal(t, "data/recon.db", cfg.Storage.DBPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	t.Setenv("RECON_DB_PATH", "/tmp/other.db")
	t.Setenv("RECON_PARALLELISM", "2")
	t.Setenv("RECON_LOG_LEVEL", "debug")
	t.Setenv("RECON_CURRENCY", "usd")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.DBPath)
	assert.Equal(t, 2, cfg.Engine.Parallelism)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "USD", cfg.Engine.Currency)
	assert.Equal(t, "registry.yaml", cfg.Registry.Path)
}

func TestLoad_BadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))
	t.Setenv("RECON_PARALLELISM", "lots")

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing environment")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero parallelism", func(c *Config) { c.Engine.Parallelism = 0 }, "parallelism"},
		{"negative page size", func(c *Config) { c.Engine.PageSize = -1 }, "page_size"},
		{"no db path", func(c *Config) { c.Storage.DBPath = "" }, "db_path"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYAMLFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Save(path, Default()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "currency: MYR")
	assert.Contains(t, contents, "db_path: data/recon.db")
	assert.Contains(t, contents, "record_failures: true")
}
