package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "https://api.avtopro.az/api/register_numbers", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.PageSize)
	assert.Equal(t, 10, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, 100*time.Millisecond, cfg.Fetch.RequestDelay)
	assert.Equal(t, "register_numbers.csv", cfg.Output.CSVPath)
	assert.Equal(t, "register_numbers.xlsx", cfg.Output.XLSXPath)
	assert.Empty(t, cfg.Output.DatabaseDSN)
	assert.Empty(t, cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
api:
  page_size: 50
  headers:
    Accept-Language: az
fetch:
  max_concurrency: 4
  request_delay: 250ms
  rate_limit: 5
output:
  csv_path: out.csv
redis:
  addr: localhost:6379
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.API.PageSize)
	assert.Equal(t, 4, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.RequestDelay)
	assert.Equal(t, 5.0, cfg.Fetch.RateLimit)
	assert.Equal(t, "out.csv", cfg.Output.CSVPath)
	assert.Equal(t, "register_numbers.xlsx", cfg.Output.XLSXPath, "unset fields keep defaults")
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	assert.Equal(t, "az", cfg.API.Headers["Accept-Language"])
	assert.Equal(t, "https://www.avtopro.az", cfg.API.Headers["Origin"], "default headers kept")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "fetch: [not, a, map]"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("REGNUM_BASE_URL", "http://localhost:9999/api/register_numbers")
	t.Setenv("REGNUM_PAGE_SIZE", "15")
	t.Setenv("REGNUM_MAX_CONCURRENCY", "3")
	t.Setenv("REGNUM_REQUEST_DELAY", "1s")
	t.Setenv("REGNUM_RATE_LIMIT", "2.5")
	t.Setenv("REGNUM_DATABASE_DSN", "regnum.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "http://localhost:9999/api/register_numbers", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.API.PageSize)
	assert.Equal(t, 3, cfg.Fetch.MaxConcurrency)
	assert.Equal(t, time.Second, cfg.Fetch.RequestDelay)
	assert.Equal(t, 2.5, cfg.Fetch.RateLimit)
	assert.Equal(t, "regnum.db", cfg.Output.DatabaseDSN)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"REGNUM_PAGE_SIZE":       "thirty",
		"REGNUM_MAX_CONCURRENCY": "1.5",
		"REGNUM_REQUEST_DELAY":   "100",
		"REGNUM_RATE_LIMIT":      "fast",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			err := Default().ApplyEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestFromEnv_ConfigFile(t *testing.T) {
	path := writeFile(t, "fetch:\n  max_concurrency: 2\n")
	t.Setenv("REGNUM_CONFIG", path)
	t.Setenv("REGNUM_MAX_CONCURRENCY", "7")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Fetch.MaxConcurrency, "env wins over file")
}

func TestFromEnv_MissingFile(t *testing.T) {
	t.Setenv("REGNUM_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.API.BaseURL = "register_numbers" }},
		{"zero page size", func(c *Config) { c.API.PageSize = 0 }},
		{"zero concurrency", func(c *Config) { c.Fetch.MaxConcurrency = 0 }},
		{"negative delay", func(c *Config) { c.Fetch.RequestDelay = -time.Millisecond }},
		{"negative rate", func(c *Config) { c.Fetch.RateLimit = -1 }},
		{"empty csv path", func(c *Config) { c.Output.CSVPath = "" }},
		{"missing output dir", func(c *Config) { c.Output.XLSXPath = filepath.Join(dir, "no", "out.xlsx") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
