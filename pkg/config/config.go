// Package config loads scraper configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence (last wins).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/regnum-scraper/pkg/client"
	"github.com/Sternrassler/regnum-scraper/pkg/export"
	"github.com/Sternrassler/regnum-scraper/pkg/ratelimit"
)

// Config represents the overall scraper configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Output  OutputConfig  `yaml:"output"`
	Redis   RedisConfig   `yaml:"redis"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig describes the upstream listing endpoint.
type APIConfig struct {
	BaseURL  string            `yaml:"base_url"`
	PageSize int               `yaml:"page_size"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  time.Duration     `yaml:"timeout"`
}

// FetchConfig controls the worker pool and throttle.
type FetchConfig struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	RequestDelay   time.Duration `yaml:"request_delay"`
	PageTimeout    time.Duration `yaml:"page_timeout"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
}

// OutputConfig lists the export destinations.
type OutputConfig struct {
	CSVPath     string `yaml:"csv_path"`
	XLSXPath    string `yaml:"xlsx_path"`
	Sheet       string `yaml:"sheet"`
	DatabaseDSN string `yaml:"database_dsn"`
}

// RedisConfig enables run summaries in Redis when Addr is set.
type RedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	HistoryLen int    `yaml:"history_len"`
}

// MetricsConfig enables a Pushgateway push when PushgatewayURL is set.
type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url"`
	Job            string `yaml:"job"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration that reproduces the stock behaviour:
// 30 items per page, 10 concurrent requests, 100ms delay, CSV + XLSX in the
// working directory.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:  client.DefaultBaseURL,
			PageSize: client.DefaultPageSize,
			Headers:  client.DefaultHeaders(),
			Timeout:  30 * time.Second,
		},
		Fetch: FetchConfig{
			MaxConcurrency: 10,
			RequestDelay:   ratelimit.DefaultDelay,
			PageTimeout:    15 * time.Second,
		},
		Output: OutputConfig{
			CSVPath:  export.DefaultCSVPath,
			XLSXPath: export.DefaultXLSXPath,
			Sheet:    export.DefaultSheet,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over the defaults. Headers given in the
// file are merged into the default headers.
func Load(path string) (*Config, error) {
	cfg := Default()
	defaultHeaders := cfg.API.Headers

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg.API.Headers = nil
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	merged := make(map[string]string, len(defaultHeaders)+len(cfg.API.Headers))
	for k, v := range defaultHeaders {
		merged[k] = v
	}
	for k, v := range cfg.API.Headers {
		merged[k] = v
	}
	cfg.API.Headers = merged

	return cfg, nil
}

// FromEnv builds the configuration the CLI runs with: REGNUM_CONFIG names an
// optional YAML file, then individual variables override single fields.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("REGNUM_CONFIG"); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	c.API.BaseURL = getEnv("REGNUM_BASE_URL", c.API.BaseURL)
	c.Output.CSVPath = getEnv("REGNUM_CSV_PATH", c.Output.CSVPath)
	c.Output.XLSXPath = getEnv("REGNUM_XLSX_PATH", c.Output.XLSXPath)
	c.Output.DatabaseDSN = getEnv("REGNUM_DATABASE_DSN", c.Output.DatabaseDSN)
	c.Redis.Addr = getEnv("REGNUM_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REGNUM_REDIS_PASSWORD", c.Redis.Password)
	c.Metrics.PushgatewayURL = getEnv("REGNUM_PUSHGATEWAY_URL", c.Metrics.PushgatewayURL)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var err error
	if c.API.PageSize, err = getEnvInt("REGNUM_PAGE_SIZE", c.API.PageSize); err != nil {
		return err
	}
	if c.Fetch.MaxConcurrency, err = getEnvInt("REGNUM_MAX_CONCURRENCY", c.Fetch.MaxConcurrency); err != nil {
		return err
	}
	if c.Fetch.RequestDelay, err = getEnvDuration("REGNUM_REQUEST_DELAY", c.Fetch.RequestDelay); err != nil {
		return err
	}
	if c.Fetch.RateLimit, err = getEnvFloat("REGNUM_RATE_LIMIT", c.Fetch.RateLimit); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration before any request is made.
func (c *Config) Validate() error {
	u, err := url.ParseRequestURI(c.API.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be > 0 (got %d)", c.API.PageSize)
	}
	if c.Fetch.MaxConcurrency <= 0 {
		return fmt.Errorf("fetch.max_concurrency must be > 0 (got %d)", c.Fetch.MaxConcurrency)
	}
	if c.Fetch.RequestDelay < 0 {
		return fmt.Errorf("fetch.request_delay must be >= 0 (got %s)", c.Fetch.RequestDelay)
	}
	if c.Fetch.RateLimit < 0 {
		return fmt.Errorf("fetch.rate_limit must be >= 0 (got %g)", c.Fetch.RateLimit)
	}
	if c.Output.CSVPath == "" || c.Output.XLSXPath == "" {
		return fmt.Errorf("output.csv_path and output.xlsx_path are required")
	}
	for _, p := range []string{c.Output.CSVPath, c.Output.XLSXPath} {
		dir := filepath.Dir(p)
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("output directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("output directory %s is not a directory", dir)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
