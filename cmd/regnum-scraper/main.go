package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/regnum-scraper/pkg/config"
	"github.com/Sternrassler/regnum-scraper/pkg/logging"
	"github.com/Sternrassler/regnum-scraper/pkg/scraper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout)
	stop()
	os.Exit(code)
}

// run executes one scrape and returns the process exit code. Logging starts
// from LOG_LEVEL/LOG_FORMAT so configuration errors are reported, and is set up
// again from the loaded configuration.
func run(ctx context.Context, out io.Writer) int {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", string(logging.LevelInfo))),
		Format: logging.ParseFormat(getEnv("LOG_FORMAT", string(logging.FormatConsole))),
		Output: out,
	})

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	logger = logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: out,
	})

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	logger.Info().
		Str("url", cfg.API.BaseURL).
		Int("max_concurrency", cfg.Fetch.MaxConcurrency).
		Dur("request_delay", cfg.Fetch.RequestDelay).
		Msg("Starting scraper")

	summary, err := scraper.New(cfg, logger).Run(ctx)

	logSummary(logger, summary.Duration(), summary.Records)
	if err != nil {
		logger.Error().Err(err).Msg("Scraping failed")
		return 1
	}
	return 0
}

func logSummary(logger zerolog.Logger, elapsed time.Duration, records int) {
	logger.Info().
		Dur("duration", elapsed).
		Msgf("Scraping completed in %.2f seconds", elapsed.Seconds())
	logger.Info().
		Int("records", records).
		Msgf("Total records scraped: %d", records)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
