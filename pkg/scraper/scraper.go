// Package scraper runs one complete scrape: page discovery and fetch, record
// flattening, export to every configured sink, and run reporting.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/regnum-scraper/pkg/client"
	"github.com/Sternrassler/regnum-scraper/pkg/config"
	"github.com/Sternrassler/regnum-scraper/pkg/export"
	"github.com/Sternrassler/regnum-scraper/pkg/metrics"
	"github.com/Sternrassler/regnum-scraper/pkg/pagination"
	"github.com/Sternrassler/regnum-scraper/pkg/ratelimit"
	"github.com/Sternrassler/regnum-scraper/pkg/records"
	"github.com/Sternrassler/regnum-scraper/pkg/report"
)

// Scraper holds the configuration of a run. A Scraper can be run repeatedly;
// each run overwrites the outputs of the previous one.
type Scraper struct {
	cfg      *config.Config
	logger   zerolog.Logger
	reporter report.Reporter
}

// New creates a scraper. When cfg.Redis.Addr is set, run summaries are
// published to Redis unless another reporter is set with SetReporter.
func New(cfg *config.Config, logger zerolog.Logger) *Scraper {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Scraper{cfg: cfg, logger: logger}
}

// SetReporter replaces the reporter summaries are published to.
func (s *Scraper) SetReporter(r report.Reporter) {
	s.reporter = r
}

// Run performs one scrape. Pages that fail are dropped and do not make Run
// fail. The returned error is non-nil when ctx was cancelled, an item could
// not be flattened, or any sink failed; the summary is filled in either way.
func (s *Scraper) Run(ctx context.Context) (report.Summary, error) {
	summary := report.Summary{StartedAt: time.Now()}

	err := s.run(ctx, &summary)

	summary.FinishedAt = time.Now()
	if err != nil {
		summary.Error = err.Error()
	}
	s.finish(ctx, summary)

	return summary, err
}

func (s *Scraper) run(ctx context.Context, summary *report.Summary) error {
	c, err := client.New(client.Config{
		BaseURL:  s.cfg.API.BaseURL,
		PageSize: s.cfg.API.PageSize,
		Headers:  s.cfg.API.Headers,
		Timeout:  s.cfg.API.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer c.Close()

	throttle, err := ratelimit.NewThrottle(ratelimit.Config{
		Delay:         s.cfg.Fetch.RequestDelay,
		RatePerSecond: s.cfg.Fetch.RateLimit,
		Burst:         s.cfg.Fetch.RateBurst,
	}, s.logger.With().Str("component", "throttle").Logger())
	if err != nil {
		return fmt.Errorf("create throttle: %w", err)
	}

	s.logger.Debug().
		Dur("delay", throttle.Delay()).
		Float64("rate_limit", s.cfg.Fetch.RateLimit).
		Msg("Throttle configured")

	fetcher := pagination.NewBatchFetcher(c, throttle, pagination.Config{
		MaxConcurrency: s.cfg.Fetch.MaxConcurrency,
		Timeout:        s.cfg.Fetch.PageTimeout,
	})

	result, err := fetcher.FetchAllPages(ctx)
	if result != nil {
		summary.TotalPages = result.TotalPages
		summary.FetchedPages = len(result.Pages)
		summary.FailedPages = result.Failed
	}
	if err != nil {
		return err
	}
	if len(result.Pages) == 0 {
		s.logger.Info().Msg("No data fetched")
		return nil
	}

	recs, err := records.FlattenAll(result.Items())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to flatten records")
		return fmt.Errorf("flatten records: %w", err)
	}
	summary.Records = len(recs)

	outputs, err := s.export(ctx, recs)
	summary.Outputs = outputs
	return err
}

// export builds the sinks and writes recs to them. A database that cannot be
// opened counts as a failed sink; the file sinks are still written.
func (s *Scraper) export(ctx context.Context, recs []records.FlatRecord) ([]string, error) {
	sinks := []export.Sink{
		export.NewCSVSink(s.cfg.Output.CSVPath),
		export.NewXLSXSink(s.cfg.Output.XLSXPath, s.cfg.Output.Sheet),
	}

	var openErr error
	if dsn := s.cfg.Output.DatabaseDSN; dsn != "" && len(recs) > 0 {
		db, err := export.OpenDatabase(dsn, s.logger.With().Str("component", "gorm").Logger())
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to open database")
			openErr = fmt.Errorf("sql export: %w", err)
		} else {
			sqlSink := export.NewSQLSink(db, "database")
			defer sqlSink.Close()
			sinks = append(sinks, sqlSink)
		}
	}

	exporter := export.NewExporter(s.logger.With().Str("component", "export").Logger(), sinks...)
	outputs, err := exporter.Export(ctx, recs)
	return outputs, errors.Join(err, openErr)
}

// finish records run metrics and publishes the summary. Reporting failures
// are logged and never change the run outcome.
func (s *Scraper) finish(ctx context.Context, summary report.Summary) {
	metrics.RecordRun(summary.Records, summary.FetchedPages, len(summary.FailedPages), summary.FinishedAt)

	// Reporting still happens after a cancelled scrape.
	ctx = context.WithoutCancel(ctx)

	reporter := s.reporter
	if reporter == nil && s.cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     s.cfg.Redis.Addr,
			Password: s.cfg.Redis.Password,
			DB:       s.cfg.Redis.DB,
		})
		defer redisClient.Close()
		reporter = report.NewRedisReporter(redisClient, s.cfg.Redis.HistoryLen,
			s.logger.With().Str("component", "report").Logger())
	}
	if reporter != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := reporter.Publish(pubCtx, summary); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to publish run summary")
		}
		cancel()
	}

	if url := s.cfg.Metrics.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := metrics.Push(pushCtx, url, s.cfg.Metrics.Job); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to push metrics")
		}
		cancel()
	}
}
