// Package export writes flat records to the configured sinks: a CSV file, an
// XLSX workbook and, optionally, a SQL table.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/regnum-scraper/pkg/records"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	exportRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regnum_export_records_total",
		Help: "Records written by sink",
	}, []string{"sink"})

	exportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "regnum_export_errors_total",
		Help: "Failed exports by sink",
	}, []string{"sink"})
)

// Default output paths.
const (
	DefaultCSVPath  = "register_numbers.csv"
	DefaultXLSXPath = "register_numbers.xlsx"
)

// Sink is one export destination.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Target is the file path or table the sink writes to.
	Target() string
	Write(ctx context.Context, recs []records.FlatRecord) error
}

// Exporter writes the same record set to every sink.
type Exporter struct {
	sinks  []Sink
	logger zerolog.Logger
}

// NewExporter creates an exporter over the given sinks.
func NewExporter(logger zerolog.Logger, sinks ...Sink) *Exporter {
	return &Exporter{sinks: sinks, logger: logger}
}

// Export writes recs to every sink. An empty record set writes nothing and is
// not an error. A failing sink does not stop the remaining ones; all failures
// are joined into the returned error. The targets that were written are
// returned in sink order.
func (e *Exporter) Export(ctx context.Context, recs []records.FlatRecord) ([]string, error) {
	if len(recs) == 0 {
		e.logger.Info().Msg("No records to save")
		return nil, nil
	}

	var (
		written []string
		errs    []error
	)
	for _, s := range e.sinks {
		start := time.Now()
		if err := s.Write(ctx, recs); err != nil {
			exportErrorsTotal.WithLabelValues(s.Name()).Inc()
			e.logger.Error().
				Err(err).
				Str("sink", s.Name()).
				Str("path", s.Target()).
				Msg("Failed to save records")
			errs = append(errs, fmt.Errorf("%s export to %s: %w", s.Name(), s.Target(), err))
			continue
		}

		exportRecordsTotal.WithLabelValues(s.Name()).Add(float64(len(recs)))
		written = append(written, s.Target())
		e.logger.Info().
			Str("sink", s.Name()).
			Str("path", s.Target()).
			Int("records", len(recs)).
			Dur("duration", time.Since(start)).
			Msgf("Saved %d records to %s", len(recs), s.Target())
	}

	return written, errors.Join(errs...)
}
