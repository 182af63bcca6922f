// Package metrics holds the run-level Prometheus metrics and pushes the default
// registry to a Pushgateway at the end of a run. Per-request metrics are
// defined in their own packages (client, pagination, ratelimit, export).
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// DefaultJob is the Pushgateway job label.
const DefaultJob = "regnum_scraper"

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is what Push sends.
var Gatherer = prometheus.DefaultGatherer

var (
	lastRunRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "regnum_last_run_records",
		Help: "Flat records produced by the last run",
	})

	lastRunPages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "regnum_last_run_pages",
		Help: "Pages of the last run by result",
	}, []string{"result"})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "regnum_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
)

// RecordRun sets the run-level gauges.
func RecordRun(records, fetchedPages, failedPages int, finished time.Time) {
	lastRunRecords.Set(float64(records))
	lastRunPages.WithLabelValues("fetched").Set(float64(fetchedPages))
	lastRunPages.WithLabelValues("failed").Set(float64(failedPages))
	lastRunTimestamp.Set(float64(finished.Unix()))
}

// Push replaces the job's metric group on the Pushgateway at url.
func Push(ctx context.Context, url, job string) error {
	if job == "" {
		job = DefaultJob
	}
	if err := push.New(url, job).Gatherer(Gatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - regnum_page_requests_total{status} (Counter): page requests by HTTP status or failure kind
//   - regnum_page_request_duration_seconds (Histogram): page request duration
//   - regnum_page_errors_total{class} (Counter): failures by class (client, server, network, decode)
//
// Pagination Metrics (pkg/pagination):
//   - regnum_pages_total{result} (Counter): pages by result (ok, error, unsuccessful)
//   - regnum_pages_in_flight (Gauge): fetches currently in flight, never above MaxConcurrency
//
// Throttle Metrics (pkg/ratelimit):
//   - regnum_throttle_wait_seconds (Histogram): time spent waiting before a request
//
// Export Metrics (pkg/export):
//   - regnum_export_records_total{sink} (Counter): records written by sink
//   - regnum_export_errors_total{sink} (Counter): failed exports by sink
//
// Run Metrics (this package):
//   - regnum_last_run_records, regnum_last_run_pages{result}, regnum_last_run_timestamp_seconds
//
// Example Prometheus Queries:
//
//   # Share of pages dropped in the last run
//   regnum_last_run_pages{result="failed"} / ignoring(result) sum(regnum_last_run_pages)
//
//   # Stale data alert (no run in 24h)
//   time() - regnum_last_run_timestamp_seconds > 86400
