// Package report publishes per-run summaries of the scraper.
package report

import (
	"context"
	"errors"
	"time"
)

// ErrNoReport is returned when no summary has been published yet.
var ErrNoReport = errors.New("no run report")

// Summary describes one scraper run.
type Summary struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	TotalPages   int       `json:"total_pages"`
	FetchedPages int       `json:"fetched_pages"`
	FailedPages  []int     `json:"failed_pages,omitempty"`
	Records      int       `json:"records"`
	Outputs      []string  `json:"outputs,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Reporter stores run summaries somewhere outside the process.
type Reporter interface {
	Publish(ctx context.Context, s Summary) error
}
