// Package ratelimit gates outgoing page requests with a fixed pre-request delay
// and an optional token-bucket ceiling.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrThrottleCancelled is returned when the context ends while waiting.
var ErrThrottleCancelled = errors.New("throttle wait cancelled")

var throttleWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "regnum_throttle_wait_seconds",
	Help:    "Time a request spent waiting on the throttle",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
})

// DefaultDelay is the courtesy pause before every request.
const DefaultDelay = 100 * time.Millisecond

// Config holds throttle configuration.
type Config struct {
	// Delay is slept before each request. It is per request, so with N workers
	// up to N requests can still start within one Delay window.
	Delay time.Duration

	// RatePerSecond caps the overall request start rate. 0 disables the cap.
	RatePerSecond float64

	// Burst is the token-bucket size when RatePerSecond is set. Defaults to 1.
	Burst int
}

// DefaultConfig returns the fixed 100ms delay with no global ceiling.
func DefaultConfig() Config {
	return Config{Delay: DefaultDelay}
}

// Throttle is shared by all workers of one run.
type Throttle struct {
	delay   time.Duration
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewThrottle creates a throttle.
func NewThrottle(cfg Config, logger zerolog.Logger) (*Throttle, error) {
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("delay must be >= 0 (got %s)", cfg.Delay)
	}
	if cfg.RatePerSecond < 0 {
		return nil, fmt.Errorf("rate must be >= 0 (got %g)", cfg.RatePerSecond)
	}

	t := &Throttle{
		delay:  cfg.Delay,
		logger: logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return t, nil
}

// Wait blocks for the fixed delay and then for a limiter token, if any.
func (t *Throttle) Wait(ctx context.Context) error {
	start := time.Now()
	defer func() {
		throttleWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %v", ErrThrottleCancelled, ctx.Err())
		case <-timer.C:
		}
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrThrottleCancelled, err)
		}
	}

	t.logger.Debug().Dur("waited", time.Since(start)).Msg("Throttle released request")
	return nil
}

// Delay returns the configured per-request delay.
func (t *Throttle) Delay() time.Duration {
	return t.delay
}
