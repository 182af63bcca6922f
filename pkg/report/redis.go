package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis keys for run summaries.
const (
	RedisKeyLastRun    = "regnum:run:last"
	RedisKeyRunHistory = "regnum:run:history"
)

// DefaultHistoryLength is how many summaries the history list keeps.
const DefaultHistoryLength = 50

// RedisReporter keeps the latest summary under RedisKeyLastRun and a capped
// newest-first list under RedisKeyRunHistory.
type RedisReporter struct {
	redis      *redis.Client
	historyLen int64
	logger     zerolog.Logger
}

// NewRedisReporter creates a reporter. historyLen <= 0 selects the default.
func NewRedisReporter(redisClient *redis.Client, historyLen int, logger zerolog.Logger) *RedisReporter {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if historyLen <= 0 {
		historyLen = DefaultHistoryLength
	}
	return &RedisReporter{
		redis:      redisClient,
		historyLen: int64(historyLen),
		logger:     logger,
	}
}

// Publish stores the summary in one pipeline.
func (r *RedisReporter) Publish(ctx context.Context, s Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	pipe := r.redis.TxPipeline()
	pipe.Set(ctx, RedisKeyLastRun, data, 0)
	pipe.LPush(ctx, RedisKeyRunHistory, data)
	pipe.LTrim(ctx, RedisKeyRunHistory, 0, r.historyLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store run summary in redis: %w", err)
	}

	r.logger.Debug().
		Int("records", s.Records).
		Int("fetched_pages", s.FetchedPages).
		Msg("Published run summary")
	return nil
}

// Last returns the most recent summary or ErrNoReport.
func (r *RedisReporter) Last(ctx context.Context) (*Summary, error) {
	data, err := r.redis.Get(ctx, RedisKeyLastRun).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoReport
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &s, nil
}

// History returns up to n summaries, newest first.
func (r *RedisReporter) History(ctx context.Context, n int) ([]Summary, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := r.redis.LRange(ctx, RedisKeyRunHistory, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	out := make([]Summary, 0, len(raw))
	for _, item := range raw {
		var s Summary
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
