package usage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lexsieve/lexsieve/internal/domain/usage/metrics"
)

// counterTTL keeps daily counters long enough for a month of reporting,
// then lets them expire on their own.
const counterTTL = 35 * 24 * time.Hour

// dayFormat is the key date layout (UTC).
const dayFormat = "2006-01-02"

// store is the consumer interface for usage counters (ISP).
type store interface {
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Repo accumulates per-day generation usage counters in a hash.
type Repo struct {
	store store
}

// New creates a usage repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Record adds one call and its token counts to the day's counters. The TTL
// is set only on first write of the day (NX, not reset on repeat).
func (r *Repo) Record(ctx context.Context, at time.Time, stage string, promptTokens, completionTokens int) error {
	key := usageKey(Day(at))
	increments := []struct {
		field string
		by    int64
	}{
		{"calls", 1},
		{"prompt_tokens", int64(promptTokens)},
		{"completion_tokens", int64(completionTokens)},
	}
	if stage != "" {
		increments = append(increments, struct {
			field string
			by    int64
		}{"stage_" + stage, 1})
	}
	for _, inc := range increments {
		if _, err := r.store.HIncrBy(ctx, key, inc.field, inc.by); err != nil {
			return fmt.Errorf("usage HINCRBY %s %s: %w", key, inc.field, err)
		}
	}
	if err := r.store.Expire(ctx, key, counterTTL, true); err != nil {
		return fmt.Errorf("usage EXPIRE %s: %w", key, err)
	}
	return nil
}

// Totals returns the day's accumulated metrics and per-stage call counts.
// A day with no recorded usage yields zero metrics.
func (r *Repo) Totals(ctx context.Context, at time.Time) (metrics.Metrics, map[string]int, error) {
	key := usageKey(Day(at))
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return metrics.Metrics{}, nil, fmt.Errorf("usage HGETALL %s: %w", key, err)
	}
	stageCalls := make(map[string]int)
	for field, raw := range m {
		if stage, ok := strings.CutPrefix(field, "stage_"); ok {
			stageCalls[stage] = intField(raw)
		}
	}
	return metrics.New(
		intField(m["calls"]),
		intField(m["prompt_tokens"]),
		intField(m["completion_tokens"]),
	), stageCalls, nil
}

// Day formats a timestamp as the UTC day used in usage keys.
func Day(t time.Time) string {
	return t.UTC().Format(dayFormat)
}

func intField(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}

// Redis key pattern: usage:{YYYY-MM-DD}

func usageKey(day string) string {
	return fmt.Sprintf("usage:%s", day)
}
