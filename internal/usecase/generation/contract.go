// Package generation decorates the text generation provider with daily
// budget enforcement, usage accounting and stage-labelled instrumentation.
// Pipeline stages consume the outermost decorator; retry policy stays with
// the stages themselves.
package generation

import (
	"context"
	"time"

	usagemetrics "github.com/lexsieve/lexsieve/internal/domain/usage/metrics"
)

// Generator is the text generation capability the decorators wrap.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// UsageReader reads a day's accumulated generation counters.
type UsageReader interface {
	Totals(ctx context.Context, at time.Time) (usagemetrics.Metrics, map[string]int, error)
}

// UsageWriter appends one call's token usage to the day's counters.
type UsageWriter interface {
	Record(ctx context.Context, at time.Time, stage string, promptTokens, completionTokens int) error
}
