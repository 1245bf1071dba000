package usage

import (
	"context"
	"time"

	"github.com/lexsieve/lexsieve/internal/domain/usage/budget"
	"github.com/lexsieve/lexsieve/internal/domain/usage/metrics"
)

// RunCounter tallies search runs by status.
type RunCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// MessageCounter counts stored archive messages.
type MessageCounter interface {
	Count(ctx context.Context) (int, error)
}

// AnalysisCounter counts stored relevance analyses.
type AnalysisCounter interface {
	Count(ctx context.Context) (int, error)
}

// UsageReader provides a day's generation usage counters.
type UsageReader interface {
	Totals(ctx context.Context, at time.Time) (metrics.Metrics, map[string]int, error)
}

// BudgetReader provides the current daily budget snapshot.
type BudgetReader interface {
	Budget(ctx context.Context) (budget.Budget, error)
}
