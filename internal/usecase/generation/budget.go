package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/usage/budget"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// BudgetGuard rejects generation calls once the daily budget is spent.
// The check reads the shared counters on every call, so concurrently
// scoring goroutines all see the same budget state. Usage itself is
// recorded by the transport hook after each successful call.
type BudgetGuard struct {
	inner       Generator
	usage       UsageReader
	callsLimit  int
	tokensLimit int
	now         func() time.Time
	logger      *zap.Logger
}

// NewBudgetGuard wraps a generator with daily budget enforcement.
// Zero limits leave the corresponding dimension uncapped.
func NewBudgetGuard(inner Generator, u UsageReader, dailyCallLimit, dailyTokenLimit int, logger *zap.Logger) *BudgetGuard {
	return &BudgetGuard{
		inner:       inner,
		usage:       u,
		callsLimit:  dailyCallLimit,
		tokensLimit: dailyTokenLimit,
		now:         time.Now,
		logger:      logger,
	}
}

// Generate checks the budget, then delegates. An exhausted budget returns
// domain.ErrBudgetExhausted without contacting the provider.
func (g *BudgetGuard) Generate(ctx context.Context, prompt string) (string, error) {
	b, err := g.Budget(ctx)
	if err != nil {
		// Fail open: losing the budget read must not take the pipeline down.
		g.logger.Warn("Budget check skipped", zap.Error(err))
		return g.inner.Generate(ctx, prompt)
	}

	if g.callsLimit > 0 {
		metrics.GenerationBudgetCallsRemaining.Set(float64(b.CallsRemaining()))
	}
	if g.tokensLimit > 0 {
		metrics.GenerationBudgetTokensRemaining.Set(float64(b.TokensRemaining()))
	}

	if b.IsExhausted() {
		g.logger.Warn("Daily generation budget exhausted",
			zap.Int("calls_remaining", b.CallsRemaining()),
			zap.Int("tokens_remaining", b.TokensRemaining()),
		)
		return "", fmt.Errorf("daily generation budget: %w", domain.ErrBudgetExhausted)
	}

	return g.inner.Generate(ctx, prompt)
}

// Budget returns the current daily budget snapshot.
func (g *BudgetGuard) Budget(ctx context.Context) (budget.Budget, error) {
	now := g.now()
	m, _, err := g.usage.Totals(ctx, now)
	if err != nil {
		return budget.Budget{}, fmt.Errorf("load usage totals: %w", err)
	}
	return budget.New(g.callsLimit, m.Calls(), g.tokensLimit, m.TotalTokens(), nextMidnightUTC(now).UnixMilli()), nil
}

// nextMidnightUTC is when daily counters roll over.
func nextMidnightUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
