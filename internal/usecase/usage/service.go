// Package usage aggregates the operational snapshot behind the stats
// endpoint: run counts by status, stored message and analysis totals, and
// today's generation usage against the daily budget.
package usage

import (
	"context"
	"fmt"
	"time"

	domusage "github.com/lexsieve/lexsieve/internal/domain/usage"
)

// dayFormat is the report day layout (UTC).
const dayFormat = "2006-01-02"

// Stats is the aggregate operational snapshot.
type Stats struct {
	Runs     map[string]int
	Messages int
	Analyses int
	Usage    domusage.Report
}

// Service assembles stats from the repositories and the budget guard.
type Service struct {
	runs     RunCounter
	messages MessageCounter
	analyses AnalysisCounter
	usage    UsageReader
	budget   BudgetReader
	now      func() time.Time
}

// New creates a stats service.
func New(runs RunCounter, messages MessageCounter, analyses AnalysisCounter, u UsageReader, b BudgetReader) *Service {
	return &Service{
		runs:     runs,
		messages: messages,
		analyses: analyses,
		usage:    u,
		budget:   b,
		now:      time.Now,
	}
}

// Stats builds the current snapshot. Today's usage report covers the UTC day.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	runCounts, err := s.runs.CountByStatus(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count runs: %w", err)
	}
	msgTotal, err := s.messages.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count messages: %w", err)
	}
	analysisTotal, err := s.analyses.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count analyses: %w", err)
	}

	now := s.now().UTC()
	m, stageCalls, err := s.usage.Totals(ctx, now)
	if err != nil {
		return Stats{}, fmt.Errorf("usage totals: %w", err)
	}
	b, err := s.budget.Budget(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("budget snapshot: %w", err)
	}

	return Stats{
		Runs:     runCounts,
		Messages: msgTotal,
		Analyses: analysisTotal,
		Usage:    domusage.NewReport(now.Format(dayFormat), m, b, stageCalls),
	}, nil
}
