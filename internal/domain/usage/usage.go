package usage

import (
	"github.com/lexsieve/lexsieve/internal/domain/usage/budget"
	"github.com/lexsieve/lexsieve/internal/domain/usage/metrics"
)

// Pipeline stage labels for per-stage call accounting.
const (
	StageClarify   = "clarify"
	StageTranslate = "translate"
	StageScore     = "score"
	StageAssess    = "assess"
)

// Report is a generation API usage report for one day.
type Report struct {
	date       string // YYYY-MM-DD
	metrics    metrics.Metrics
	budget     budget.Budget
	stageCalls map[string]int
}

// NewReport creates a usage report.
func NewReport(date string, m metrics.Metrics, b budget.Budget, stageCalls map[string]int) Report {
	return Report{date: date, metrics: m, budget: b, stageCalls: stageCalls}
}

// Date returns the report day (YYYY-MM-DD).
func (r *Report) Date() string { return r.date }

// Metrics returns the usage metrics.
func (r *Report) Metrics() metrics.Metrics { return r.metrics }

// Budget returns the budget status.
func (r *Report) Budget() budget.Budget { return r.budget }

// StageCalls returns generation calls broken down by pipeline stage.
func (r *Report) StageCalls() map[string]int { return r.stageCalls }
