package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline stage outcome metrics.
var (
	ClarificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexsieve",
			Name:      "pipeline_clarifications_total",
			Help:      "Clarification gate verdicts",
		},
		[]string{"verdict"}, // "specific" / "vague" / "degraded"
	)

	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexsieve",
			Name:      "pipeline_translations_total",
			Help:      "Query translation outcomes",
		},
		[]string{"outcome"}, // "ok" / "retried" / "failed"
	)

	ScoringsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexsieve",
			Name:      "pipeline_scorings_total",
			Help:      "Relevance scoring outcomes",
		},
		[]string{"mode", "outcome"}, // mode: "identity" / "content"; outcome: "ok" / "degraded"
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lexsieve",
			Name:      "pipeline_runs_total",
			Help:      "Search runs by final status",
		},
		[]string{"status"}, // "completed" / "failed" / "canceled"
	)

	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lexsieve",
			Name:      "pipeline_run_duration_seconds",
			Help:      "Search run execution duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(ClarificationsTotal)
	prometheus.MustRegister(TranslationsTotal)
	prometheus.MustRegister(ScoringsTotal)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunDuration)
	pipelineMetricsRegistered = true
}
