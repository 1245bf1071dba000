package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain"
	"github.com/lexsieve/lexsieve/internal/domain/usage"
	"github.com/lexsieve/lexsieve/internal/metrics"
)

// Instrumented wraps a Generator with stage-labelled metrics and debug
// logging. It also marks the context with its stage so downstream usage
// accounting can attribute the call.
type Instrumented struct {
	inner  Generator
	model  string
	stage  string
	logger *zap.Logger
}

// NewInstrumented wraps a generator for one pipeline stage.
func NewInstrumented(inner Generator, model, stage string, logger *zap.Logger) *Instrumented {
	return &Instrumented{inner: inner, model: model, stage: stage, logger: logger}
}

// Generate delegates to the inner generator and records the outcome.
func (i *Instrumented) Generate(ctx context.Context, prompt string) (string, error) {
	ctx = usage.ContextWithStage(ctx, i.stage)

	start := time.Now()

	out, err := i.inner.Generate(ctx, prompt)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(i.model, i.stage, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(i.model, i.stage, errorType(err)).Inc()
		i.logger.Error("Generation request failed",
			zap.String("model", i.model),
			zap.String("stage", i.stage),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", fmt.Errorf("generate: %w", err)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(i.model, i.stage, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(i.model, i.stage).Observe(duration.Seconds())

	i.logger.Debug("Generation request completed",
		zap.String("model", i.model),
		zap.String("stage", i.stage),
		zap.Duration("duration", duration),
		zap.Int("response_chars", len(out)),
	)

	return out, nil
}

// errorType buckets errors for the error counter label.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrBudgetExhausted):
		return "budget_exhausted"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrGenerationRejected):
		return "rejected"
	case errors.Is(err, domain.ErrGenerationUnavailable):
		return "unavailable"
	default:
		return "other"
	}
}
