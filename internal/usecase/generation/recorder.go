package generation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/domain/usage"
)

// Recorder persists per-call token usage, attributing each call to the
// pipeline stage found in the context. It is handed to the transport
// generator as its usage hook.
type Recorder struct {
	usage  UsageWriter
	now    func() time.Time
	logger *zap.Logger
}

// NewRecorder creates a usage recorder.
func NewRecorder(u UsageWriter, logger *zap.Logger) *Recorder {
	return &Recorder{usage: u, now: time.Now, logger: logger}
}

// RecordUsage writes the counters with a detached context so a canceled
// request cannot lose accounting for a call that already cost tokens.
func (r *Recorder) RecordUsage(ctx context.Context, promptTokens, completionTokens int) {
	stage := usage.StageFromContext(ctx)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := r.usage.Record(writeCtx, r.now(), stage, promptTokens, completionTokens); err != nil {
		r.logger.Warn("Failed to persist usage counters",
			zap.String("stage", stage),
			zap.Int("prompt_tokens", promptTokens),
			zap.Int("completion_tokens", completionTokens),
			zap.Error(err),
		)
	}
}
