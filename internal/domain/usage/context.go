package usage

import "context"

type stageKey struct{}

// ContextWithStage marks the context with the pipeline stage issuing
// generation calls, so usage accounting can attribute them.
func ContextWithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// StageFromContext extracts the pipeline stage from the context.
// Returns "" when no stage was set.
func StageFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(stageKey{}).(string); ok {
		return s
	}
	return ""
}
