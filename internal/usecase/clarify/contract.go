package clarify

import "context"

// Generator is the text generation capability the gate consumes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
