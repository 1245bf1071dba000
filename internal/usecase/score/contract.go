package score

import "context"

// Generator is the text generation capability the scorer consumes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
