package assess

import "context"

// Generator is the text generation capability the assessor consumes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
