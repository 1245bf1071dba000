package translate

import "context"

// Generator is the text generation capability the translator consumes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ChannelReader lists the registered listserv channels, id to display name.
type ChannelReader interface {
	All(ctx context.Context) (map[string]string, error)
}
