package channel

import (
	"context"
	"fmt"
)

// channelsKey holds the id → display name mapping for all listserv channels.
const channelsKey = "channels"

// store is the consumer interface for channel persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Repo persists the listserv channel catalogue.
type Repo struct {
	store store
}

// New creates a channel repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Seed writes the configured channels. Existing entries with the same id are
// overwritten, so config remains the source of truth across restarts.
func (r *Repo) Seed(ctx context.Context, channels map[string]string) error {
	if len(channels) == 0 {
		return nil
	}
	if err := r.store.HSet(ctx, channelsKey, channels); err != nil {
		return fmt.Errorf("seed channels: %w", err)
	}
	return nil
}

// All returns the id → display name mapping for every known channel.
func (r *Repo) All(ctx context.Context) (map[string]string, error) {
	m, err := r.store.HGetAll(ctx, channelsKey)
	if err != nil {
		return nil, fmt.Errorf("load channels: %w", err)
	}
	return m, nil
}
