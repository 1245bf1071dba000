// Package channel is the listserv channel registry: the configured channels
// are persisted at startup and served to the translator (prompt construction
// and specification validation) and the channel listing.
package channel

import (
	"context"
	"fmt"
)

// Repository is the persistence the registry consumes.
type Repository interface {
	Seed(ctx context.Context, channels map[string]string) error
	All(ctx context.Context) (map[string]string, error)
}

// Service implements the channel registry.
type Service struct {
	repo Repository
}

// New creates a channel registry.
func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Seed persists the configured channels. Configuration is the source of
// truth: reseeding overwrites stored display names.
func (s *Service) Seed(ctx context.Context, channels map[string]string) error {
	if err := s.repo.Seed(ctx, channels); err != nil {
		return fmt.Errorf("seed channels: %w", err)
	}
	return nil
}

// All returns the registered channels, id to display name.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	channels, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}
