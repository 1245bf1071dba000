package health

import "context"

// StoragePinger checks storage availability.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// GenerationChecker checks text-generation provider availability.
type GenerationChecker interface {
	HealthCheck(ctx context.Context) error
}

// ArchivePinger checks archive scraper reachability.
type ArchivePinger interface {
	Ping(ctx context.Context) error
}
