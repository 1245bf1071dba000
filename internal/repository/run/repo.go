package run

import (
	"context"
	"fmt"

	"github.com/lexsieve/lexsieve/internal/db"
	"github.com/lexsieve/lexsieve/internal/domain"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
)

// store is the consumer interface for run persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	ZAdd(ctx context.Context, key string, entries []db.ZEntry) error
	ZRangeWithScores(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Repo implements usecase/search.RunRepository.
type Repo struct {
	store store
}

// New creates a run repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Save writes the full run hash and indexes the run in the recency set.
// ZADD scores by creation time, so re-saving an existing run is idempotent
// for the index.
func (r *Repo) Save(ctx context.Context, run domrun.Run) error {
	if err := r.store.HSet(ctx, runKey(run.ID()), runToHash(run)); err != nil {
		return fmt.Errorf("hset run %s: %w", run.ID(), err)
	}
	entry := db.ZEntry{Member: run.ID(), Score: float64(run.CreatedAt().UnixMilli())}
	if err := r.store.ZAdd(ctx, recentKey, []db.ZEntry{entry}); err != nil {
		return fmt.Errorf("zadd recent %s: %w", run.ID(), err)
	}
	return nil
}

// Get retrieves a run by id.
func (r *Repo) Get(ctx context.Context, id string) (domrun.Run, error) {
	m, err := r.store.HGetAll(ctx, runKey(id))
	if err != nil {
		return domrun.Run{}, fmt.Errorf("hgetall run %s: %w", id, err)
	}
	if len(m) == 0 {
		return domrun.Run{}, domain.ErrRunNotFound
	}
	return runFromHash(m)
}

// List returns up to limit runs, most recently created first.
func (r *Repo) List(ctx context.Context, limit int) ([]domrun.Run, error) {
	if limit <= 0 {
		return []domrun.Run{}, nil
	}
	entries, err := r.store.ZRangeWithScores(ctx, recentKey, 0, int64(limit)-1, true)
	if err != nil {
		return nil, fmt.Errorf("zrange recent: %w", err)
	}
	if len(entries) == 0 {
		return []domrun.Run{}, nil
	}

	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = runKey(e.Member)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi runs: %w", err)
	}

	runs := make([]domrun.Run, 0, len(results))
	for i, m := range results {
		if len(m) == 0 {
			// Index entry survived its hash; skip rather than fail the listing.
			continue
		}
		run, err := runFromHash(m)
		if err != nil {
			return nil, fmt.Errorf("parse run %s: %w", entries[i].Member, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// SaveResultOrder records the retrieval positions for a run's candidates.
func (r *Repo) SaveResultOrder(ctx context.Context, runID string, archiveIDs []string) error {
	if len(archiveIDs) == 0 {
		return nil
	}
	entries := make([]db.ZEntry, len(archiveIDs))
	for i, id := range archiveIDs {
		entries[i] = db.ZEntry{Member: id, Score: float64(i + 1)}
	}
	if err := r.store.ZAdd(ctx, resultsKey(runID), entries); err != nil {
		return fmt.Errorf("zadd results %s: %w", runID, err)
	}
	return nil
}

// ResultOrder returns the run's candidate archive ids in retrieval order
// together with their 1-based positions.
func (r *Repo) ResultOrder(ctx context.Context, runID string) ([]string, []int, error) {
	entries, err := r.store.ZRangeWithScores(ctx, resultsKey(runID), 0, -1, false)
	if err != nil {
		return nil, nil, fmt.Errorf("zrange results %s: %w", runID, err)
	}
	ids := make([]string, len(entries))
	positions := make([]int, len(entries))
	for i, e := range entries {
		ids[i] = e.Member
		positions[i] = int(e.Score)
	}
	return ids, positions, nil
}

// CountByStatus tallies all known runs by status.
func (r *Repo) CountByStatus(ctx context.Context) (map[string]int, error) {
	total, err := r.store.ZCard(ctx, recentKey)
	if err != nil {
		return nil, fmt.Errorf("zcard recent: %w", err)
	}
	counts := make(map[string]int)
	if total == 0 {
		return counts, nil
	}

	entries, err := r.store.ZRangeWithScores(ctx, recentKey, 0, -1, false)
	if err != nil {
		return nil, fmt.Errorf("zrange recent: %w", err)
	}
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = runKey(e.Member)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi runs: %w", err)
	}
	for _, m := range results {
		if status := m["status"]; status != "" {
			counts[status]++
		}
	}
	return counts, nil
}

// Redis key patterns: run:{id}, runs:recent, run:{id}:results

const recentKey = "runs:recent"

func runKey(id string) string {
	return fmt.Sprintf("run:%s", id)
}

func resultsKey(id string) string {
	return fmt.Sprintf("run:%s:results", id)
}
