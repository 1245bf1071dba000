package analysis

import (
	"context"
	"fmt"

	"github.com/lexsieve/lexsieve/internal/domain/verdict"
)

// store is the consumer interface for verdict persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo persists one relevance verdict per (run, message) pair. The pair key
// makes re-scoring within a run impossible: the first verdict wins.
type Repo struct {
	store store
}

// New creates an analysis repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Put stores the verdict for a (run, message) pair unless one already
// exists. Returns whether the verdict was written.
func (r *Repo) Put(ctx context.Context, runID, archiveID string, v verdict.Verdict) (bool, error) {
	key := analysisKey(runID, archiveID)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s/%s: %w", runID, archiveID, err)
	}
	if exists {
		return false, nil
	}
	if err := r.store.HSet(ctx, key, verdictToHash(archiveID, v)); err != nil {
		return false, fmt.Errorf("hset analysis %s/%s: %w", runID, archiveID, err)
	}
	return true, nil
}

// Get retrieves the verdict for a (run, message) pair. The second return
// reports presence; scoring may still be in flight for the pair.
func (r *Repo) Get(ctx context.Context, runID, archiveID string) (verdict.Verdict, bool, error) {
	m, err := r.store.HGetAll(ctx, analysisKey(runID, archiveID))
	if err != nil {
		return verdict.Verdict{}, false, fmt.Errorf("hgetall analysis %s/%s: %w", runID, archiveID, err)
	}
	if len(m) == 0 {
		return verdict.Verdict{}, false, nil
	}
	v, err := verdictFromHash(m)
	if err != nil {
		return verdict.Verdict{}, false, fmt.Errorf("parse analysis %s/%s: %w", runID, archiveID, err)
	}
	return v, true, nil
}

// GetAll retrieves verdicts for the given archive ids of one run, preserving
// order. The parallel bool slice marks which pairs have a verdict.
func (r *Repo) GetAll(ctx context.Context, runID string, archiveIDs []string) ([]verdict.Verdict, []bool, error) {
	if len(archiveIDs) == 0 {
		return []verdict.Verdict{}, []bool{}, nil
	}
	keys := make([]string, len(archiveIDs))
	for i, id := range archiveIDs {
		keys[i] = analysisKey(runID, id)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("hgetall multi analyses: %w", err)
	}
	verdicts := make([]verdict.Verdict, len(results))
	present := make([]bool, len(results))
	for i, m := range results {
		if len(m) == 0 {
			continue
		}
		v, perr := verdictFromHash(m)
		if perr != nil {
			return nil, nil, fmt.Errorf("parse analysis %s/%s: %w", runID, archiveIDs[i], perr)
		}
		verdicts[i] = v
		present[i] = true
	}
	return verdicts, present, nil
}

// Count returns the number of stored verdicts across all runs.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, "run:*:analysis:*")
	if err != nil {
		return 0, fmt.Errorf("scan analyses: %w", err)
	}
	return len(keys), nil
}

// Redis key pattern: run:{runID}:analysis:{archiveID}

func analysisKey(runID, archiveID string) string {
	return fmt.Sprintf("run:%s:analysis:%s", runID, archiveID)
}
