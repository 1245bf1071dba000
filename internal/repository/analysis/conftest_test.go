package analysis

import (
	"context"
	"testing"

	"github.com/lexsieve/lexsieve/internal/domain/verdict"
)

// mockStore implements store with configurable functions.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	return m.hsetFn(ctx, key, fields)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return m.hgetAllFn(ctx, key)
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	return m.hgetAllMultiFn(ctx, keys)
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	return m.existsFn(ctx, key)
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	return m.scanFn(ctx, pattern)
}

func newTestRepo(s *mockStore) *Repo {
	return New(s)
}

func testVerdict(t *testing.T) verdict.Verdict {
	t.Helper()
	v, err := verdict.New(true, 0.92, "directly discusses escrow timing for settlements")
	if err != nil {
		t.Fatalf("create verdict: %v", err)
	}
	return v
}

func testVerdictHash() map[string]string {
	return map[string]string{
		"archive_id": "msg-001",
		"relevant":   "1",
		"confidence": "0.92",
		"rationale":  "directly discusses escrow timing for settlements",
		"degraded":   "0",
	}
}
