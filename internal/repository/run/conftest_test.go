package run

import (
	"context"
	"testing"
	"time"

	"github.com/lexsieve/lexsieve/internal/db"
	domrun "github.com/lexsieve/lexsieve/internal/domain/run"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn             func(ctx context.Context, key string, fields map[string]string) error
	hgetAllFn          func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn     func(ctx context.Context, keys []string) ([]map[string]string, error)
	zaddFn             func(ctx context.Context, key string, entries []db.ZEntry) error
	zrangeWithScoresFn func(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error)
	zcardFn            func(ctx context.Context, key string) (int64, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return nil, nil
}

func (m *mockStore) ZAdd(ctx context.Context, key string, entries []db.ZEntry) error {
	if m.zaddFn != nil {
		return m.zaddFn(ctx, key, entries)
	}
	return nil
}

func (m *mockStore) ZRangeWithScores(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error) {
	if m.zrangeWithScoresFn != nil {
		return m.zrangeWithScoresFn(ctx, key, start, stop, rev)
	}
	return nil, nil
}

func (m *mockStore) ZCard(ctx context.Context, key string) (int64, error) {
	if m.zcardFn != nil {
		return m.zcardFn(ctx, key)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

var testNow = time.UnixMilli(1700000000000).UTC()

func testRun(t *testing.T, id string) domrun.Run {
	t.Helper()
	r, err := domrun.New(id, "recent changes to settlement procedures", testNow)
	if err != nil {
		t.Fatalf("run.New: %v", err)
	}
	return r
}

func testRunHash(id string) map[string]string {
	return map[string]string{
		"id":              id,
		"status":          "completed",
		"question":        "messages by Chris Johnson",
		"follow_up":       "",
		"answer":          "",
		"resolved":        "messages by Chris Johnson",
		"resolved_folded": "0",
		"has_spec":        "1",
		"spec_posted_by":  "Chris Johnson",
		"spec_channel":    "all",
		"spec_attachments": "all",
		"spec_scope":      "subject_and_body",
		"retrieved":       "12",
		"scored":          "12",
		"relevant":        "8",
		"degraded":        "1",
		"failure":         "",
		"created_at":      "1700000000000",
		"updated_at":      "1700000300000",
		"completed_at":    "1700000300000",
	}
}
