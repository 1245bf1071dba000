package message

import (
	"context"
	"testing"
	"time"

	"github.com/lexsieve/lexsieve/internal/db"
	dommsg "github.com/lexsieve/lexsieve/internal/domain/message"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hsetFn         func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn    func(ctx context.Context, items []db.HashSetItem) error
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	existsFn       func(ctx context.Context, key string) (bool, error)
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
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

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms), ms
}

func testMessage(t *testing.T, archiveID string) dommsg.Message {
	t.Helper()
	msg, err := dommsg.New(
		archiveID,
		"Chris Johnson",
		"Re: settlement escrow timing",
		"The revised procedure requires the escrow agent to confirm receipt.",
		"probate",
		time.UnixMilli(1700000000000).UTC(),
		false,
		"https://archive.example.org/msg/"+archiveID,
	)
	if err != nil {
		t.Fatalf("message.New: %v", err)
	}
	return msg
}

func testMessageHash(archiveID string) map[string]string {
	return map[string]string{
		"archive_id":     archiveID,
		"sender":         "Chris Johnson",
		"subject":        "Re: settlement escrow timing",
		"body":           "The revised procedure requires the escrow agent to confirm receipt.",
		"channel":        "probate",
		"posted_at":      "1700000000000",
		"has_attachment": "0",
		"archive_url":    "https://archive.example.org/msg/" + archiveID,
	}
}
