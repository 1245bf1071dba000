package message

import (
	"context"
	"fmt"

	"github.com/lexsieve/lexsieve/internal/db"
	"github.com/lexsieve/lexsieve/internal/domain"
	dommsg "github.com/lexsieve/lexsieve/internal/domain/message"
)

// store is the consumer interface for message persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the message repositories the orchestrator and transport
// consume. Messages are shared across runs and keyed by archive id.
type Repo struct {
	store store
}

// New creates a message repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Put stores a message if its archive id is not already known
// (create-if-absent dedupe). Re-retrieving a message across runs is a no-op.
func (r *Repo) Put(ctx context.Context, msg dommsg.Message) error {
	key := messageKey(msg.ArchiveID())
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", msg.ArchiveID(), err)
	}
	if exists {
		return nil
	}
	if err := r.store.HSet(ctx, key, messageToHash(msg)); err != nil {
		return fmt.Errorf("hset message %s: %w", msg.ArchiveID(), err)
	}
	return nil
}

// PutAll stores a batch of messages, skipping archive ids already present.
func (r *Repo) PutAll(ctx context.Context, msgs []dommsg.Message) error {
	items := make([]db.HashSetItem, 0, len(msgs))
	for i := range msgs {
		key := messageKey(msgs[i].ArchiveID())
		exists, err := r.store.Exists(ctx, key)
		if err != nil {
			return fmt.Errorf("check exists %s: %w", msgs[i].ArchiveID(), err)
		}
		if exists {
			continue
		}
		items = append(items, db.HashSetItem{Key: key, Fields: messageToHash(msgs[i])})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset multi messages: %w", err)
	}
	return nil
}

// Get retrieves a message by archive id.
func (r *Repo) Get(ctx context.Context, archiveID string) (dommsg.Message, error) {
	m, err := r.store.HGetAll(ctx, messageKey(archiveID))
	if err != nil {
		return dommsg.Message{}, fmt.Errorf("hgetall message %s: %w", archiveID, err)
	}
	if len(m) == 0 {
		return dommsg.Message{}, domain.ErrMessageNotFound
	}
	return messageFromHash(m)
}

// GetAll retrieves messages for the given archive ids, preserving order.
// Unknown ids yield domain.ErrMessageNotFound.
func (r *Repo) GetAll(ctx context.Context, archiveIDs []string) ([]dommsg.Message, error) {
	if len(archiveIDs) == 0 {
		return []dommsg.Message{}, nil
	}
	keys := make([]string, len(archiveIDs))
	for i, id := range archiveIDs {
		keys[i] = messageKey(id)
	}
	results, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi messages: %w", err)
	}
	msgs := make([]dommsg.Message, len(results))
	for i, m := range results {
		if len(m) == 0 {
			return nil, fmt.Errorf("message %s: %w", archiveIDs[i], domain.ErrMessageNotFound)
		}
		msg, perr := messageFromHash(m)
		if perr != nil {
			return nil, fmt.Errorf("parse message %s: %w", archiveIDs[i], perr)
		}
		msgs[i] = msg
	}
	return msgs, nil
}

// Count returns the number of stored messages.
func (r *Repo) Count(ctx context.Context) (int, error) {
	keys, err := r.store.Scan(ctx, messageKey("*"))
	if err != nil {
		return 0, fmt.Errorf("scan messages: %w", err)
	}
	return len(keys), nil
}

// Redis key pattern: message:{archiveID}

func messageKey(archiveID string) string {
	return fmt.Sprintf("message:%s", archiveID)
}
