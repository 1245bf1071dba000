// Package gencache caches raw generation replies in a key-value store,
// keyed by a hash of the model and prompt. A repeated question walks the
// pipeline through identical prompts, so cache hits return the stored reply
// without spending provider budget.
package gencache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lexsieve/lexsieve/internal/db"
	"github.com/lexsieve/lexsieve/internal/llmjson"
)

const cacheKeyPrefix = "gen_cache:"

// TTL bounds how long a cached reply can outlive prompt or model changes.
const TTL = 7 * 24 * time.Hour

// generator is the text generation capability being cached.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// store is the consumer interface for the reply cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedGenerator caches generation replies in a key-value store.
type CachedGenerator struct {
	inner      generator
	store      store
	model      string
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator. The model participates in the cache key
// so a model swap never serves another model's replies.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner generator,
	s store,
	model string,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedGenerator {
	return &CachedGenerator{
		inner:      inner,
		store:      s,
		model:      model,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Generate returns a cached reply or calls the inner generator. Only replies
// carrying an extractable JSON payload are stored: caching prose or a refusal
// would pin that failure on every identical prompt until the TTL expires.
func (c *CachedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	key := c.cacheKey(prompt)

	if reply, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return reply, nil
	}

	c.incCache("miss")

	reply, err := c.inner.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate text: %w", err)
	}

	if _, perr := llmjson.Extract(reply); perr == nil {
		c.putToCache(ctx, key, reply)
	}
	return reply, nil
}

func (c *CachedGenerator) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedGenerator) cacheKey(prompt string) string {
	h := sha256.Sum256([]byte(c.model + "\n" + prompt))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedGenerator) getFromCache(ctx context.Context, key string) (string, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached reply", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	if len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *CachedGenerator) putToCache(ctx context.Context, key, reply string) {
	if err := c.store.SetWithTTL(ctx, key, []byte(reply), TTL); err != nil {
		c.logger.Warn("Failed to cache reply", zap.String("key", key), zap.Error(err))
	}
}
