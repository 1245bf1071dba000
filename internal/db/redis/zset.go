package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/lexsieve/lexsieve/internal/db"
)

// ZAdd adds members with scores to a sorted set.
func (s *Store) ZAdd(ctx context.Context, key string, entries []db.ZEntry) error {
	if len(entries) == 0 {
		return nil
	}
	cmd := s.b().Zadd().Key(key).ScoreMember()
	for _, e := range entries {
		cmd = cmd.ScoreMember(e.Score, e.Member)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpZAdd, Err: err}
	}
	return nil
}

// ZRangeWithScores returns members by rank with their scores. rev=true walks
// from the highest score down.
func (s *Store) ZRangeWithScores(ctx context.Context, key string, start, stop int64, rev bool) ([]db.ZEntry, error) {
	minArg := strconv.FormatInt(start, 10)
	maxArg := strconv.FormatInt(stop, 10)

	var cmd rueidis.Completed
	if rev {
		cmd = s.b().Zrange().Key(key).Min(minArg).Max(maxArg).Rev().Withscores().Build()
	} else {
		cmd = s.b().Zrange().Key(key).Min(minArg).Max(maxArg).Withscores().Build()
	}

	scores, err := s.do(ctx, cmd).AsZScores()
	if err != nil {
		return nil, &db.Error{Op: db.OpZRange, Err: err}
	}

	entries := make([]db.ZEntry, len(scores))
	for i, zs := range scores {
		entries[i] = db.ZEntry{Member: zs.Member, Score: zs.Score}
	}
	return entries, nil
}

// ZCard returns the cardinality of a sorted set.
func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Zcard().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpZCard, Err: err}
	}
	return n, nil
}
