// Package redisstore implements store.Backend using Redis: Hashes for
// entities, Sorted Sets for the priority/lease/schedule/recur/depends
// indices, Sets for membership indices, Lists for failure groups, and
// PUBLISH for the Event Bus. Grounded on the teacher's store/redis package
// (store.go, keys.go, job.go), generalized from domain-specific methods
// (EnqueueJob, DequeueJobs, ...) to the generic primitives store.Backend
// requires, since in this module the job-lifecycle logic itself lives in
// the queue package, not in the storage layer.
package redisstore

import (
	"context"
	"errors"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lordnynex/qless-core/store"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger, used only to report best-effort publish
// failures (spec §7: "Publish failures are silent").
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.Backend backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a Redis-backed Backend. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

var _ store.Backend = (*Store)(nil)

// Client returns the underlying go-redis client, for callers that need to
// run Ping or manage connection lifecycle directly.
func (s *Store) Client() goredis.Cmdable { return s.client }

// ── Hash ──

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap("hgetall", err)
	}
	return m, nil
}

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	if err := s.client.HSet(ctx, key, args).Err(); err != nil {
		return wrap("hset", err)
	}
	return nil
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("hget", err)
	}
	return v, true, nil
}

func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	v, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	if err != nil {
		return 0, wrap("hincrby", err)
	}
	return v, nil
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, key, fields...).Err(); err != nil {
		return wrap("hdel", err)
	}
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return wrap("del", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, wrap("exists", err)
	}
	return n > 0, nil
}

// ── Sorted set ──

func (s *Store) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := s.client.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err(); err != nil {
		return wrap("zadd", err)
	}
	return nil
}

func (s *Store) ZRem(ctx context.Context, key string, member string) error {
	if err := s.client.ZRem(ctx, key, member).Err(); err != nil {
		return wrap("zrem", err)
	}
	return nil
}

func (s *Store) ZScore(ctx context.Context, key string, member string) (float64, bool, error) {
	v, err := s.client.ZScore(ctx, key, member).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrap("zscore", err)
	}
	return v, true, nil
}

func (s *Store) ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error) {
	v, err := s.client.ZIncrBy(ctx, key, delta, member).Result()
	if err != nil {
		return 0, wrap("zincrby", err)
	}
	return v, nil
}

func (s *Store) ZRangeByScoreAsc(ctx context.Context, key string, min, max float64, limit int) ([]store.ScoredMember, error) {
	opts := &goredis.ZRangeBy{
		Min: floatStr(min),
		Max: floatStr(max),
	}
	if limit > 0 {
		opts.Count = int64(limit)
	}
	zs, err := s.client.ZRangeByScoreWithScores(ctx, key, opts).Result()
	if err != nil {
		return nil, wrap("zrangebyscore", err)
	}
	return toScored(zs), nil
}

func (s *Store) ZRevRange(ctx context.Context, key string, limit int) ([]store.ScoredMember, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, wrap("zrevrange", err)
	}
	return toScored(zs), nil
}

func (s *Store) ZRange(ctx context.Context, key string, limit int) ([]store.ScoredMember, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	zs, err := s.client.ZRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, wrap("zrange", err)
	}
	return toScored(zs), nil
}

func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, wrap("zcard", err)
	}
	return n, nil
}

// ── Set ──

func (s *Store) SAdd(ctx context.Context, key string, member string) error {
	if err := s.client.SAdd(ctx, key, member).Err(); err != nil {
		return wrap("sadd", err)
	}
	return nil
}

func (s *Store) SRem(ctx context.Context, key string, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return wrap("srem", err)
	}
	return nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrap("smembers", err)
	}
	return members, nil
}

func (s *Store) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, wrap("sismember", err)
	}
	return ok, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, wrap("scard", err)
	}
	return n, nil
}

// ── List ──

func (s *Store) LPush(ctx context.Context, key string, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return wrap("lpush", err)
	}
	return nil
}

func (s *Store) RPop(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.RPop(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrap("rpop", err)
	}
	return v, true, nil
}

func (s *Store) LRem(ctx context.Context, key string, value string) error {
	if err := s.client.LRem(ctx, key, 0, value).Err(); err != nil {
		return wrap("lrem", err)
	}
	return nil
}

func (s *Store) LRange(ctx context.Context, key string, start, stop int) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, int64(start), int64(stop)).Result()
	if err != nil {
		return nil, wrap("lrange", err)
	}
	return vals, nil
}

func (s *Store) LLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, wrap("llen", err)
	}
	return n, nil
}

// ── Pub/Sub ──

// Publish is best-effort: errors are logged, never returned, per spec §7.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		s.logger.Warn("publish failed", "channel", channel, "error", err)
	}
	return nil
}
