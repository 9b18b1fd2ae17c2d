// Package store defines the Storage Abstraction (SA): a typed interface
// over hash, sorted-set, set, list, and pub/sub keyspaces, per spec §2 and
// §6. Every core operation in the queue package is written purely against
// Backend — never against a concrete Redis client or in-process map — so
// the same logic runs over store/memory (tests, single-process use) or
// store/redisstore (shared, durable use) unchanged.
package store

import "context"

// ScoredMember is one (member, score) pair from a sorted set.
type ScoredMember struct {
	Member string
	Score  float64
}

// Backend is the full set of storage primitives the core requires. An
// implementation is not required to provide cross-key atomicity on its
// own — spec §5 allows the caller (queue.Engine) to serialize all access
// with a single writer lock instead.
type Backend interface {
	// ── Hash ──

	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HDel(ctx context.Context, key string, fields ...string) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// ── Sorted set ──

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, member string) error
	ZScore(ctx context.Context, key string, member string) (float64, bool, error)
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)
	// ZRangeByScoreAsc returns members with min <= score <= max, ascending
	// by score, capped at limit (limit <= 0 means unlimited).
	ZRangeByScoreAsc(ctx context.Context, key string, min, max float64, limit int) ([]ScoredMember, error)
	// ZRevRange returns up to limit members ordered by descending score
	// (limit <= 0 means unlimited).
	ZRevRange(ctx context.Context, key string, limit int) ([]ScoredMember, error)
	// ZRange returns up to limit members ordered by ascending score
	// (limit <= 0 means unlimited).
	ZRange(ctx context.Context, key string, limit int) ([]ScoredMember, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// ── Set ──

	SAdd(ctx context.Context, key string, member string) error
	SRem(ctx context.Context, key string, member string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)

	// ── List ── (ql:f:<group>; head = most recently pushed)

	LPush(ctx context.Context, key string, value string) error
	RPop(ctx context.Context, key string) (string, bool, error)
	LRem(ctx context.Context, key string, value string) error
	LRange(ctx context.Context, key string, start, stop int) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)

	// ── Pub/Sub ──

	Publish(ctx context.Context, channel string, payload []byte) error
}
