// Package index implements the Tag / Tracking / Worker Indices (IX): the
// tag reverse index and global tag frequency map, the tracked-jid set, and
// the per-worker held-job / last-seen indices of spec §3/§4.6. Each
// function is a thin, pure-ish helper operating on a store.Backend — the
// orchestration of when to call them lives in the queue package, which
// holds the single writer lock spec §5 requires for cross-index atomicity.
package index

import (
	"context"
	"sort"

	"github.com/lordnynex/qless-core/store"
)

// AddTags inserts jid into each tag's reverse index (scored by insertion
// time `now`) and increments the global tag-frequency zset, per spec §4.3
// step 8 and §4.6 "tag add".
func AddTags(ctx context.Context, b store.Backend, jid string, tags []string, now float64) error {
	for _, t := range tags {
		if err := b.ZAdd(ctx, store.TagKey(t), now, jid); err != nil {
			return err
		}
		if _, err := b.ZIncrBy(ctx, store.TagsKey, 1, t); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTags removes jid from each tag's reverse index and decrements the
// global tag-frequency zset, per spec §4.6 "tag remove"/"cancel".
func RemoveTags(ctx context.Context, b store.Backend, jid string, tags []string) error {
	for _, t := range tags {
		if err := b.ZRem(ctx, store.TagKey(t), jid); err != nil {
			return err
		}
		if _, err := b.ZIncrBy(ctx, store.TagsKey, -1, t); err != nil {
			return err
		}
	}
	return nil
}

// TagJobs returns the jids carrying tag, ordered by insertion time.
func TagJobs(ctx context.Context, b store.Backend, tag string) ([]string, error) {
	sms, err := b.ZRange(ctx, store.TagKey(tag), 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sms))
	for i, sm := range sms {
		out[i] = sm.Member
	}
	return out, nil
}

// TopTags returns the n most-frequent tags, descending by frequency, per
// spec §4.6 "tag top".
func TopTags(ctx context.Context, b store.Backend, n int) ([]string, error) {
	sms, err := b.ZRevRange(ctx, store.TagsKey, n)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sms))
	for i, sm := range sms {
		out[i] = sm.Member
	}
	return out, nil
}

// Track adds jid to the global tracked set.
func Track(ctx context.Context, b store.Backend, jid string) error {
	return b.SAdd(ctx, store.TrackedKey, jid)
}

// Untrack removes jid from the global tracked set.
func Untrack(ctx context.Context, b store.Backend, jid string) error {
	return b.SRem(ctx, store.TrackedKey, jid)
}

// IsTracked reports whether jid is in the tracked set.
func IsTracked(ctx context.Context, b store.Backend, jid string) (bool, error) {
	return b.SIsMember(ctx, store.TrackedKey, jid)
}

// TrackedJIDs returns the full tracked set.
func TrackedJIDs(ctx context.Context, b store.Backend) ([]string, error) {
	ids, err := b.SMembers(ctx, store.TrackedKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// RegisterQueue ensures name is present in the global known-queues zset,
// scored by first-seen time, per spec §4.3 step 13.
func RegisterQueue(ctx context.Context, b store.Backend, name string, now float64) error {
	if _, ok, err := b.ZScore(ctx, store.QueuesKey, name); err != nil {
		return err
	} else if ok {
		return nil
	}
	return b.ZAdd(ctx, store.QueuesKey, now, name)
}

// Queues returns every known queue name.
func Queues(ctx context.Context, b store.Backend) ([]string, error) {
	sms, err := b.ZRange(ctx, store.QueuesKey, 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sms))
	for i, sm := range sms {
		out[i] = sm.Member
	}
	return out, nil
}

// Seen records a worker's last-activity time in the global worker registry
// (ql:workers), per spec §4.2 step 2.
func Seen(ctx context.Context, b store.Backend, worker string, now float64) error {
	return b.ZAdd(ctx, store.WorkersKey, now, worker)
}

// Workers returns every known worker name with its last-seen time.
func Workers(ctx context.Context, b store.Backend) ([]store.ScoredMember, error) {
	return b.ZRange(ctx, store.WorkersKey, 0)
}

// HoldJob adds jid to worker's held-job set, scored by lease expiry.
func HoldJob(ctx context.Context, b store.Backend, worker, jid string, expires float64) error {
	return b.ZAdd(ctx, store.WorkerJobsKey(worker), expires, jid)
}

// ReleaseJob removes jid from worker's held-job set.
func ReleaseJob(ctx context.Context, b store.Backend, worker, jid string) error {
	if worker == "" {
		return nil
	}
	return b.ZRem(ctx, store.WorkerJobsKey(worker), jid)
}

// HeldJobs returns the jids a worker currently holds.
func HeldJobs(ctx context.Context, b store.Backend, worker string) ([]string, error) {
	sms, err := b.ZRange(ctx, store.WorkerJobsKey(worker), 0)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sms))
	for i, sm := range sms {
		out[i] = sm.Member
	}
	return out, nil
}

// Pause adds queue to the paused-queues set.
func Pause(ctx context.Context, b store.Backend, queue string) error {
	return b.SAdd(ctx, store.PausedQueuesKey, queue)
}

// Unpause removes queue from the paused-queues set.
func Unpause(ctx context.Context, b store.Backend, queue string) error {
	return b.SRem(ctx, store.PausedQueuesKey, queue)
}

// IsPaused reports whether queue is currently paused.
func IsPaused(ctx context.Context, b store.Backend, queue string) (bool, error) {
	return b.SIsMember(ctx, store.PausedQueuesKey, queue)
}
