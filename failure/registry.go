// Package failure implements the Failure Registry (FR): per-group failed
// job lists and unfail, per spec §3/§4.6. Group membership is a Set
// (ql:failures) of group names plus one List per group (ql:f:<group>,
// head = most recently failed), matching spec §6's keyspace exactly.
package failure

import (
	"context"

	"github.com/lordnynex/qless-core/store"
)

// Record pushes jid onto the head of its failure group's list and ensures
// the group is present in the global failure-group set, per spec §4.1
// fail()'s "Adds group to ql:failures, pushes jid to head of failed-<group>".
func Record(ctx context.Context, b store.Backend, group, jid string) error {
	if err := b.SAdd(ctx, store.FailuresKey, group); err != nil {
		return err
	}
	return b.LPush(ctx, store.FailedGroupKey(group), jid)
}

// Remove removes jid from its failure group's list and drops the group
// from the global set if the list is now empty.
func Remove(ctx context.Context, b store.Backend, group, jid string) error {
	if err := b.LRem(ctx, store.FailedGroupKey(group), jid); err != nil {
		return err
	}
	return pruneIfEmpty(ctx, b, group)
}

func pruneIfEmpty(ctx context.Context, b store.Backend, group string) error {
	n, err := b.LLen(ctx, store.FailedGroupKey(group))
	if err != nil {
		return err
	}
	if n == 0 {
		return b.SRem(ctx, store.FailuresKey, group)
	}
	return nil
}

// Groups returns every known failure group name.
func Groups(ctx context.Context, b store.Backend) ([]string, error) {
	return b.SMembers(ctx, store.FailuresKey)
}

// List returns up to limit jids in group, oldest-last (head = most
// recent), matching the list's storage order. limit <= 0 means unlimited.
func List(ctx context.Context, b store.Backend, group string, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	return b.LRange(ctx, store.FailedGroupKey(group), 0, int(stop))
}

// Count returns the number of jids currently in group.
func Count(ctx context.Context, b store.Backend, group string) (int64, error) {
	return b.LLen(ctx, store.FailedGroupKey(group))
}

// PopOldest removes and returns up to count jids from the tail (oldest) of
// group's list, for Unfail per spec §4.6.
func PopOldest(ctx context.Context, b store.Backend, group string, count int) ([]string, error) {
	var out []string
	for i := 0; i < count; i++ {
		jid, ok, err := b.RPop(ctx, store.FailedGroupKey(group))
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, jid)
	}
	if err := pruneIfEmpty(ctx, b, group); err != nil {
		return out, err
	}
	return out, nil
}
