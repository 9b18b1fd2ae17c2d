// Package depend implements the Dependency Resolver (DR) edge bookkeeping:
// job→job prerequisite edges, per spec §4.5. Release-on-empty propagation is
// done by the queue package (Engine.releaseDependents), not here. An
// edge (a depends on b) is two Sets: ql:j:<b>-dependents (containing a) and
// ql:j:<a>-dependencies (containing b), per spec invariant 7.
package depend

import (
	"context"

	"github.com/lordnynex/qless-core/store"
)

// AddEdge records that dependent depends on prerequisite: dependent gains
// prerequisite in its dependencies set, and prerequisite gains dependent in
// its dependents set, per spec §4.3 step 11.
func AddEdge(ctx context.Context, b store.Backend, dependent, prerequisite string) error {
	if err := b.SAdd(ctx, store.DependenciesKey(dependent), prerequisite); err != nil {
		return err
	}
	return b.SAdd(ctx, store.DependentsKey(prerequisite), dependent)
}

// RemoveEdge drops the (dependent, prerequisite) edge without regard to
// whether prerequisite completed or was canceled — the caller decides
// whether that emptying the dependency set should release dependent.
func RemoveEdge(ctx context.Context, b store.Backend, dependent, prerequisite string) error {
	if err := b.SRem(ctx, store.DependenciesKey(dependent), prerequisite); err != nil {
		return err
	}
	return b.SRem(ctx, store.DependentsKey(prerequisite), dependent)
}

// Dependents returns the jids that depend on jid.
func Dependents(ctx context.Context, b store.Backend, jid string) ([]string, error) {
	return b.SMembers(ctx, store.DependentsKey(jid))
}

// Dependencies returns the jids jid depends on.
func Dependencies(ctx context.Context, b store.Backend, jid string) ([]string, error) {
	return b.SMembers(ctx, store.DependenciesKey(jid))
}

// RemainingCount returns how many prerequisites jid still has.
func RemainingCount(ctx context.Context, b store.Backend, jid string) (int64, error) {
	return b.SCard(ctx, store.DependenciesKey(jid))
}
