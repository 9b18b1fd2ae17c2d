package queue

import (
	"context"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/depend"
	"github.com/lordnynex/qless-core/failure"
	"github.com/lordnynex/qless-core/index"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/store"
)

// Cancel removes jids entirely, per spec §4.6. Rejects any jid that is
// running, or that has a dependent whose state is not complete (cancelling
// an in-flight prerequisite chain silently would corrupt the dependents it
// still owes a release to).
func (e *Engine) Cancel(ctx context.Context, now float64, jids ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "cancel")
	defer end()

	jobs := make(map[string]*job.Job, len(jids))
	for _, jid := range jids {
		j, err := e.loadJob(ctx, jid)
		if err != nil {
			return err
		}
		if j == nil {
			return jobNotFoundErr(jid)
		}
		if j.State == job.StateRunning {
			return qcore.NewError(qcore.InvalidTransition, "jid", "cannot cancel a running job: "+jid)
		}
		for d := range j.Dependents {
			dj, err := e.loadJob(ctx, d)
			if err != nil {
				return err
			}
			if dj != nil && dj.State != job.StateComplete {
				return qcore.NewError(qcore.InvalidTransition, "jid", "cannot cancel "+jid+": job "+d+" still depends on it")
			}
		}
		jobs[jid] = j
	}

	for jid, j := range jobs {
		if err := e.removeFromQueueIndices(ctx, j.Queue, jid); err != nil {
			return err
		}
		if err := index.ReleaseJob(ctx, e.backend, j.WorkerID, jid); err != nil {
			return err
		}
		if err := index.RemoveTags(ctx, e.backend, jid, j.Tags); err != nil {
			return err
		}
		if err := index.Untrack(ctx, e.backend, jid); err != nil {
			return err
		}
		if err := e.backend.ZRem(ctx, store.CompletedKey, jid); err != nil {
			return err
		}
		if j.State == job.StateFailed && j.Failure != nil {
			if err := removeFailure(ctx, e.backend, j.Failure.Group, jid); err != nil {
				return err
			}
		}
		for d := range j.Dependencies {
			if err := depend.RemoveEdge(ctx, e.backend, jid, d); err != nil {
				return err
			}
		}
		for d := range j.Dependents {
			if err := depend.RemoveEdge(ctx, e.backend, d, jid); err != nil {
				return err
			}
		}
		if err := e.backend.Del(ctx, store.JobKey(jid)); err != nil {
			return err
		}
		e.events.Canceled(ctx, jid)
	}
	return nil
}

// Pause adds queues to the paused set; pop rejects on a paused queue, peek
// is unaffected, per spec §4.6.
func (e *Engine) Pause(ctx context.Context, queues ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range queues {
		if err := index.Pause(ctx, e.backend, q); err != nil {
			return err
		}
	}
	return nil
}

// Unpause removes queues from the paused set.
func (e *Engine) Unpause(ctx context.Context, queues ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range queues {
		if err := index.Unpause(ctx, e.backend, q); err != nil {
			return err
		}
	}
	return nil
}

// TagAdd adds tags to jid's tag set.
func (e *Engine) TagAdd(ctx context.Context, now float64, jid string, tags ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if j == nil {
		return jobNotFoundErr(jid)
	}
	fresh := dedupeAppend(j.Tags, tags)
	if err := index.AddTags(ctx, e.backend, jid, tags, now); err != nil {
		return err
	}
	j.Tags = fresh
	return e.saveJob(ctx, j)
}

// TagRemove removes tags from jid's tag set.
func (e *Engine) TagRemove(ctx context.Context, jid string, tags ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if j == nil {
		return jobNotFoundErr(jid)
	}
	if err := index.RemoveTags(ctx, e.backend, jid, tags); err != nil {
		return err
	}
	j.Tags = removeStrings(j.Tags, tags)
	return e.saveJob(ctx, j)
}

// TagGet returns the jids carrying tag.
func (e *Engine) TagGet(ctx context.Context, tag string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return index.TagJobs(ctx, e.backend, tag)
}

// TagTop returns the n most-frequent tags.
func (e *Engine) TagTop(ctx context.Context, n int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return index.TopTags(ctx, e.backend, n)
}

// Track adds jid to the tracked set and publishes "track".
func (e *Engine) Track(ctx context.Context, jid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := index.Track(ctx, e.backend, jid); err != nil {
		return err
	}
	e.events.Track(ctx, jid)
	return nil
}

// Untrack removes jid from the tracked set and publishes "untrack".
func (e *Engine) Untrack(ctx context.Context, jid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := index.Untrack(ctx, e.backend, jid); err != nil {
		return err
	}
	e.events.Untrack(ctx, jid)
	return nil
}

// Tracked returns every currently tracked jid.
func (e *Engine) Tracked(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return index.TrackedJIDs(ctx, e.backend)
}

// DependsOn adds prerequisite edges to jid while it is in {depends,
// waiting, scheduled}, per spec §4.1 depends('on').
func (e *Engine) DependsOn(ctx context.Context, now float64, jid string, prerequisites ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if err := e.requireMutableDependencyState(j, jid); err != nil {
		return err
	}
	for _, p := range prerequisites {
		pj, err := e.loadJob(ctx, p)
		if err != nil {
			return err
		}
		if pj == nil || pj.State == job.StateComplete {
			continue
		}
		if err := depend.AddEdge(ctx, e.backend, jid, p); err != nil {
			return err
		}
		j.Dependencies[p] = struct{}{}
	}
	return e.applyDependencyTransition(ctx, now, j)
}

// DependsOff removes prerequisite edges from jid; if this empties its
// dependency set, jid moves to waiting, per spec §4.1 depends('off').
func (e *Engine) DependsOff(ctx context.Context, now float64, jid string, prerequisites ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if err := e.requireMutableDependencyState(j, jid); err != nil {
		return err
	}
	for _, p := range prerequisites {
		if err := depend.RemoveEdge(ctx, e.backend, jid, p); err != nil {
			return err
		}
		delete(j.Dependencies, p)
	}
	return e.applyDependencyTransition(ctx, now, j)
}

// DependsAll returns every prerequisite jid still pending for jid.
func (e *Engine) DependsAll(ctx context.Context, jid string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return depend.Dependencies(ctx, e.backend, jid)
}

func (e *Engine) requireMutableDependencyState(j *job.Job, jid string) error {
	if j == nil {
		return jobNotFoundErr(jid)
	}
	switch j.State {
	case job.StateDepends, job.StateWaiting, job.StateScheduled:
		return nil
	default:
		return qcore.NewError(qcore.InvalidTransition, "jid", "cannot modify dependencies from state "+string(j.State))
	}
}

func (e *Engine) applyDependencyTransition(ctx context.Context, now float64, j *job.Job) error {
	if len(j.Dependencies) == 0 && j.State == job.StateDepends {
		if err := e.backend.ZRem(ctx, store.QueueDependsKey(j.Queue), j.JID); err != nil {
			return err
		}
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(j.Queue), workScore(j.Priority, now), j.JID); err != nil {
			return err
		}
		j.State = job.StateWaiting
	} else if len(j.Dependencies) > 0 && j.State != job.StateDepends {
		switch j.State {
		case job.StateWaiting:
			if err := e.backend.ZRem(ctx, store.QueueWorkKey(j.Queue), j.JID); err != nil {
				return err
			}
		case job.StateScheduled:
			if err := e.backend.ZRem(ctx, store.QueueScheduledKey(j.Queue), j.JID); err != nil {
				return err
			}
		}
		if err := e.backend.ZAdd(ctx, store.QueueDependsKey(j.Queue), now, j.JID); err != nil {
			return err
		}
		j.State = job.StateDepends
	}
	return e.saveJob(ctx, j)
}

// Unfail moves up to count (default 25) of the oldest jids in failed-<group>
// back to waiting in queue, per spec §4.6.
func (e *Engine) Unfail(ctx context.Context, now float64, group, queue string, count int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if count <= 0 {
		count = defaultUnfailCount
	}
	jids, err := failure.PopOldest(ctx, e.backend, group, count)
	if err != nil {
		return 0, err
	}
	for _, jid := range jids {
		j, err := e.loadJob(ctx, jid)
		if err != nil {
			return 0, err
		}
		if j == nil {
			continue
		}
		j.State = job.StateWaiting
		j.Remaining = j.Retries
		j.Failure = nil
		j.Queue = queue
		j.History = append(j.History, job.HistoryEntry{Queue: queue, Put: now})
		if err := e.saveJob(ctx, j); err != nil {
			return 0, err
		}
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(queue), workScore(j.Priority, now), jid); err != nil {
			return 0, err
		}
	}
	return len(jids), nil
}

// FailureGroups returns every known failure group name.
func (e *Engine) FailureGroups(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return failure.Groups(ctx, e.backend)
}

// FailureCount returns the number of jids currently failed into group.
func (e *Engine) FailureCount(ctx context.Context, group string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return failure.Count(ctx, e.backend, group)
}

// FailureList returns up to limit jids failed into group, most-recent-first.
func (e *Engine) FailureList(ctx context.Context, group string, limit int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return failure.List(ctx, e.backend, group, limit)
}

func dedupeAppend(existing []string, add []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, t := range existing {
		seen[t] = true
	}
	for _, t := range add {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func removeStrings(existing []string, drop []string) []string {
	d := make(map[string]bool, len(drop))
	for _, t := range drop {
		d[t] = true
	}
	out := make([]string, 0, len(existing))
	for _, t := range existing {
		if !d[t] {
			out = append(out, t)
		}
	}
	return out
}
