package queue

import (
	"context"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/depend"
	"github.com/lordnynex/qless-core/index"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/store"
)

// Put creates or replaces the job record jid on queue, per spec §4.3.
// opts.Delay>0 together with a non-empty opts.Depends is a Conflict: a job
// cannot be both time-delayed and dependency-blocked.
func (e *Engine) Put(ctx context.Context, now float64, queue, jid, klass, data string, opts job.PutOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "put")
	defer end()

	if opts.Delay > 0 && len(opts.Depends) > 0 {
		return qcore.NewError(qcore.Conflict, "depends", "delay and depends are mutually exclusive")
	}

	existing, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}

	priority, tags, retries := 0, []string{}, job.DefaultRetries
	if existing != nil {
		priority, tags, retries = existing.Priority, existing.Tags, existing.Retries
	}
	if opts.Priority != nil {
		priority = *opts.Priority
	}
	if len(opts.Tags) > 0 {
		tags = opts.Tags
	}
	if opts.Retries != nil {
		retries = *opts.Retries
	}

	e.events.Log(ctx, "put", map[string]interface{}{"jid": jid, "queue": queue})

	var history []job.HistoryEntry
	if existing != nil {
		history = append(history, existing.History...)
	}
	history = append(history, job.HistoryEntry{Queue: queue, Put: now})

	if existing != nil {
		if existing.Queue != "" {
			if err := e.removeFromQueueIndices(ctx, existing.Queue, jid); err != nil {
				return err
			}
		}
		if existing.WorkerID != "" {
			if err := index.ReleaseJob(ctx, e.backend, existing.WorkerID, jid); err != nil {
				return err
			}
			e.events.PutRevoked(ctx, existing.WorkerID, jid)
		}
		if existing.State == job.StateComplete {
			if err := e.backend.ZRem(ctx, store.CompletedKey, jid); err != nil {
				return err
			}
		}
		if existing.State == job.StateFailed && existing.Failure != nil {
			group := existing.Failure.Group
			if err := removeFailure(ctx, e.backend, group, jid); err != nil {
				return err
			}
			bin := store.DayBin(existing.Failure.When)
			if _, err := e.backend.HIncrBy(ctx, store.StatsQueueKey(bin, existing.Queue), "failed", -1); err != nil {
				return err
			}
		}
		if err := index.RemoveTags(ctx, e.backend, jid, existing.Tags); err != nil {
			return err
		}
		for d := range existing.Dependencies {
			if err := depend.RemoveEdge(ctx, e.backend, jid, d); err != nil {
				return err
			}
		}
	}

	if err := index.AddTags(ctx, e.backend, jid, tags, now); err != nil {
		return err
	}

	newJob := &job.Job{
		JID:          jid,
		Klass:        klass,
		Data:         data,
		Priority:     priority,
		Tags:         tags,
		Queue:        queue,
		WorkerID:     "",
		Expires:      0,
		Retries:      retries,
		Remaining:    retries,
		History:      history,
		Dependencies: map[job.JID]struct{}{},
		Dependents:   dependentsOf(existing),
	}

	for _, d := range opts.Depends {
		dep, err := e.loadJob(ctx, d)
		if err != nil {
			return err
		}
		if dep == nil || dep.State == job.StateComplete {
			continue
		}
		if err := depend.AddEdge(ctx, e.backend, jid, d); err != nil {
			return err
		}
		newJob.Dependencies[d] = struct{}{}
	}

	switch {
	case opts.Delay > 0:
		newJob.State = job.StateScheduled
		if err := e.backend.ZAdd(ctx, store.QueueScheduledKey(queue), now+opts.Delay, jid); err != nil {
			return err
		}
	case len(newJob.Dependencies) > 0:
		newJob.State = job.StateDepends
		if err := e.backend.ZAdd(ctx, store.QueueDependsKey(queue), now, jid); err != nil {
			return err
		}
	default:
		newJob.State = job.StateWaiting
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(queue), workScore(priority, now), jid); err != nil {
			return err
		}
	}

	if err := e.saveJob(ctx, newJob); err != nil {
		return err
	}
	if err := index.RegisterQueue(ctx, e.backend, queue, now); err != nil {
		return err
	}

	tracked, err := index.IsTracked(ctx, e.backend, jid)
	if err != nil {
		return err
	}
	if tracked {
		e.events.Put(ctx, jid)
	}
	e.meter.JobPut(ctx, queue)
	return nil
}

func dependentsOf(existing *job.Job) map[job.JID]struct{} {
	if existing == nil {
		return map[job.JID]struct{}{}
	}
	return existing.Dependents
}

func removeFailure(ctx context.Context, b store.Backend, group, jid string) error {
	if err := b.LRem(ctx, store.FailedGroupKey(group), jid); err != nil {
		return err
	}
	n, err := b.LLen(ctx, store.FailedGroupKey(group))
	if err != nil {
		return err
	}
	if n == 0 {
		return b.SRem(ctx, store.FailuresKey, group)
	}
	return nil
}
