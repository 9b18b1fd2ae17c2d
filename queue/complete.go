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

func (e *Engine) fence(j *job.Job, jid, worker, queue string) error {
	if j == nil {
		return jobNotFoundErr(jid)
	}
	if j.State != job.StateRunning {
		return qcore.NewError(qcore.JobNotRunning, "jid", "job is not running")
	}
	if j.WorkerID != worker {
		return qcore.NewError(qcore.WorkerMismatch, "worker", "job is not leased by this worker")
	}
	if queue != "" && j.Queue != queue {
		return qcore.NewError(qcore.QueueMismatch, "queue", "job is not in this queue")
	}
	return nil
}

// Complete finishes a running job, per spec §4.1 complete(). When
// opts.Next is set, the job is handed off to another queue (a pipeline
// continuation) instead of terminating; dependents are released only on a
// true terminal completion, since a pipeline continuation has not actually
// finished the unit of work a dependent is waiting on.
func (e *Engine) Complete(ctx context.Context, now float64, jid, worker, queue, data string, opts CompleteOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "complete")
	defer end()

	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if err := e.fence(j, jid, worker, queue); err != nil {
		return err
	}

	if err := e.backend.ZRem(ctx, store.QueueLocksKey(queue), jid); err != nil {
		return err
	}
	if err := index.ReleaseJob(ctx, e.backend, worker, jid); err != nil {
		return err
	}

	last := j.LastHistory()
	var runSample float64
	if last != nil {
		last.Completed = now
		runSample = now - last.Popped
	}
	if err := e.recordStat(ctx, "run", queue, now, runSample); err != nil {
		return err
	}
	j.Data = data

	if opts.Next != "" {
		if err := e.completeToNext(ctx, now, j, opts); err != nil {
			return err
		}
	} else {
		j.State = job.StateComplete
		j.WorkerID = ""
		j.Expires = 0
		if err := e.saveJob(ctx, j); err != nil {
			return err
		}
		if err := e.backend.ZAdd(ctx, store.CompletedKey, now, jid); err != nil {
			return err
		}
		if err := e.releaseDependents(ctx, now, j); err != nil {
			return err
		}
		tracked, err := index.IsTracked(ctx, e.backend, jid)
		if err != nil {
			return err
		}
		if tracked {
			e.events.Completed(ctx, jid)
		}
		e.meter.JobCompleted(ctx, queue)
	}
	return nil
}

func (e *Engine) completeToNext(ctx context.Context, now float64, j *job.Job, opts CompleteOptions) error {
	j.Queue = opts.Next
	j.WorkerID = ""
	j.Expires = 0
	j.History = append(j.History, job.HistoryEntry{Queue: opts.Next, Put: now})

	deps := map[job.JID]struct{}{}
	for _, d := range opts.NextDepends {
		dep, err := e.loadJob(ctx, d)
		if err != nil {
			return err
		}
		if dep == nil || dep.State == job.StateComplete {
			continue
		}
		if err := depend.AddEdge(ctx, e.backend, j.JID, d); err != nil {
			return err
		}
		deps[d] = struct{}{}
	}
	j.Dependencies = deps

	switch {
	case opts.NextDelay > 0:
		j.State = job.StateScheduled
		if err := e.backend.ZAdd(ctx, store.QueueScheduledKey(opts.Next), now+opts.NextDelay, j.JID); err != nil {
			return err
		}
	case len(deps) > 0:
		j.State = job.StateDepends
		if err := e.backend.ZAdd(ctx, store.QueueDependsKey(opts.Next), now, j.JID); err != nil {
			return err
		}
	default:
		j.State = job.StateWaiting
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(opts.Next), workScore(j.Priority, now), j.JID); err != nil {
			return err
		}
	}
	if err := e.saveJob(ctx, j); err != nil {
		return err
	}
	if err := index.RegisterQueue(ctx, e.backend, opts.Next, now); err != nil {
		return err
	}
	tracked, err := index.IsTracked(ctx, e.backend, j.JID)
	if err != nil {
		return err
	}
	if tracked {
		e.events.Put(ctx, j.JID)
	}
	return nil
}

// releaseDependents implements spec §4.5: for each dependent of j, drop the
// edge; if its dependency set is now empty and it is still state=depends,
// move it into its queue's work index.
func (e *Engine) releaseDependents(ctx context.Context, now float64, j *job.Job) error {
	for d := range j.Dependents {
		if err := depend.RemoveEdge(ctx, e.backend, d, j.JID); err != nil {
			return err
		}
		remaining, err := depend.RemainingCount(ctx, e.backend, d)
		if err != nil {
			return err
		}
		if remaining > 0 {
			continue
		}
		dj, err := e.loadJob(ctx, d)
		if err != nil {
			return err
		}
		if dj == nil || dj.State != job.StateDepends {
			continue
		}
		if err := e.backend.ZRem(ctx, store.QueueDependsKey(dj.Queue), d); err != nil {
			return err
		}
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(dj.Queue), workScore(dj.Priority, now), d); err != nil {
			return err
		}
		dj.State = job.StateWaiting
		if err := e.saveJob(ctx, dj); err != nil {
			return err
		}
	}
	return nil
}

// Fail transitions a running job straight to failed, per spec §4.1 fail().
// It fences on worker and queue like Complete/Retry, so a caller
// racing against a reclaimed or reassigned lock gets WorkerMismatch or
// QueueMismatch instead of silently failing someone else's attempt.
func (e *Engine) Fail(ctx context.Context, now float64, jid, worker, queue, group, message string, data *string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "fail")
	defer end()

	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if err := e.fence(j, jid, worker, queue); err != nil {
		return err
	}

	if err := e.removeFromQueueIndices(ctx, j.Queue, jid); err != nil {
		return err
	}
	if err := index.ReleaseJob(ctx, e.backend, worker, jid); err != nil {
		return err
	}
	if data != nil {
		j.Data = *data
	}
	j.State = job.StateFailed
	j.WorkerID = ""
	j.Expires = 0
	j.Failure = &job.Failure{Group: group, Message: message, When: now, Worker: worker}
	j.History = append(j.History, job.HistoryEntry{Queue: j.Queue, Failed: now})
	if err := e.saveJob(ctx, j); err != nil {
		return err
	}
	if err := failure.Record(ctx, e.backend, group, jid); err != nil {
		return err
	}
	bin := store.DayBin(now)
	if _, err := e.backend.HIncrBy(ctx, store.StatsQueueKey(bin, queue), "failed", 1); err != nil {
		return err
	}
	tracked, err := index.IsTracked(ctx, e.backend, jid)
	if err != nil {
		return err
	}
	if tracked {
		e.events.Failed(ctx, jid, group)
	}
	e.meter.JobFailed(ctx, queue)
	return nil
}

// Retry returns a running job to waiting (delay=0) or scheduled (delay>0),
// decrementing remaining; exhausting retries fails it instead, per spec
// §4.1 retry().
func (e *Engine) Retry(ctx context.Context, now float64, jid, queue, worker string, delay float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "retry")
	defer end()

	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if err := e.fence(j, jid, worker, queue); err != nil {
		return err
	}

	if err := e.backend.ZRem(ctx, store.QueueLocksKey(queue), jid); err != nil {
		return err
	}
	if err := index.ReleaseJob(ctx, e.backend, worker, jid); err != nil {
		return err
	}
	j.Remaining--
	j.WorkerID = ""
	j.Expires = 0

	if j.Remaining < 0 {
		group := "failed-retries-" + queue
		j.State = job.StateFailed
		j.Failure = &job.Failure{Group: group, Message: "job exhausted retries in queue \"" + queue + "\"", When: now}
		j.History = append(j.History, job.HistoryEntry{Queue: queue, Failed: now})
		if err := e.saveJob(ctx, j); err != nil {
			return err
		}
		if err := failure.Record(ctx, e.backend, group, jid); err != nil {
			return err
		}
		bin := store.DayBin(now)
		if _, err := e.backend.HIncrBy(ctx, store.StatsQueueKey(bin, queue), "failed", 1); err != nil {
			return err
		}
		tracked, err := index.IsTracked(ctx, e.backend, jid)
		if err != nil {
			return err
		}
		if tracked {
			e.events.Failed(ctx, jid, group)
		}
		e.meter.JobFailed(ctx, queue)
		return nil
	}

	if delay > 0 {
		j.State = job.StateScheduled
		if err := e.backend.ZAdd(ctx, store.QueueScheduledKey(queue), now+delay, jid); err != nil {
			return err
		}
	} else {
		j.State = job.StateWaiting
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(queue), workScore(j.Priority, now), jid); err != nil {
			return err
		}
	}
	if err := e.saveJob(ctx, j); err != nil {
		return err
	}
	e.meter.JobRetried(ctx, queue)
	return nil
}

// Heartbeat extends a running job's lease, per spec §4.1 heartbeat().
func (e *Engine) Heartbeat(ctx context.Context, now float64, jid, worker string, data *string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "heartbeat")
	defer end()

	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return 0, err
	}
	if err := e.fence(j, jid, worker, ""); err != nil {
		return 0, err
	}
	if data != nil {
		j.Data = *data
	}
	expires := now + e.heartbeatInterval(j.Queue)
	j.Expires = expires
	if err := e.saveJob(ctx, j); err != nil {
		return 0, err
	}
	if err := e.backend.ZAdd(ctx, store.QueueLocksKey(j.Queue), expires, jid); err != nil {
		return 0, err
	}
	if err := index.HoldJob(ctx, e.backend, worker, jid, expires); err != nil {
		return 0, err
	}
	return expires, nil
}
