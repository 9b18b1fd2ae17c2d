package queue

import (
	"context"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/config"
	"github.com/lordnynex/qless-core/index"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/stats"
	"github.com/lordnynex/qless-core/store"
)

func recordStatAt(ctx context.Context, b store.Backend, stage string, bin int64, queue string, sample float64) error {
	var key string
	switch stage {
	case "wait":
		key = store.StatsWaitKey(bin, queue)
	case "run":
		key = store.StatsRunKey(bin, queue)
	default:
		return qcore.NewError(qcore.InvalidArguments, "stage", "must be wait or run")
	}
	m, err := b.HGetAll(ctx, key)
	if err != nil {
		return err
	}
	acc, h := stats.FromFields(m)
	acc.Add(sample)
	h.Add(sample)
	return b.HSet(ctx, key, stats.ToFields(acc, h))
}

// Stats returns the wait/run snapshot for (queue, day-bin), per spec §4.7.
func (e *Engine) Stats(ctx context.Context, queue string, bin int64) (wait, run stats.Snapshot, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	waitM, err := e.backend.HGetAll(ctx, store.StatsWaitKey(bin, queue))
	if err != nil {
		return wait, run, err
	}
	runM, err := e.backend.HGetAll(ctx, store.StatsRunKey(bin, queue))
	if err != nil {
		return wait, run, err
	}
	wacc, wh := stats.FromFields(waitM)
	racc, rh := stats.FromFields(runM)
	wait = stats.Snapshot{Total: wacc.Total, Mean: wacc.Mean, StdDev: wacc.StdDev(), Histogram: wh}
	run = stats.Snapshot{Total: racc.Total, Mean: racc.Mean, StdDev: racc.StdDev(), Histogram: rh}
	return wait, run, nil
}

// Queues returns every known queue name.
func (e *Engine) Queues(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return index.Queues(ctx, e.backend)
}

// Workers returns every known worker with its last-seen time.
func (e *Engine) Workers(ctx context.Context) ([]store.ScoredMember, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return index.Workers(ctx, e.backend)
}

// WorkerJobs returns the jids a worker currently holds a lease on.
func (e *Engine) WorkerJobs(ctx context.Context, worker string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return index.HeldJobs(ctx, e.backend, worker)
}

// Get returns the full job record for jid, or nil if it does not exist.
func (e *Engine) Get(ctx context.Context, jid string) (*job.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadJob(ctx, jid)
}

// Length returns the number of waiting jobs in queue's work index.
func (e *Engine) Length(ctx context.Context, queue string) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.backend.ZCard(ctx, store.QueueWorkKey(queue))
}

// JobsByState lists up to limit jids in the given per-queue index: waiting,
// scheduled, depends, or running. "complete" lists the global completed set
// regardless of queue, since completion is not a per-queue concept once a
// job leaves its queue's indices. limit<=0 means unlimited.
func (e *Engine) JobsByState(ctx context.Context, queue string, state job.State, limit int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var key string
	switch state {
	case job.StateWaiting:
		key = store.QueueWorkKey(queue)
	case job.StateRunning:
		key = store.QueueLocksKey(queue)
	case job.StateScheduled:
		key = store.QueueScheduledKey(queue)
	case job.StateDepends:
		key = store.QueueDependsKey(queue)
	case job.StateComplete:
		key = store.CompletedKey
	default:
		return nil, qcore.NewError(qcore.InvalidArguments, "state", "unsupported state for jobs listing")
	}
	sms, err := e.backend.ZRange(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(sms))
	for i, sm := range sms {
		out[i] = sm.Member
	}
	return out, nil
}

// Priority updates jid's priority and, if it is currently waiting,
// re-scores it in its queue's work index so the new priority takes effect
// immediately without waiting for the job to be re-put.
func (e *Engine) Priority(ctx context.Context, jid string, priority int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, err := e.loadJob(ctx, jid)
	if err != nil {
		return err
	}
	if j == nil {
		return jobNotFoundErr(jid)
	}
	j.Priority = priority
	if j.State == job.StateWaiting {
		last := j.LastHistory()
		var put float64
		if last != nil {
			put = last.Put
		}
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(j.Queue), workScore(priority, put), jid); err != nil {
			return err
		}
	}
	return e.saveJob(ctx, j)
}

// Config exposes the engine's configuration store to the command facade.
func (e *Engine) Config() *config.Store {
	return e.config
}
