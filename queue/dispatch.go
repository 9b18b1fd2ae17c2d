package queue

import (
	"context"

	"github.com/lordnynex/qless-core/failure"
	"github.com/lordnynex/qless-core/index"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/recur"
	"github.com/lordnynex/qless-core/store"
)

// Peek previews up to count jids pop would return, per spec §4.2. It
// performs the same lock-expiry reclamation, recurring-instantiation and
// scheduled-promotion side effects pop does (steps 3–5) so that a subsequent pop sees a
// consistent view, but it never installs a lease. Peek is never subject to
// the pause gate or rate limiting.
func (e *Engine) Peek(ctx context.Context, now float64, queue string, count int) ([]*job.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "peek")
	defer end()

	jids, err := e.dispatchCandidates(ctx, now, queue, count, "")
	if err != nil {
		return nil, err
	}
	jobs := make([]*job.Job, 0, len(jids))
	for _, jid := range jids {
		j, err := e.loadJob(ctx, jid)
		if err != nil {
			return nil, err
		}
		if j != nil {
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// Pop leases up to count jids from queue to worker, per spec §4.2. Returns
// the jobs actually leased, carrying their new running state and lease.
func (e *Engine) Pop(ctx context.Context, now float64, queue, worker string, count int) ([]*job.Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, end := e.tracer.Start(ctx, "pop")
	defer end()

	paused, err := index.IsPaused(ctx, e.backend, queue)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, nil
	}
	if !e.limiters.Allow(queue) {
		return nil, nil
	}

	if err := index.Seen(ctx, e.backend, worker, now); err != nil {
		return nil, err
	}

	jids, err := e.dispatchCandidates(ctx, now, queue, count, worker)
	if err != nil {
		return nil, err
	}

	heartbeat := e.heartbeatInterval(queue)
	jobs := make([]*job.Job, 0, len(jids))
	for _, jid := range jids {
		j, err := e.loadJob(ctx, jid)
		if err != nil {
			return nil, err
		}
		if j == nil {
			continue
		}
		expires := now + heartbeat
		last := j.LastHistory()
		waitSample := now
		if last != nil {
			waitSample = now - last.Put
			last.Worker = worker
			last.Popped = now
		}
		if err := e.recordStat(ctx, "wait", queue, now, waitSample); err != nil {
			return nil, err
		}

		if err := index.HoldJob(ctx, e.backend, worker, jid, expires); err != nil {
			return nil, err
		}
		j.State = job.StateRunning
		j.WorkerID = worker
		j.Expires = expires
		if err := e.saveJob(ctx, j); err != nil {
			return nil, err
		}
		if err := e.backend.ZAdd(ctx, store.QueueLocksKey(queue), expires, jid); err != nil {
			return nil, err
		}
		if err := e.backend.ZRem(ctx, store.QueueWorkKey(queue), jid); err != nil {
			return nil, err
		}

		tracked, err := index.IsTracked(ctx, e.backend, jid)
		if err != nil {
			return nil, err
		}
		if tracked {
			e.events.Popped(ctx, jid)
		}
		jobs = append(jobs, j)
	}
	e.meter.PopCandidates(ctx, queue, len(jobs))
	return jobs, nil
}

// dispatchCandidates runs spec §4.2 steps 3–6: expired-lock reclamation,
// recurring instantiation, scheduled promotion, and work selection, common
// to both Peek and Pop. callingWorker is "" for Peek; it is not read here
// (reclamation notifies the lessee recorded on each reclaimed job).
func (e *Engine) dispatchCandidates(ctx context.Context, now float64, queue string, count int, callingWorker string) ([]string, error) {
	var candidates []string

	reclaimed, err := e.reclaimExpiredLocks(ctx, now, queue, count)
	if err != nil {
		return nil, err
	}
	candidates = append(candidates, reclaimed...)

	if need := count - len(candidates); need > 0 {
		spawned, err := recur.Update(ctx, e.backend, queue, now, need)
		if err != nil {
			return nil, err
		}
		for _, s := range spawned {
			candidates = append(candidates, s.JID)
		}
	}

	if need := count - len(candidates); need > 0 {
		promoted, err := e.promoteScheduled(ctx, now, queue, need)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, promoted...)
	}

	if need := count - len(candidates); need > 0 {
		sms, err := e.backend.ZRevRange(ctx, store.QueueWorkKey(queue), 0)
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool, len(candidates))
		for _, c := range candidates {
			seen[c] = true
		}
		for _, sm := range sms {
			if len(candidates) >= count {
				break
			}
			if seen[sm.Member] {
				continue
			}
			candidates = append(candidates, sm.Member)
		}
	}

	return candidates, nil
}

// reclaimExpiredLocks implements spec §4.2 step 3. A reclaimed job that
// still has retries left is written back to state=waiting and reinserted
// into work (score = priority − now/1e10) so it satisfies invariant 1 and
// is not repeatedly reclaimed by a later read-only Peek; it is also
// returned directly as a dispatch candidate so the caller need not re-scan
// work for it within the same call.
func (e *Engine) reclaimExpiredLocks(ctx context.Context, now float64, queue string, count int) ([]string, error) {
	expired, err := e.backend.ZRangeByScoreAsc(ctx, store.QueueLocksKey(queue), 0, now, count)
	if err != nil {
		return nil, err
	}
	if len(expired) == 0 {
		return nil, nil
	}

	var candidates []string
	var reclaimedN int64
	for _, sm := range expired {
		jid := sm.Member
		j, err := e.loadJob(ctx, jid)
		if err != nil {
			return candidates, err
		}
		if j == nil {
			continue
		}
		lessee := j.WorkerID

		if err := e.backend.ZRem(ctx, store.QueueLocksKey(queue), jid); err != nil {
			return candidates, err
		}
		if err := index.ReleaseJob(ctx, e.backend, lessee, jid); err != nil {
			return candidates, err
		}
		e.events.LockLost(ctx, lessee, jid)
		e.events.Log(ctx, "lock lost", map[string]interface{}{"jid": jid, "worker": lessee})

		j.Remaining--
		if j.Remaining < 0 {
			if err := e.removeFromQueueIndices(ctx, queue, jid); err != nil {
				return candidates, err
			}
			group := "failed-retries-" + queue
			j.State = job.StateFailed
			j.WorkerID = ""
			j.Expires = 0
			j.Failure = &job.Failure{Group: group, Message: "job exhausted retries in queue \"" + queue + "\"", When: now}
			j.History = append(j.History, job.HistoryEntry{Queue: queue, Failed: now})
			if err := e.saveJob(ctx, j); err != nil {
				return candidates, err
			}
			if err := failure.Record(ctx, e.backend, group, jid); err != nil {
				return candidates, err
			}
			tracked, err := index.IsTracked(ctx, e.backend, jid)
			if err != nil {
				return candidates, err
			}
			if tracked {
				e.events.Failed(ctx, jid, group)
			}
			e.meter.JobFailed(ctx, queue)
			continue
		}

		j.State = job.StateWaiting
		j.WorkerID = ""
		j.Expires = 0
		if err := e.saveJob(ctx, j); err != nil {
			return candidates, err
		}
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(queue), workScore(j.Priority, now), jid); err != nil {
			return candidates, err
		}
		candidates = append(candidates, jid)
		reclaimedN++
		tracked, err := index.IsTracked(ctx, e.backend, jid)
		if err != nil {
			return candidates, err
		}
		if tracked {
			e.events.Stalled(ctx, jid)
		}
		e.meter.JobReclaimed(ctx, queue)
	}

	if reclaimedN > 0 {
		bin := store.DayBin(now)
		if _, err := e.backend.HIncrBy(ctx, store.StatsQueueKey(bin, queue), "retries", reclaimedN); err != nil {
			return candidates, err
		}
	}
	return candidates, nil
}

// promoteScheduled implements spec §4.2 step 5: delayed jobs whose ready-at
// time has arrived move from scheduled into work, keyed by their original
// schedule score so ordering reflects when they became eligible, not when
// this dispatch call happened to run.
func (e *Engine) promoteScheduled(ctx context.Context, now float64, queue string, need int) ([]string, error) {
	due, err := e.backend.ZRangeByScoreAsc(ctx, store.QueueScheduledKey(queue), 0, now, need)
	if err != nil {
		return nil, err
	}
	var promoted []string
	for _, sm := range due {
		jid := sm.Member
		j, err := e.loadJob(ctx, jid)
		if err != nil {
			return promoted, err
		}
		if j == nil {
			continue
		}
		if err := e.backend.ZRem(ctx, store.QueueScheduledKey(queue), jid); err != nil {
			return promoted, err
		}
		if err := e.backend.ZAdd(ctx, store.QueueWorkKey(queue), workScore(j.Priority, sm.Score), jid); err != nil {
			return promoted, err
		}
		j.State = job.StateWaiting
		if err := e.saveJob(ctx, j); err != nil {
			return promoted, err
		}
		promoted = append(promoted, jid)
	}
	return promoted, nil
}

func (e *Engine) recordStat(ctx context.Context, stage, queue string, now, sample float64) error {
	bin := store.DayBin(now)
	return recordStatAt(ctx, e.backend, stage, bin, queue, sample)
}
