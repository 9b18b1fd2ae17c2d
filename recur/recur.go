// Package recur implements the Recurring Scheduler (RS): interval-based
// generation of concrete job instances from a recurring template, per spec
// §3/§4.4. Only spec="interval" is defined; spawned instances are plain
// job.Job records with jid "<template-jid>-<count>".
package recur

import (
	"context"
	"strconv"

	"github.com/lordnynex/qless-core/index"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/store"
)

// ScheduleInterval is the only schedule kind this module implements, per
// spec §1 Non-goals ("no cron-expression scheduling").
const ScheduleInterval = "interval"

// Template is the Recurring Job (RS) entity of spec §3.
type Template struct {
	JID      job.JID
	Klass    string
	Data     string
	Priority int
	Tags     []string
	Queue    job.Queue
	Spec     string
	Interval float64
	Count    int64
	Retries  int
}

// Spawned describes one concrete job instance created by Update.
type Spawned struct {
	JID job.JID
	Job *job.Job
}

// Register writes a fresh recurring template and places it in the queue's
// recur index at now+offset, per spec §4.4 recur().
func Register(ctx context.Context, b store.Backend, t Template, now, offset float64) error {
	if err := b.HSet(ctx, store.RecurKey(t.JID), toFields(t)); err != nil {
		return err
	}
	return b.ZAdd(ctx, store.QueueRecurKey(t.Queue), now+offset, t.JID)
}

// Save rewrites a template's hash fields in place, without touching its
// position in the queue's recur zset, for in-place edits (priority,
// interval, tags, retries) that must not reset the next-due time.
func Save(ctx context.Context, b store.Backend, t Template) error {
	return b.HSet(ctx, store.RecurKey(t.JID), toFields(t))
}

// Unregister removes a recurring template and its queue placement. Already
// spawned instances are untouched, per spec §4.4 "Cancellation ... stops
// future instantiation; already-spawned instances live on as normal jobs."
func Unregister(ctx context.Context, b store.Backend, t Template) error {
	if err := b.ZRem(ctx, store.QueueRecurKey(t.Queue), t.JID); err != nil {
		return err
	}
	return b.Del(ctx, store.RecurKey(t.JID))
}

// Get loads a recurring template by jid, or nil if it does not exist.
func Get(ctx context.Context, b store.Backend, jid string) (*Template, error) {
	m, err := b.HGetAll(ctx, store.RecurKey(jid))
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	t := fromFields(m)
	return &t, nil
}

// Update implements the instantiation loop of spec §4.4: it iterates the
// queue's recur zset for templates due at or before now, spawning up to
// need concrete job instances. Returns the spawned jobs, already written
// to storage and placed in the work index. Update records no statistics and
// publishes no events for the spawned jobs, and queue.Engine adds none when
// it takes them as candidates; wait statistics are recorded only when Pop
// leases them.
func Update(ctx context.Context, b store.Backend, queue string, now float64, need int) ([]Spawned, error) {
	if need <= 0 {
		return nil, nil
	}
	due, err := b.ZRangeByScoreAsc(ctx, store.QueueRecurKey(queue), 0, now, 0)
	if err != nil {
		return nil, err
	}

	var spawned []Spawned
	moved := 0
	for _, sm := range due {
		if moved >= need {
			break
		}
		t, err := Get(ctx, b, sm.Member)
		if err != nil {
			return spawned, err
		}
		if t == nil {
			continue
		}
		score := sm.Score
		for score <= now && moved < need {
			count, err := b.HIncrBy(ctx, store.RecurKey(t.JID), "count", 1)
			if err != nil {
				return spawned, err
			}
			t.Count = count

			spawnJID := t.JID + "-" + strconv.FormatInt(count, 10)
			if err := index.AddTags(ctx, b, spawnJID, t.Tags, score); err != nil {
				return spawned, err
			}

			j := &job.Job{
				JID:          spawnJID,
				Klass:        t.Klass,
				Data:         t.Data,
				Priority:     t.Priority,
				Tags:         append([]string(nil), t.Tags...),
				State:        job.StateWaiting,
				Queue:        t.Queue,
				Retries:      t.Retries,
				Remaining:    t.Retries,
				History:      []job.HistoryEntry{{Queue: t.Queue, Put: score}},
				Dependencies: map[job.JID]struct{}{},
				Dependents:   map[job.JID]struct{}{},
			}
			if err := b.HSet(ctx, store.JobKey(spawnJID), j.ToFields()); err != nil {
				return spawned, err
			}
			workScore := float64(t.Priority) - score/1e10
			if err := b.ZAdd(ctx, store.QueueWorkKey(t.Queue), workScore, spawnJID); err != nil {
				return spawned, err
			}

			spawned = append(spawned, Spawned{JID: spawnJID, Job: j})
			moved++

			score += t.Interval
			if _, err := b.ZIncrBy(ctx, store.QueueRecurKey(queue), t.Interval, t.JID); err != nil {
				return spawned, err
			}
		}
	}
	return spawned, nil
}

func toFields(t Template) map[string]string {
	return map[string]string{
		"jid":      t.JID,
		"klass":    t.Klass,
		"data":     t.Data,
		"priority": strconv.Itoa(t.Priority),
		"tags":     marshalTags(t.Tags),
		"queue":    t.Queue,
		"spec":     t.Spec,
		"interval": strconv.FormatFloat(t.Interval, 'f', -1, 64),
		"count":    strconv.FormatInt(t.Count, 10),
		"retries":  strconv.Itoa(t.Retries),
	}
}

func fromFields(m map[string]string) Template {
	t := Template{
		JID:   m["jid"],
		Klass: m["klass"],
		Data:  m["data"],
		Queue: m["queue"],
		Spec:  m["spec"],
	}
	t.Priority, _ = strconv.Atoi(m["priority"])
	t.Interval, _ = strconv.ParseFloat(m["interval"], 64)
	t.Count, _ = strconv.ParseInt(m["count"], 10, 64)
	t.Retries, _ = strconv.Atoi(m["retries"])
	t.Tags = unmarshalTags(m["tags"])
	return t
}
