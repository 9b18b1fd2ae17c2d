package queue

import (
	"context"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/index"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/recur"
)

// RecurOptions carries Recur's optional arguments, per spec §4.4 recur().
type RecurOptions struct {
	Tags     []string
	Priority int
	Retries  int
}

// Recur registers a recurring template on queue, per spec §4.4. Only
// spec="interval" is defined; interval must be > 0.
func (e *Engine) Recur(ctx context.Context, now float64, queue, jid, klass, data, spec string, interval, offset float64, opts RecurOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if spec != recur.ScheduleInterval {
		return qcore.NewError(qcore.UnknownSchedule, "spec", "unsupported recurring schedule: "+spec)
	}
	if interval <= 0 {
		return qcore.NewError(qcore.RecurInvalidInterval, "interval", "interval must be > 0")
	}
	retries := opts.Retries
	if retries == 0 {
		retries = job.DefaultRetries
	}
	t := recur.Template{
		JID: jid, Klass: klass, Data: data,
		Priority: opts.Priority, Tags: opts.Tags, Queue: queue,
		Spec: spec, Interval: interval, Retries: retries,
	}
	if err := recur.Register(ctx, e.backend, t, now, offset); err != nil {
		return err
	}
	return index.RegisterQueue(ctx, e.backend, queue, now)
}

// Unrecur removes a recurring template; already-spawned instances live on,
// per spec §4.4.
func (e *Engine) Unrecur(ctx context.Context, jid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := recur.Get(ctx, e.backend, jid)
	if err != nil {
		return err
	}
	if t == nil {
		return jobNotFoundErr(jid)
	}
	return recur.Unregister(ctx, e.backend, *t)
}

// RecurGet returns a recurring template by jid.
func (e *Engine) RecurGet(ctx context.Context, jid string) (*recur.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return recur.Get(ctx, e.backend, jid)
}

// RecurUpdate edits mutable fields (priority, interval, retries, data,
// klass) of a recurring template in place. A nil pointer leaves the field
// unchanged.
func (e *Engine) RecurUpdate(ctx context.Context, jid string, priority *int, interval *float64, retries *int, data, klass *string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := recur.Get(ctx, e.backend, jid)
	if err != nil {
		return err
	}
	if t == nil {
		return jobNotFoundErr(jid)
	}
	if priority != nil {
		t.Priority = *priority
	}
	if interval != nil {
		if *interval <= 0 {
			return qcore.NewError(qcore.RecurInvalidInterval, "interval", "interval must be > 0")
		}
		t.Interval = *interval
	}
	if retries != nil {
		t.Retries = *retries
	}
	if data != nil {
		t.Data = *data
	}
	if klass != nil {
		t.Klass = *klass
	}
	return recur.Save(ctx, e.backend, *t)
}

// RecurTag adds tags to a recurring template.
func (e *Engine) RecurTag(ctx context.Context, jid string, tags ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := recur.Get(ctx, e.backend, jid)
	if err != nil {
		return err
	}
	if t == nil {
		return jobNotFoundErr(jid)
	}
	t.Tags = dedupeAppend(t.Tags, tags)
	return recur.Save(ctx, e.backend, *t)
}

// RecurUntag removes tags from a recurring template.
func (e *Engine) RecurUntag(ctx context.Context, jid string, tags ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := recur.Get(ctx, e.backend, jid)
	if err != nil {
		return err
	}
	if t == nil {
		return jobNotFoundErr(jid)
	}
	t.Tags = removeStrings(t.Tags, tags)
	return recur.Save(ctx, e.backend, *t)
}
