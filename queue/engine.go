// Package queue implements the Queue Engine (QE): dispatch logic (lock
// expiry reclamation, scheduled promotion, recurring instantiation, priority
// selection, lease installation) plus the remaining top-level operations of
// spec §4 (put, complete, fail, retry, heartbeat, cancel, depends, tag,
// track, unfail, recur management, stats readout). Every operation is
// serialized behind one mutex, the "single writer thread" alternative spec
// §5/§9 explicitly sanctions for substrates without script-level atomicity.
package queue

import (
	"context"
	"log/slog"
	"sync"

	qcore "github.com/lordnynex/qless-core"
	"github.com/lordnynex/qless-core/config"
	"github.com/lordnynex/qless-core/event"
	"github.com/lordnynex/qless-core/job"
	"github.com/lordnynex/qless-core/observability"
	"github.com/lordnynex/qless-core/store"
)

// scoreDivisor is the `1e10` divisor spec §4.2 mandates reproducing exactly,
// so that any practical timestamp orders correctly against priority.
const scoreDivisor = 1e10

// defaultUnfailCount is the limit `unfail` uses when the caller supplies 0,
// per spec §4.6.
const defaultUnfailCount = 25

// Engine is the Queue Engine: the single entry point for every job
// lifecycle operation, backed by a pluggable store.Backend and serialized
// behind one process-wide mutex per spec §5's single-writer alternative.
type Engine struct {
	mu sync.Mutex

	backend store.Backend
	config  *config.Store
	events  *event.Bus
	logger  *slog.Logger

	tracer *observability.Tracer
	meter  *observability.Meter

	limiters *RateLimiters
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTracer attaches an observability.Tracer. Nil leaves the no-op tracer
// in place.
func WithTracer(t *observability.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithMeter attaches an observability.Meter. Nil leaves the no-op meter in
// place.
func WithMeter(m *observability.Meter) Option {
	return func(e *Engine) {
		if m != nil {
			e.meter = m
		}
	}
}

// WithRateLimiters attaches a RateLimiters gate for Pop, per spec §4.12's
// supplemental admission shaping. Peek is never gated.
func WithRateLimiters(rl *RateLimiters) Option {
	return func(e *Engine) {
		e.limiters = rl
	}
}

// New constructs an Engine over backend and cfg (a fresh configuration
// store when cfg is nil), with its own event bus.
func New(backend store.Backend, cfg *config.Store, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.New()
	}
	logger := slog.Default()
	e := &Engine{
		backend: backend,
		config:  cfg,
		logger:  logger,
		tracer:  observability.NoopTracer(),
		meter:   observability.NoopMeter(),
	}
	e.events = event.New(backend, logger)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func workScore(priority int, t float64) float64 {
	return float64(priority) - t/scoreDivisor
}

func (e *Engine) heartbeatInterval(queue string) float64 {
	return e.config.ResolveFloat(queue, config.KeyHeartbeat, config.DefaultHeartbeat)
}

func (e *Engine) loadJob(ctx context.Context, jid string) (*job.Job, error) {
	m, err := e.backend.HGetAll(ctx, store.JobKey(jid))
	if err != nil {
		return nil, err
	}
	j := job.FromFields(m)
	if j == nil {
		return nil, nil
	}
	deps, err := e.backend.SMembers(ctx, store.DependenciesKey(jid))
	if err != nil {
		return nil, err
	}
	dents, err := e.backend.SMembers(ctx, store.DependentsKey(jid))
	if err != nil {
		return nil, err
	}
	j.Dependencies = toSet(deps)
	j.Dependents = toSet(dents)
	return j, nil
}

func (e *Engine) saveJob(ctx context.Context, j *job.Job) error {
	return e.backend.HSet(ctx, store.JobKey(j.JID), j.ToFields())
}

func toSet(ids []string) map[job.JID]struct{} {
	out := make(map[job.JID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// removeFromQueueIndices removes jid from every per-queue index named in
// spec §3 invariant 1 (work, locks, scheduled, depends) for queue.
func (e *Engine) removeFromQueueIndices(ctx context.Context, queue, jid string) error {
	if queue == "" {
		return nil
	}
	if err := e.backend.ZRem(ctx, store.QueueWorkKey(queue), jid); err != nil {
		return err
	}
	if err := e.backend.ZRem(ctx, store.QueueLocksKey(queue), jid); err != nil {
		return err
	}
	if err := e.backend.ZRem(ctx, store.QueueScheduledKey(queue), jid); err != nil {
		return err
	}
	return e.backend.ZRem(ctx, store.QueueDependsKey(queue), jid)
}

func notNumericErr(param string) error {
	return qcore.NewError(qcore.InvalidArguments, param, "must be numeric")
}

func jobNotFoundErr(jid string) error {
	return qcore.NewError(qcore.JobNotFound, "jid", "no such job: "+jid)
}
