// Package observability wraps OpenTelemetry tracing and metrics around the
// queue engine's top-level operations, per SPEC_FULL.md §4.11. Both Tracer
// and Meter fall back to the OTel no-op implementations when constructed
// without a live provider, so instrumentation is always safe to call and
// never mandatory for a caller to wire up.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func queueAttr(queue string) attribute.KeyValue {
	return attribute.String("queue", queue)
}

const instrumentationName = "github.com/lordnynex/qless-core/queue"

// Tracer opens one span per top-level Engine operation.
type Tracer struct {
	tr trace.Tracer
}

// NewTracer builds a Tracer from an explicit trace.TracerProvider. A nil
// provider falls back to the global no-op provider.
func NewTracer(provider trace.TracerProvider) *Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracer{tr: provider.Tracer(instrumentationName)}
}

// NoopTracer returns a Tracer backed by the OTel no-op provider, used as the
// Engine default when no tracer is configured.
func NoopTracer() *Tracer {
	return NewTracer(trace.NewNoopTracerProvider())
}

// Start opens a span named op (e.g. "put", "pop", "complete") and returns
// the derived context plus an end function the caller must defer.
func (t *Tracer) Start(ctx context.Context, op string) (context.Context, func()) {
	if t == nil {
		return ctx, func() {}
	}
	ctx, span := t.tr.Start(ctx, "qcore."+op)
	return ctx, func() { span.End() }
}

// Meter records counters and histograms for queue engine activity.
type Meter struct {
	jobsPut       metric.Int64Counter
	jobsCompleted metric.Int64Counter
	jobsFailed    metric.Int64Counter
	jobsRetried   metric.Int64Counter
	jobsReclaimed metric.Int64Counter
	popCandidates metric.Int64Histogram
}

// NewMeter builds a Meter from an explicit metric.MeterProvider. A nil
// provider falls back to the global no-op provider. Instrument creation
// errors are swallowed; the Meter degrades to silently dropping that
// particular measurement, matching spec §7's "publish failures are silent"
// posture extended to telemetry.
func NewMeter(provider metric.MeterProvider) *Meter {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m := provider.Meter(instrumentationName)
	mm := &Meter{}
	mm.jobsPut, _ = m.Int64Counter("qcore.jobs.put")
	mm.jobsCompleted, _ = m.Int64Counter("qcore.jobs.completed")
	mm.jobsFailed, _ = m.Int64Counter("qcore.jobs.failed")
	mm.jobsRetried, _ = m.Int64Counter("qcore.jobs.retried")
	mm.jobsReclaimed, _ = m.Int64Counter("qcore.jobs.reclaimed")
	mm.popCandidates, _ = m.Int64Histogram("qcore.pop.candidates")
	return mm
}

// NoopMeter returns a Meter backed by the OTel global no-op provider.
func NoopMeter() *Meter {
	return NewMeter(noopMeterProvider{})
}

type noopMeterProvider struct{ metric.MeterProvider }

func (noopMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return otel.GetMeterProvider().Meter(instrumentationName)
}

func (m *Meter) incr(ctx context.Context, c metric.Int64Counter, queue string) {
	if m == nil || c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(queueAttr(queue)))
}

// JobPut records one put.
func (m *Meter) JobPut(ctx context.Context, queue string) { m.incr(ctx, m.jobsPut, queue) }

// JobCompleted records one completion.
func (m *Meter) JobCompleted(ctx context.Context, queue string) { m.incr(ctx, m.jobsCompleted, queue) }

// JobFailed records one failure.
func (m *Meter) JobFailed(ctx context.Context, queue string) { m.incr(ctx, m.jobsFailed, queue) }

// JobRetried records one retry.
func (m *Meter) JobRetried(ctx context.Context, queue string) { m.incr(ctx, m.jobsRetried, queue) }

// JobReclaimed records one lock-expiry reclamation.
func (m *Meter) JobReclaimed(ctx context.Context, queue string) { m.incr(ctx, m.jobsReclaimed, queue) }

// PopCandidates records the number of jobs a single pop returned.
func (m *Meter) PopCandidates(ctx context.Context, queue string, n int) {
	if m == nil || m.popCandidates == nil {
		return
	}
	m.popCandidates.Record(ctx, int64(n), metric.WithAttributes(queueAttr(queue)))
}
