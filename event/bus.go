// Package event implements the Event Bus (EB): structured publish to the
// named channels of spec §6 (log, <worker>, put, popped, completed, failed,
// stalled, canceled, track, untrack). Grounded on the teacher's
// store/redis publish-per-channel pattern, generalized to typed payloads
// published through store.Backend.Publish rather than a direct Redis call,
// so the Bus works over either SA backend.
package event

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lordnynex/qless-core/store"
)

// Bus publishes structured events. Publish failures are swallowed and
// logged, per spec §7 ("Publish failures are silent").
type Bus struct {
	backend store.Backend
	logger  *slog.Logger
}

// New creates a Bus over the given storage backend.
func New(backend store.Backend, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{backend: backend, logger: logger}
}

func (b *Bus) publish(ctx context.Context, channel string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Warn("event: marshal failed", "channel", channel, "error", err)
		return
	}
	if err := b.backend.Publish(ctx, channel, payload); err != nil {
		b.logger.Warn("event: publish failed", "channel", channel, "error", err)
	}
}

// Log publishes a free-form log line to the "log" channel.
func (b *Bus) Log(ctx context.Context, event string, fields map[string]interface{}) {
	msg := map[string]interface{}{"event": event}
	for k, v := range fields {
		msg[k] = v
	}
	b.publish(ctx, store.ChanLog, msg)
}

// Put publishes {jid} to the "put" channel when jid is tracked.
func (b *Bus) Put(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanPut, map[string]string{"jid": jid})
}

// Popped publishes {jid} to the "popped" channel when jid is tracked.
func (b *Bus) Popped(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanPopped, map[string]string{"jid": jid})
}

// Completed publishes {jid} to the "completed" channel when jid is tracked.
func (b *Bus) Completed(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanCompleted, map[string]string{"jid": jid})
}

// Failed publishes {jid, group} to the "failed" channel when jid is tracked.
func (b *Bus) Failed(ctx context.Context, jid, group string) {
	b.publish(ctx, store.ChanFailed, map[string]string{"jid": jid, "group": group})
}

// Stalled publishes {jid} to the "stalled" channel when jid is tracked.
func (b *Bus) Stalled(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanStalled, map[string]string{"jid": jid})
}

// Canceled publishes {jid} to the "canceled" channel.
func (b *Bus) Canceled(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanCanceled, map[string]string{"jid": jid})
}

// Track publishes {jid} to the "track" channel.
func (b *Bus) Track(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanTrack, map[string]string{"jid": jid})
}

// Untrack publishes {jid} to the "untrack" channel.
func (b *Bus) Untrack(ctx context.Context, jid string) {
	b.publish(ctx, store.ChanUntrack, map[string]string{"jid": jid})
}

// LockLost publishes {jid, event: "lock lost"} to the worker's private
// channel, revoking the lease, per spec §4.2 step 3.
func (b *Bus) LockLost(ctx context.Context, worker, jid string) {
	b.publish(ctx, store.WorkerChan(worker), map[string]string{"jid": jid, "event": "lock lost"})
}

// PutRevoked publishes {jid, event: "put"} to the worker's private
// channel, revoking the lease on re-put, per spec §4.3 step 6.
func (b *Bus) PutRevoked(ctx context.Context, worker, jid string) {
	b.publish(ctx, store.WorkerChan(worker), map[string]string{"jid": jid, "event": "put"})
}
