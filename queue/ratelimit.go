package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiters gates Pop per queue name with a token-bucket, per SPEC_FULL.md
// §4.12's supplemental admission shaping. A queue with no configured limit
// is unaffected; Peek never consults this at all.
type RateLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiters builds an empty RateLimiters; use Configure to add
// per-queue limits.
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{limiters: make(map[string]*rate.Limiter)}
}

// Configure sets (or replaces) the token-bucket limit for queue: limit
// tokens/sec sustained, burst tokens of instantaneous allowance. A
// non-positive limit removes any existing limiter for queue.
func (r *RateLimiters) Configure(queue string, limit float64, burst int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		delete(r.limiters, queue)
		return
	}
	if burst <= 0 {
		burst = 1
	}
	r.limiters[queue] = rate.NewLimiter(rate.Limit(limit), burst)
}

// Allow reports whether queue may admit one more Pop right now. A queue
// with no configured limiter always allows.
func (r *RateLimiters) Allow(queue string) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	l := r.limiters[queue]
	r.mu.Unlock()
	if l == nil {
		return true
	}
	return l.Allow()
}
