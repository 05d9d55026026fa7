// FilePath: internal/ratelimit/perkey.go
package ratelimit

import (
	"sync"
	"time"

	"github.com/residential-power/outagewatch/internal/clock"
)

// PerKeyLimiter is a non-blocking sliding-window counter keyed by an
// arbitrary string (the sensor heartbeat route keys it by sensor_uuid).
// It mirrors the shape of MemoryLimiter's token bucket but rejects instead
// of blocking, and needs no shared cache since each sensor's rate is
// independent of every other's.
type PerKeyLimiter struct {
	mu sync.Mutex

	clock   clock.Clock
	limit   int
	window  time.Duration
	buckets map[string][]time.Time
}

// NewPerKeyLimiter constructs a limiter allowing up to limit events per
// window, per key.
func NewPerKeyLimiter(c clock.Clock, limit int, window time.Duration) *PerKeyLimiter {
	return &PerKeyLimiter{
		clock:   c,
		limit:   limit,
		window:  window,
		buckets: make(map[string][]time.Time),
	}
}

// Allow reports whether key may proceed now, recording the event if so.
func (l *PerKeyLimiter) Allow(key string) bool {
	now := l.clock.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	events := l.buckets[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.limit {
		l.buckets[key] = kept
		return false
	}
	l.buckets[key] = append(kept, now)
	return true
}
