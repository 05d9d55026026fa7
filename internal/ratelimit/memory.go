// FilePath: internal/ratelimit/memory.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/residential-power/outagewatch/internal/clock"
)

type sendRecord struct {
	at time.Time
}

// MemoryLimiter is a single-process token bucket plus dedup cache, used when
// REDIS_ADDR is unset so the service still runs as a single binary.
type MemoryLimiter struct {
	mu sync.Mutex

	clock clock.Clock

	ratePerSec int
	tokens     float64
	maxTokens  float64
	lastRefill time.Time

	dedupWindow time.Duration
	sent        map[string]sendRecord
}

// NewMemoryLimiter constructs an in-memory Limiter with the given rate (per
// second) and dedup window.
func NewMemoryLimiter(c clock.Clock, ratePerSec int, dedupWindow time.Duration) *MemoryLimiter {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &MemoryLimiter{
		clock:       c,
		ratePerSec:  ratePerSec,
		tokens:      float64(ratePerSec),
		maxTokens:   float64(ratePerSec),
		lastRefill:  c.Now(),
		dedupWindow: dedupWindow,
		sent:        make(map[string]sendRecord),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second / time.Duration(l.ratePerSec)):
		}
	}
}

func (l *MemoryLimiter) refill() {
	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * float64(l.ratePerSec)
	if l.tokens > l.maxTokens {
		l.tokens = l.maxTokens
	}
	l.lastRefill = now
}

func (l *MemoryLimiter) ShouldSend(ctx context.Context, subscriberID, eventID string) (bool, error) {
	key := subscriberID + "|" + eventID
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if record, ok := l.sent[key]; ok && now.Sub(record.at) < l.dedupWindow {
		return false, nil
	}
	l.sent[key] = sendRecord{at: now}
	l.evictLocked(now)
	return true, nil
}

// evictLocked drops entries older than the dedup window so the map does not
// grow unbounded across a long-running process. Caller holds l.mu.
func (l *MemoryLimiter) evictLocked(now time.Time) {
	for k, r := range l.sent {
		if now.Sub(r.at) >= l.dedupWindow {
			delete(l.sent, k)
		}
	}
}
