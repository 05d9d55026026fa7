// FilePath: internal/health/health.go
package health

import (
	"context"
	"sync"
	"time"

	"github.com/residential-power/outagewatch/internal/clock"
	"github.com/residential-power/outagewatch/internal/store"
)

// Status is the body of GET /api/v1/health.
type Status struct {
	Status         string `json:"status"`
	UptimeSec      int64  `json:"uptime_sec"`
	DBOk           bool   `json:"db_ok"`
	LastTickAgoSec int64  `json:"last_tick_ago_sec"`
}

// Tracker records process start time and the liveness monitor's last
// completed tick, so the health handler can report both without reaching
// into the monitor directly.
type Tracker struct {
	db        *store.DB
	clock     clock.Clock
	startedAt time.Time

	mu       sync.Mutex
	lastTick time.Time
}

// New constructs a Tracker. startedAt should be the clock's Now() at
// process start.
func New(db *store.DB, c clock.Clock, startedAt time.Time) *Tracker {
	return &Tracker{db: db, clock: c, startedAt: startedAt}
}

// RecordTick marks a liveness tick as completed at the given instant. The
// server calls it from the liveness Monitor's onTickDone callback.
func (t *Tracker) RecordTick(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastTick = at
}

// Check reports current health, pinging the store.
func (t *Tracker) Check(ctx context.Context) Status {
	now := t.clock.Now()
	dbOk := t.db.Ping(ctx) == nil

	t.mu.Lock()
	lastTick := t.lastTick
	t.mu.Unlock()

	var lastTickAgo int64
	if !lastTick.IsZero() {
		lastTickAgo = int64(now.Sub(lastTick).Seconds())
	}

	status := "ok"
	if !dbOk {
		status = "degraded"
	}

	return Status{
		Status:         status,
		UptimeSec:      int64(now.Sub(t.startedAt).Seconds()),
		DBOk:           dbOk,
		LastTickAgoSec: lastTickAgo,
	}
}
