// FilePath: internal/liveness/liveness.go
package liveness

import (
	"context"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/aggregator"
	"github.com/residential-power/outagewatch/internal/metrics"
)

// Monitor runs the periodic liveness tick: every CheckInterval it asks the
// aggregator to recompute every section's power state from current sensor
// liveness, honoring freeze.
type Monitor struct {
	aggregator   *aggregator.Aggregator
	interval     time.Duration
	onTickDone   func(time.Duration)
	stop         chan struct{}
	done         chan struct{}
}

// New constructs a liveness Monitor. onTickDone, if non-nil, is called with
// each tick's duration for metrics instrumentation.
func New(agg *aggregator.Aggregator, interval time.Duration, onTickDone func(time.Duration)) *Monitor {
	return &Monitor{
		aggregator: agg,
		interval:   interval,
		onTickDone: onTickDone,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or ctx is canceled.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	start := time.Now()
	if err := m.aggregator.TickAll(ctx); err != nil {
		nuts.L.Errorf("[liveness] tick error: %v", err)
	}
	elapsed := time.Since(start)
	metrics.LivenessTickSecs.Observe(elapsed.Seconds())
	if m.onTickDone != nil {
		m.onTickDone(elapsed)
	}
}

// Stop signals the tick loop to exit and waits for it to finish.
func (m *Monitor) Stop() {
	close(m.stop)
	<-m.done
}
