// FilePath: internal/ratelimit/perkey_test.go
package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/residential-power/outagewatch/internal/clock"
)

func TestPerKeyLimiterCapsPerWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	l := NewPerKeyLimiter(c, 10, time.Second)

	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("sensor-1"), "event %d within the 10/s cap should be allowed", i)
	}
	require.False(t, l.Allow("sensor-1"), "11th event within the same window must be rejected")
}

func TestPerKeyLimiterWindowSlides(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	l := NewPerKeyLimiter(c, 10, time.Second)

	for i := 0; i < 10; i++ {
		require.True(t, l.Allow("sensor-1"))
	}
	require.False(t, l.Allow("sensor-1"))

	c.Advance(time.Second + time.Millisecond)
	require.True(t, l.Allow("sensor-1"), "events older than the window should no longer count against the cap")
}

func TestPerKeyLimiterKeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	l := NewPerKeyLimiter(c, 1, time.Second)

	require.True(t, l.Allow("sensor-1"))
	require.False(t, l.Allow("sensor-1"))
	require.True(t, l.Allow("sensor-2"), "a different sensor's cap is independent")
}
