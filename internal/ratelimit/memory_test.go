// FilePath: internal/ratelimit/memory_test.go
package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/residential-power/outagewatch/internal/clock"
)

func TestMemoryLimiterAllowRefillsOverTime(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	l := NewMemoryLimiter(c, 2, 10*time.Second)

	require.NoError(t, l.Allow(context.Background()))
	require.NoError(t, l.Allow(context.Background()))

	// Bucket exhausted at 2 tokens; advance the clock 1s (rate=2/s) to refill
	// before the next Allow call, so it returns without blocking on real time.
	c.Advance(time.Second)
	require.NoError(t, l.Allow(context.Background()))
	require.NoError(t, l.Allow(context.Background()))
}

func TestMemoryLimiterShouldSendDedupsWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	l := NewMemoryLimiter(c, 10, 10*time.Second)

	first, err := l.ShouldSend(context.Background(), "chat-1", "event-1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := l.ShouldSend(context.Background(), "chat-1", "event-1")
	require.NoError(t, err)
	require.False(t, second, "duplicate (subscriber, event) within the dedup window should be suppressed")

	c.Advance(11 * time.Second)
	third, err := l.ShouldSend(context.Background(), "chat-1", "event-1")
	require.NoError(t, err)
	require.True(t, third, "after the dedup window elapses the same event may send again")
}

func TestMemoryLimiterShouldSendDistinguishesSubscribers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFixed(now)
	l := NewMemoryLimiter(c, 10, 10*time.Second)

	a, err := l.ShouldSend(context.Background(), "chat-1", "event-1")
	require.NoError(t, err)
	require.True(t, a)

	b, err := l.ShouldSend(context.Background(), "chat-2", "event-1")
	require.NoError(t, err)
	require.True(t, b, "same event id for a different subscriber is not a duplicate")
}
