// FilePath: internal/ratelimit/ratelimit.go
package ratelimit

import "context"

// Limiter gates outbound notification throughput and suppresses duplicate
// sends within a dedup window. One shared Limiter serves the whole notifier
// worker pool.
type Limiter interface {
	// Allow blocks until the token bucket has capacity, or ctx is done.
	Allow(ctx context.Context) error
	// ShouldSend reports whether (subscriber, eventID) has not been sent
	// within the dedup window, and marks it sent if so.
	ShouldSend(ctx context.Context, subscriberID, eventID string) (bool, error)
}
