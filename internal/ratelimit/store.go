package ratelimit

import (
	"context"
	"time"
)

// Store maintains fixed-window counters. Incr must be atomic per key so
// concurrent requests for one client never lose counts.
type Store interface {
	// Incr bumps the counter for the window containing now and returns the
	// post-increment count plus the window start.
	Incr(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error)
}
