package lockout

import (
	"context"
	"time"
)

// Store holds per-identity failure records. Fail and DeleteExpired must be
// atomic per identity: concurrent failure bursts for one identity must never
// lose an increment or apply a second lock.
type Store interface {
	// Fail applies one failure under the policy and returns the updated
	// record plus whether this call performed the transition into LOCKED.
	Fail(ctx context.Context, identity, source string, now time.Time, policy Policy) (Record, bool, error)

	// Get returns the identity's record, or nil when absent.
	Get(ctx context.Context, identity string) (*Record, error)

	// Delete removes the record unconditionally, reporting whether one existed.
	Delete(ctx context.Context, identity string) (bool, error)

	// DeleteExpired removes the record only if its lock has expired,
	// reporting whether it did. A concurrent fresh failure is never lost.
	DeleteExpired(ctx context.Context, identity string, now time.Time) (bool, error)

	// Sweep garbage-collects records whose lock expired and which saw no
	// activity for staleAfter. Returns the number removed.
	Sweep(ctx context.Context, now time.Time, staleAfter time.Duration) (int, error)
}
