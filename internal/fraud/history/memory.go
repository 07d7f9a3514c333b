// Package history provides the per-identity transaction history sources
// consumed by the fraud scorer: a process-local TTL cache and a Redis-backed
// variant for multi-instance deployments.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"vigil/internal/fraud"
	"vigil/pkg/requestcontext"
)

// Memory keeps recent transactions in an expirable LRU keyed by identity.
// Entries expire one window after the identity's last activity; individual
// transactions older than the window are trimmed on access. The mutex covers
// the read-modify-write on an identity's slice; the LRU itself is already
// safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	cache  *expirable.LRU[string, []fraud.Transaction]
	window time.Duration
}

// NewMemory creates a history bounded to capacity identities.
func NewMemory(capacity int, window time.Duration) *Memory {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Memory{
		cache:  expirable.NewLRU[string, []fraud.Transaction](capacity, nil, window),
		window: window,
	}
}

// Recent returns the identity's transactions inside the trailing window,
// oldest first.
func (m *Memory) Recent(ctx context.Context, identity string, window time.Duration) ([]fraud.Transaction, error) {
	txs, ok := m.cache.Get(identity)
	if !ok {
		return nil, nil
	}
	cutoff := requestcontext.Now(ctx).Add(-window)
	out := make([]fraud.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Timestamp.Before(cutoff) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Record appends a transaction to the identity's window and trims aged-out
// entries.
func (m *Memory) Record(ctx context.Context, tx fraud.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := requestcontext.Now(ctx).Add(-m.window)
	existing, _ := m.cache.Get(tx.Identity)
	kept := make([]fraud.Transaction, 0, len(existing)+1)
	for _, prev := range existing {
		if !prev.Timestamp.Before(cutoff) {
			kept = append(kept, prev)
		}
	}
	kept = append(kept, tx)
	m.cache.Add(tx.Identity, kept)
	return nil
}
