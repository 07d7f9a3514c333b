// Package memory provides the process-local lockout store: a sharded map so
// distinct identities never contend on one lock.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"vigil/internal/lockout"
)

const shardCount = 32

type shard struct {
	mu      sync.Mutex
	records map[string]*lockout.Record
}

// Store is the in-memory lockout store.
type Store struct {
	shards [shardCount]*shard
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{records: make(map[string]*lockout.Record)}
	}
	return s
}

func (s *Store) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return s.shards[h.Sum32()%shardCount]
}

// Fail applies one failure atomically under the identity's shard lock.
func (s *Store) Fail(ctx context.Context, identity, source string, now time.Time, policy lockout.Policy) (lockout.Record, bool, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	updated, lockedNow := lockout.ApplyFailure(sh.records[identity], identity, source, now, policy)
	sh.records[identity] = &updated
	return updated, lockedNow, nil
}

// Get returns a copy of the identity's record, or nil.
func (s *Store) Get(ctx context.Context, identity string) (*lockout.Record, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[identity]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.Sources = append([]string(nil), rec.Sources...)
	return &cp, nil
}

// Delete removes the record unconditionally.
func (s *Store) Delete(ctx context.Context, identity string) (bool, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := sh.records[identity]; !ok {
		return false, nil
	}
	delete(sh.records, identity)
	return true, nil
}

// DeleteExpired removes the record only if its lock has expired.
func (s *Store) DeleteExpired(ctx context.Context, identity string, now time.Time) (bool, error) {
	sh := s.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.records[identity]
	if !ok || rec.LockedUntil == nil || now.Before(*rec.LockedUntil) {
		return false, nil
	}
	delete(sh.records, identity)
	return true, nil
}

// Sweep removes stale records shard by shard.
func (s *Store) Sweep(ctx context.Context, now time.Time, staleAfter time.Duration) (int, error) {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for identity, rec := range sh.records {
			if rec.LockedAt(now) {
				continue
			}
			if now.Sub(rec.LastFailureAt) > staleAfter {
				delete(sh.records, identity)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}
