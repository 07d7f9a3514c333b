// Package memory provides the process-local fixed-window counter store,
// sharded so distinct keys never contend on one lock.
package memory

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 32

type counter struct {
	windowStart time.Time
	count       int
}

type shard struct {
	mu       sync.Mutex
	counters map[string]*counter
}

// Store is the in-memory window counter store.
type Store struct {
	shards [shardCount]*shard
}

// New creates an empty store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{counters: make(map[string]*counter)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%shardCount]
}

// Incr bumps the key's counter, resetting it when its window has rolled over.
func (s *Store) Incr(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	windowStart := now.Truncate(window)

	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[key]
	if !ok || c.windowStart.Before(windowStart) {
		if !ok && len(sh.counters) >= purgeThreshold {
			sh.purgeLocked(windowStart)
		}
		c = &counter{windowStart: windowStart}
		sh.counters[key] = c
	}
	c.count++
	return c.count, c.windowStart, nil
}

// purgeThreshold bounds per-shard growth from one-shot clients; expired
// counters are dropped before the shard admits a new key past it.
const purgeThreshold = 4096

func (s *shard) purgeLocked(currentWindow time.Time) {
	for key, c := range s.counters {
		if c.windowStart.Before(currentWindow) {
			delete(s.counters, key)
		}
	}
}
