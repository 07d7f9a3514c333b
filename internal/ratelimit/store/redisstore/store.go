// Package redisstore provides the Redis-backed window counter store used when
// multiple instances must share rate-limit state.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the Redis-backed window counter store. Each (key, window) pair
// maps to its own Redis key carrying the window start, so rollover needs no
// coordination; keys expire one window after creation.
type Store struct {
	client *redis.Client
}

// New creates a store.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Incr bumps the counter for the window containing now.
func (s *Store) Incr(ctx context.Context, key string, now time.Time, window time.Duration) (int, time.Time, error) {
	windowStart := now.Truncate(window)
	bucket := fmt.Sprintf("vigil:rl:%s:%s", key, strconv.FormatInt(windowStart.Unix(), 10))

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.ExpireNX(ctx, bucket, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("increment rate window: %w", err)
	}
	return int(incr.Val()), windowStart, nil
}
