// Package redisstore provides the Redis-backed lockout store used when
// multiple instances must share lockout state. The failure transition runs
// inside a Lua script so concurrent failure bursts for one identity cannot
// lose increments or double-apply a lock.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/lockout"
)

const keyPrefix = "vigil:lockout:"

// Timestamps cross the Lua boundary as unix milliseconds: Lua numbers are
// doubles and nanosecond values would lose precision.
type wireRecord struct {
	Identity      string   `json:"identity"`
	FailureCount  int      `json:"failure_count"`
	LastFailureAt int64    `json:"last_failure_at"`
	LockedUntil   int64    `json:"locked_until,omitempty"`
	Sources       []string `json:"sources,omitempty"`
}

// failScript mirrors lockout.ApplyFailure. Keeping the two in step is the
// price of atomicity without a round trip.
var failScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local resetWindow = tonumber(ARGV[2])
local maxAttempts = tonumber(ARGV[3])
local lockDuration = tonumber(ARGV[4])
local source = ARGV[5]
local identity = ARGV[6]
local ttl = tonumber(ARGV[7])

local rec
local raw = redis.call('GET', key)
if raw then rec = cjson.decode(raw) end

local lockedNow = 0
local locked = rec and rec.locked_until and rec.locked_until > now
if not locked then
  if (not rec) or rec.locked_until or (now - rec.last_failure_at > resetWindow) then
    rec = {identity = identity, failure_count = 1, last_failure_at = now}
  else
    rec.failure_count = rec.failure_count + 1
    rec.last_failure_at = now
  end
  -- sources stays absent until the first non-empty source: cjson would
  -- otherwise encode an empty table as an object, not an array
  if source ~= '' then
    if not rec.sources then rec.sources = {} end
    local n = #rec.sources
    if n == 0 or rec.sources[n] ~= source then
      rec.sources[n + 1] = source
      if #rec.sources > 10 then table.remove(rec.sources, 1) end
    end
  end
  if rec.failure_count >= maxAttempts then
    rec.locked_until = now + lockDuration
    lockedNow = 1
  end
end

local encoded = cjson.encode(rec)
redis.call('SET', key, encoded, 'EX', ttl)
return {encoded, lockedNow}
`)

var deleteExpiredScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local rec = cjson.decode(raw)
if rec.locked_until and rec.locked_until <= tonumber(ARGV[1]) then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

// Store is the Redis-backed lockout store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a store. Keys expire ttl after their last failure, which
// replaces the in-memory store's sweep.
func New(client *redis.Client, policy lockout.Policy) *Store {
	ttl := policy.LockDuration
	if policy.ResetWindow > ttl {
		ttl = policy.ResetWindow
	}
	return &Store{client: client, ttl: ttl + time.Hour}
}

// Fail applies one failure atomically.
func (s *Store) Fail(ctx context.Context, identity, source string, now time.Time, policy lockout.Policy) (lockout.Record, bool, error) {
	res, err := failScript.Run(ctx, s.client, []string{keyPrefix + identity},
		now.UnixMilli(),
		policy.ResetWindow.Milliseconds(),
		policy.MaxAttempts,
		policy.LockDuration.Milliseconds(),
		source,
		identity,
		int(s.ttl.Seconds()),
	).Result()
	if err != nil {
		return lockout.Record{}, false, fmt.Errorf("record lockout failure: %w", err)
	}

	parts, ok := res.([]any)
	if !ok || len(parts) != 2 {
		return lockout.Record{}, false, fmt.Errorf("unexpected lockout script reply %T", res)
	}
	encoded, _ := parts[0].(string)
	lockedNow, _ := parts[1].(int64)

	rec, err := decodeRecord([]byte(encoded))
	if err != nil {
		return lockout.Record{}, false, err
	}
	return *rec, lockedNow == 1, nil
}

// Get returns the identity's record, or nil when absent.
func (s *Store) Get(ctx context.Context, identity string) (*lockout.Record, error) {
	raw, err := s.client.Get(ctx, keyPrefix+identity).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lockout record: %w", err)
	}
	return decodeRecord(raw)
}

// Delete removes the record unconditionally.
func (s *Store) Delete(ctx context.Context, identity string) (bool, error) {
	n, err := s.client.Del(ctx, keyPrefix+identity).Result()
	if err != nil {
		return false, fmt.Errorf("delete lockout record: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired removes the record only if its lock has expired.
func (s *Store) DeleteExpired(ctx context.Context, identity string, now time.Time) (bool, error) {
	n, err := deleteExpiredScript.Run(ctx, s.client,
		[]string{keyPrefix + identity}, now.UnixMilli()).Int()
	if err != nil {
		return false, fmt.Errorf("delete expired lockout: %w", err)
	}
	return n == 1, nil
}

// Sweep is a no-op: key TTLs perform the garbage collection here.
func (s *Store) Sweep(ctx context.Context, now time.Time, staleAfter time.Duration) (int, error) {
	return 0, nil
}

func decodeRecord(raw []byte) (*lockout.Record, error) {
	var wire wireRecord
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode lockout record: %w", err)
	}
	rec := &lockout.Record{
		Identity:      wire.Identity,
		FailureCount:  wire.FailureCount,
		LastFailureAt: time.UnixMilli(wire.LastFailureAt),
		Sources:       wire.Sources,
	}
	if wire.LockedUntil > 0 {
		until := time.UnixMilli(wire.LockedUntil)
		rec.LockedUntil = &until
	}
	return rec, nil
}
