package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil/internal/fraud"
	"vigil/pkg/requestcontext"
)

// Redis keeps each identity's transactions in a sorted set scored by
// occurrence time, so multiple instances share velocity state. Writes trim
// aged-out members and refresh the key TTL; an idle identity's set expires
// one window after its last transaction.
type Redis struct {
	client *redis.Client
	window time.Duration
}

// NewRedis creates a Redis-backed history.
func NewRedis(client *redis.Client, window time.Duration) *Redis {
	return &Redis{client: client, window: window}
}

func historyKey(identity string) string {
	return "vigil:fraud:history:" + identity
}

// Recent returns the identity's transactions inside the trailing window,
// oldest first.
func (r *Redis) Recent(ctx context.Context, identity string, window time.Duration) ([]fraud.Transaction, error) {
	now := requestcontext.Now(ctx)
	min := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	members, err := r.client.ZRangeByScore(ctx, historyKey(identity), &redis.ZRangeBy{
		Min: min,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read transaction history: %w", err)
	}

	txs := make([]fraud.Transaction, 0, len(members))
	for _, member := range members {
		var tx fraud.Transaction
		if err := json.Unmarshal([]byte(member), &tx); err != nil {
			return nil, fmt.Errorf("decode transaction history entry: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// Record appends a transaction and trims members older than the window.
func (r *Redis) Record(ctx context.Context, tx fraud.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	now := requestcontext.Now(ctx)
	key := historyKey(tx.Identity)
	cutoff := strconv.FormatInt(now.Add(-r.window).UnixNano(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(tx.Timestamp.UnixNano()), Member: string(payload)})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+cutoff)
	pipe.Expire(ctx, key, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write transaction history: %w", err)
	}
	return nil
}
