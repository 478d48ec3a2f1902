package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postpilot/dispatch/internal/models"
)

const redisKeyPrefix = "dispatch:idem:"

// RedisStore is the production ledger. The pending reservation is taken with
// SET NX so concurrent workers across processes resolve to one winner, and
// the 24h TTL is delegated to redis expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) CheckOrReserve(ctx context.Context, key string) (Check, error) {
	if key == "" {
		return Check{}, ErrEmptyKey
	}

	rec := models.IdempotencyRecord{
		Key:       key,
		Status:    models.IdempotencyStatusPending,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Check{}, err
	}

	ok, err := s.client.SetNX(ctx, redisKeyPrefix+key, data, models.IdempotencyTTL).Result()
	if err != nil {
		return Check{}, fmt.Errorf("idempotency: reserve failed: %w", err)
	}
	if ok {
		return Check{Reserved: true}, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		// Record expired between SetNX and Get; treat as in progress and let
		// the next tick retry.
		return Check{Status: models.IdempotencyStatusPending}, nil
	}
	if err != nil {
		return Check{}, fmt.Errorf("idempotency: read failed: %w", err)
	}

	var existing models.IdempotencyRecord
	if err := json.Unmarshal(raw, &existing); err != nil {
		return Check{}, fmt.Errorf("idempotency: corrupt record for key %s: %w", key, err)
	}
	if existing.Status == models.IdempotencyStatusPending {
		return Check{Status: existing.Status}, nil
	}
	return Check{Status: existing.Status, Result: existing.Result}, nil
}

func (s *RedisStore) Commit(ctx context.Context, key string, result []byte, status string) error {
	if key == "" {
		return ErrEmptyKey
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("idempotency: read failed: %w", err)
	}

	var rec models.IdempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("idempotency: corrupt record for key %s: %w", key, err)
	}
	if rec.Status != models.IdempotencyStatusPending {
		return nil
	}

	rec.Status = status
	rec.Result = result
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	// KeepTTL preserves the expiry set at reservation time.
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("idempotency: commit failed: %w", err)
	}
	return nil
}

var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then return 0 end
local rec = cjson.decode(raw)
if rec['status'] == 'pending' then
  redis.call('DEL', KEYS[1])
  return 1
end
return 0
`)

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := releaseScript.Run(ctx, s.client, []string{redisKeyPrefix + key}).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("idempotency: release failed: %w", err)
	}
	return nil
}
