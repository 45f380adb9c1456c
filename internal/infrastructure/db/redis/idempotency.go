package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyTTL = 24 * time.Hour
	// pendingTTL bounds how long a crashed request can hold a key.
	pendingTTL    = time.Minute
	pendingMarker = "pending"
)

// IdempotencyStore maps client-supplied Idempotency-Key values to the
// medication they created.
// Key format: idempotency:medication:<key>
type IdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewIdempotencyStore wraps the given Redis client. Bound entries expire
// after a day.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: idempotencyTTL, pendingTTL: pendingTTL}
}

// Claim reserves key with SETNX. When another request holds it, the bound
// medication id is returned, or 0 while that request is still pending.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, int64, error) {
	ok, err := s.client.SetNX(ctx, s.key(key), pendingMarker, s.pendingTTL).Result()
	if err != nil {
		return false, 0, fmt.Errorf("idempotency claim: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// released or expired since SETNX; the client retries
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("idempotency claim: %w", err)
	}
	if v == pendingMarker {
		return false, 0, nil
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return false, 0, fmt.Errorf("idempotency claim: corrupt value %q", v)
	}
	return false, id, nil
}

// Bind records the medication id for a claimed key.
func (s *IdempotencyStore) Bind(ctx context.Context, key string, id int64) error {
	if err := s.client.Set(ctx, s.key(key), strconv.FormatInt(id, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency bind: %w", err)
	}
	return nil
}

// Release drops a pending claim so the client can retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(key string) string {
	return "idempotency:medication:" + key
}
