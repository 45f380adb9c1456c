package memory

import (
	"context"
	"sync"
)

// IdempotencyStore keeps Idempotency-Key bindings for the life of the process.
// It stands in for the Redis store when REDIS_ADDR is unset. A claimed key
// maps to 0 until Bind records the medication id.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]int64
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]int64)}
}

func (s *IdempotencyStore) Claim(_ context.Context, key string) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, taken := s.keys[key]; taken {
		return false, id, nil
	}
	s.keys[key] = 0
	return true, 0, nil
}

func (s *IdempotencyStore) Bind(_ context.Context, key string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = id
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] == 0 {
		delete(s.keys, key)
	}
	return nil
}
