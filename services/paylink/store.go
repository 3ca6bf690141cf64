package paylink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenStore records which link tokens have been used.
type TokenStore interface {
	// Consume atomically marks jti as used for ttl. It returns false if jti was already used.
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)
	IsConsumed(ctx context.Context, jti string) (bool, error)
}

const consumedPrefix = "paylink:consumed:"

// RedisTokenStore keeps consumption markers in Redis; they expire with the token.
type RedisTokenStore struct {
	client *redis.Client
}

func NewRedisTokenStore(client *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, consumedPrefix+jti, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume link token: %w", err)
	}
	return ok, nil
}

func (s *RedisTokenStore) IsConsumed(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, consumedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check link token: %w", err)
	}
	return n > 0, nil
}

// MemoryTokenStore is a single-process TokenStore.
type MemoryTokenStore struct {
	mu       sync.Mutex
	consumed map[string]time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{consumed: make(map[string]time.Time)}
}

func (s *MemoryTokenStore) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if until, ok := s.consumed[jti]; ok && now.Before(until) {
		return false, nil
	}
	s.consumed[jti] = now.Add(ttl)
	// Drop markers whose tokens can no longer validate anyway.
	for k, until := range s.consumed {
		if !now.Before(until) {
			delete(s.consumed, k)
		}
	}
	return true, nil
}

func (s *MemoryTokenStore) IsConsumed(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.consumed[jti]
	return ok && time.Now().Before(until), nil
}
