// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"ledgerpay/config"

	"github.com/go-redis/redis/v8"
)

var (
	// LockClient backs the distributed per-invoice lock.
	LockClient *redis.Client
	// TokenClient stores payment-link consumption markers.
	TokenClient *redis.Client
)

func newRedisClient(db int, name string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis (%s): %v", name, err)
	}
	return client
}

// GetLockClient returns the Redis client used for invoice locks.
func GetLockClient() *redis.Client {
	if LockClient == nil {
		LockClient = newRedisClient(config.AppConfig.RedisLockDB, "Lock")
	}
	return LockClient
}

// GetTokenClient returns the Redis client used for payment-link tokens.
func GetTokenClient() *redis.Client {
	if TokenClient == nil {
		TokenClient = newRedisClient(config.AppConfig.RedisTokenDB, "Token")
	}
	return TokenClient
}
