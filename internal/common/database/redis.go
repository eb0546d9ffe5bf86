package database

import (
	"context"
	"fmt"
	"time"

	"plant-advisor/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis opens a pooled client for the session store and the model
// snapshot store. The connection is lazy; call PingRedis to verify it.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// PingRedis returns a Check for the readiness endpoint.
func PingRedis(client redis.UniversalClient) Check {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}
