package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Abraxas-365/chatflow/pkg/config"
	"github.com/go-redis/redis/v8"
)

// NewRedisClient conecta a Redis con el pool dimensionado desde config.
// El deduper, el locker y el scheduler comparten este cliente, así que
// el pool tiene que aguantar ráfagas de webhooks concurrentes.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// CloseRedis cierra la conexión a Redis
func CloseRedis(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
