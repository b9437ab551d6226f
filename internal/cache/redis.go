package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/mroshb/anonchat_bot/internal/config"
	"github.com/mroshb/anonchat_bot/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Connect opens the Redis connection backing the matchmaking pool.
func Connect(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connected successfully", "addr", cfg.RedisAddr)
	return client, nil
}
