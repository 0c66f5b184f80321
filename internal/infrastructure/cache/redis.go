package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"loan-engine/internal/config"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

// NewRedisClient returns nil without error when Redis is disabled, so callers
// fall back to their in-process implementations.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*redis.Client, error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled via configuration.")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis.", "addr", cfg.Addr, "db", cfg.DB)
	return client, nil
}
