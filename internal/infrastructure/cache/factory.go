package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/beizaplus/commerce-sync/internal/domain/shared"
	"github.com/beizaplus/commerce-sync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

// NewIdempotencyStore returns a Redis store when redis.host is configured and
// reachable, and the in-memory store otherwise. With requireRedis set an
// unreachable Redis is an error instead of a fallback.
func NewIdempotencyStore(cfg config.RedisConfig, requireRedis bool, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if cfg.Host == "" {
		if requireRedis {
			return nil, fmt.Errorf("redis.host is required")
		}
		logger.Info("Redis not configured, using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if requireRedis {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
		}
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
			"duplicate webhook deliveries are only suppressed per instance",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(), nil
	}

	logger.Info("Using Redis idempotency store", zap.String("addr", cfg.Addr()))
	return NewRedisIdempotencyStore(client, DefaultKeyPrefix), nil
}
