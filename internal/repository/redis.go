package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/attestgate/internal/config"
	"github.com/redis/go-redis/v9"
)

const redisDialTimeout = 5 * time.Second

// OpenRedis connects and pings the configured Redis. Thresholds, audit lists
// and idempotency keys share this one client.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
