package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "tiksound:ratelimit:"

// RedisLimiter enforces a fixed window shared by every replica using the same Redis
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// RedisConfig holds connection settings for RedisLimiter
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection with a ping
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewRedisLimiter creates a limiter on an existing client
func NewRedisLimiter(client *redis.Client, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		window: window,
		prefix: defaultKeyPrefix,
	}
}

// Allow sets the client's key only if absent. The key expires after the window,
// so a client is admitted once per window.
func (l *RedisLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+clientKey, 1, l.window).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return ok, nil
}

// Close releases the underlying connection pool
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
