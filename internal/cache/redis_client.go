package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohankatakam/devpulse/internal/logging"
)

// keyPrefix namespaces every shared cache key
const keyPrefix = "devpulse"

// Key builds a namespaced cache key, e.g. "devpulse:kpis:all:2024-05"
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}

// RedisBackend is the shared tier for multi-instance deployments
type RedisBackend struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBackend connects to Redis and verifies connectivity
func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr missing")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Fail fast on startup
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger := logging.Component("redis")
	logger.Info("redis client connected", "addr", addr, "db", db)

	return &RedisBackend{client: client, logger: logger}, nil
}

// Close closes the Redis client connection
func (r *RedisBackend) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	r.logger.Info("redis client closed")
	return nil
}

// HealthCheck verifies Redis connectivity
func (r *RedisBackend) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Get returns the raw entry for key. A miss is not an error.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("cache miss", "key", key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}

	r.logger.Debug("cache hit", "key", key)
	return val, true, nil
}

// Set stores value under key with ttl (0 keeps it until evicted)
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}

	r.logger.Debug("cache set", "key", key, "ttl", ttl)
	return nil
}

// DeletePrefix deletes every key starting with prefix
func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := prefix + "*"

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan failed for pattern %s: %w", pattern, err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		r.logger.Debug("no keys matched pattern", "pattern", pattern)
		return 0, nil
	}

	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete failed for pattern %s: %w", pattern, err)
	}

	r.logger.Info("cache pattern delete", "pattern", pattern, "deleted", deleted)
	return deleted, nil
}
