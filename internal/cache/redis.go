package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/athenasec/athena/pkg/config"
	"github.com/athenasec/athena/pkg/errors"
)

// Backend is the optional distributed cache tier. Any failure must degrade
// gracefully to local-tier-only operation; callers log backend errors and
// continue.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Close() error
}

// RedisBackend implements Backend on a Redis server
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend creates a Redis-backed distributed tier and verifies the
// connection
func NewRedisBackend(cfg *config.RedisConfig) (*RedisBackend, error) {
	if cfg == nil {
		return nil, errors.NewValidationError("Redis configuration is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		PoolTimeout:     4 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,

		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewCacheBackendError("failed to connect to Redis").WithCause(err)
	}

	return &RedisBackend{
		client: client,
		prefix: cfg.KeyPrefix,
	}, nil
}

// NewRedisBackendFromClient wraps an existing client, used by tests
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) redisKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", b.prefix, key)
}

// Get implements Backend
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheBackendError("redis get failed").WithCause(err)
	}
	return data, true, nil
}

// Set implements Backend. Redis owns TTL expiry for the distributed tier.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, b.redisKey(key), value, ttl).Err(); err != nil {
		return errors.NewCacheBackendError("redis set failed").WithCause(err)
	}
	return nil
}

// Clear implements Backend, removing all keys under the configured prefix
func (b *RedisBackend) Clear(ctx context.Context) error {
	pattern := b.redisKey("*")
	iter := b.client.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.NewCacheBackendError("redis scan failed").WithCause(err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return errors.NewCacheBackendError("redis delete failed").WithCause(err)
	}
	return nil
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// Health checks the Redis connection
func (b *RedisBackend) Health(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return errors.NewCacheBackendError("redis health check failed").WithCause(err)
	}
	return nil
}
