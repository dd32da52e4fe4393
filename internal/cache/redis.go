package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/backroom-io/backroom/internal/core"
)

// RedisCache implements core.Cache using a single-node Redis.
type RedisCache struct {
	client *redis.Client
	closed bool
}

// NewRedisCache connects to Redis and verifies the connection with a ping.
func NewRedisCache(endpoints []string, password string, db, poolSize, minIdleConns int, dialTimeout, readTimeout, writeTimeout time.Duration) (*RedisCache, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one endpoint is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         endpoints[0],
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a payload by key. A missing key is core.ErrCacheMiss.
func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if r.closed {
		return nil, fmt.Errorf("cache is closed")
	}
	payload, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("key %s: %w", key, core.ErrCacheMiss)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return payload, nil
}

// Set stores a payload under key with an optional TTL.
func (r *RedisCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if r.closed {
		return fmt.Errorf("cache is closed")
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	zap.S().Debugw("cache: stored payload", "backend", "redis", "key", key, "bytes", len(payload), "ttl", ttl)
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if r.closed {
		return fmt.Errorf("cache is closed")
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

// RedisFactory creates Redis caches.
type RedisFactory struct{}

// Type returns the backend identifier.
func (f *RedisFactory) Type() string {
	return "redis"
}

// Validate checks the Redis-specific configuration.
func (f *RedisFactory) Validate(config Config) error {
	if config.Type != "redis" {
		return fmt.Errorf("invalid type for Redis factory: %s", config.Type)
	}
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required for Redis")
	}
	if config.DB < 0 || config.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15, got: %d", config.DB)
	}
	if config.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be greater than 0, got: %d", config.PoolSize)
	}
	if config.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns must be non-negative, got: %d", config.MinIdleConns)
	}
	if config.DialTimeout <= 0 || config.ReadTimeout <= 0 || config.WriteTimeout <= 0 {
		return fmt.Errorf("dial, read and write timeouts must all be greater than 0")
	}
	return nil
}

// Create builds a Redis cache from the configuration.
func (f *RedisFactory) Create(config Config) (core.Cache, error) {
	c, err := NewRedisCache(
		config.Endpoints,
		config.Password,
		config.DB,
		config.PoolSize,
		config.MinIdleConns,
		time.Duration(config.DialTimeout),
		time.Duration(config.ReadTimeout),
		time.Duration(config.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cache: %w", err)
	}
	return c, nil
}

func init() {
	RegisterFactory(&RedisFactory{})
}
