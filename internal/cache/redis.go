package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"corrboard/internal/domain"
)

var _ Store = (*Redis)(nil)

// RedisConfig holds connection parameters for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores price matrices as JSON strings with an expiry.
//
// Key schema:
//
//	corrboard:prices:{tickers}|{period}|{interval} - JSON PriceMatrix
type Redis struct {
	rdb *redis.Client
}

// DialRedis connects to Redis and pings it to verify connectivity.
func DialRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Get returns the decoded matrix, or ok=false when the key is absent.
func (c *Redis) Get(ctx context.Context, key string) (*domain.PriceMatrix, bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis: get %s: %w", key, err)
	}

	var m domain.PriceMatrix
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return &m, true, nil
}

// Set stores m as JSON. Redis treats a zero expiry as persistent.
func (c *Redis) Set(ctx context.Context, key string, m *domain.PriceMatrix, ttl time.Duration) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Redis) Close() error {
	return c.rdb.Close()
}
