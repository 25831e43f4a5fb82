package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/santiagomg2003-png/motor-credito/internal/domain"
)

const keyPrefix = "motor:"

// slidingIncrement trims hits older than the window, records this one and
// returns the hits left. ARGV: now in ms, window in ms, unique member.
var slidingIncrement = redis.NewScript(`
	redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', tonumber(ARGV[1]) - tonumber(ARGV[2]))
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[3])
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return redis.call('ZCARD', KEYS[1])
`)

// RedisCache implements Cache using Redis.
// Used as the Pro tier cache and as L2 in two-phase caching.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Get retrieves a value from Redis.
func (c *RedisCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}

	val, err := c.client.Get(ctx, redisKey(tenantID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// Set stores a value in Redis with TTL.
func (c *RedisCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	return c.client.Set(ctx, redisKey(tenantID, key), value, ttl).Err()
}

// Delete removes a value from Redis.
func (c *RedisCache) Delete(ctx context.Context, tenantID string, key string) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	return c.client.Del(ctx, redisKey(tenantID, key)).Err()
}

// GetBureauReport retrieves a cached bureau report.
func (c *RedisCache) GetBureauReport(ctx context.Context, tenantID string, documentNumber string) (*domain.BureauReport, error) {
	return getBureauReport(ctx, c, tenantID, documentNumber)
}

// SetBureauReport caches a bureau report.
func (c *RedisCache) SetBureauReport(ctx context.Context, tenantID string, documentNumber string, report *domain.BureauReport, ttl time.Duration) error {
	return setBureauReport(ctx, c, tenantID, documentNumber, report, ttl)
}

// IncrementCounter atomically records a hit in a sliding-window counter
// kept as a sorted set scored by hit time.
func (c *RedisCache) IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error) {
	if tenantID == "" {
		return 0, ErrTenantRequired
	}

	args := []any{time.Now().UnixMilli(), window.Milliseconds(), uuid.NewString()}
	return slidingIncrement.Run(ctx, c.client, []string{redisKey(tenantID, "counter:"+key)}, args...).Int64()
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func redisKey(tenantID, key string) string {
	return keyPrefix + tenantID + ":" + key
}
