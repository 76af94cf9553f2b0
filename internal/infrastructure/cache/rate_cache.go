// Package cache provides caching decorators for reference data reads.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	procurementapp "github.com/corpelima/backend/internal/application/procurement"
)

// rateCacheKey holds the single cached latest-rate value.
const rateCacheKey = "procurement:exchange_rate:latest"

type cachedRate struct {
	Sell string    `json:"sell"`
	Date time.Time `json:"date"`
}

// RedisRateCache decorates a RateSource with a Redis-backed cache so the
// consolidation handler does not hit the rate table on every event. Cache
// failures degrade to the inner source, never to an error.
type RedisRateCache struct {
	client *redis.Client
	inner  procurementapp.RateSource
	ttl    time.Duration
	logger *zap.Logger
}

// Ensure RedisRateCache implements the rate source port
var _ procurementapp.RateSource = (*RedisRateCache)(nil)

// NewRedisRateCache creates a RedisRateCache around an existing client.
func NewRedisRateCache(client *redis.Client, inner procurementapp.RateSource, ttl time.Duration, logger *zap.Logger) *RedisRateCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRateCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		logger: logger.Named("rate_cache"),
	}
}

// NewRedisClient builds a Redis client from connection settings and
// verifies the connection.
func NewRedisClient(host string, port int, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// LatestRate serves from cache when possible, falling through to the inner
// source and repopulating on miss.
func (c *RedisRateCache) LatestRate(ctx context.Context) (decimal.Decimal, time.Time, error) {
	raw, err := c.client.Get(ctx, rateCacheKey).Result()
	if err == nil {
		var cached cachedRate
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			if sell, err := decimal.NewFromString(cached.Sell); err == nil {
				return sell, cached.Date, nil
			}
		}
		c.logger.Warn("Dropping unreadable cached rate")
	} else if err != redis.Nil {
		c.logger.Warn("Rate cache read failed", zap.Error(err))
	}

	sell, date, err := c.inner.LatestRate(ctx)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}

	payload, _ := json.Marshal(cachedRate{Sell: sell.String(), Date: date})
	if err := c.client.Set(ctx, rateCacheKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Rate cache write failed", zap.Error(err))
	}
	return sell, date, nil
}

// Invalidate drops the cached rate, for use after a new rate is published.
func (c *RedisRateCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, rateCacheKey).Err()
}
