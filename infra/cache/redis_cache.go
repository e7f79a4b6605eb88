package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kichcoin/ledger/pkg/domain"
	"github.com/redis/go-redis/v9"
)

const latestKey = "latest"

// RedisRateCache implements RateCache using Redis.
type RedisRateCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisRateCache creates a RedisRateCache from a redis URL.
func NewRedisRateCache(url, prefix string, logger *slog.Logger) (*RedisRateCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisRateCacheWithOptions(opt, prefix, logger), nil
}

// NewRedisRateCacheWithOptions creates a new RedisRateCache from redis.Options.
func NewRedisRateCacheWithOptions(
	opt *redis.Options,
	prefix string,
	logger *slog.Logger,
) *RedisRateCache {
	return NewRedisRateCacheWithClient(redis.NewClient(opt), prefix, logger)
}

// NewRedisRateCacheWithClient wraps an existing client.
func NewRedisRateCacheWithClient(
	client redis.UniversalClient,
	prefix string,
	logger *slog.Logger,
) *RedisRateCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisRateCache{client: client, prefix: prefix, logger: logger}
}

func (r *RedisRateCache) key() string {
	return r.prefix + latestKey
}

// Ping checks the connection.
func (r *RedisRateCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRateCache) Get(ctx context.Context) (*domain.ExchangeRates, error) {
	val, err := r.client.Get(ctx, r.key()).Result()
	if errors.Is(err, redis.Nil) {
		r.logger.Debug("Redis cache miss", "key", r.key())
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Redis cache get error", "key", r.key(), "error", err)
		return nil, err
	}
	var rates domain.ExchangeRates
	if err := json.Unmarshal([]byte(val), &rates); err != nil {
		r.logger.Error("Redis cache unmarshal error", "key", r.key(), "error", err)
		return nil, err
	}
	r.logger.Debug("Redis cache hit", "key", r.key(), "source", rates.Source)
	return &rates, nil
}

func (r *RedisRateCache) Set(ctx context.Context, rates *domain.ExchangeRates, ttl time.Duration) error {
	data, err := json.Marshal(rates)
	if err != nil {
		r.logger.Error("Redis cache marshal error", "key", r.key(), "error", err)
		return err
	}
	if err := r.client.Set(ctx, r.key(), data, ttl).Err(); err != nil {
		r.logger.Error("Redis cache set error", "key", r.key(), "error", err)
		return err
	}
	r.logger.Debug("Redis cache set", "key", r.key(), "ttl", ttl)
	return nil
}

func (r *RedisRateCache) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		r.logger.Error("Redis cache delete error", "key", r.key(), "error", err)
		return err
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisRateCache) Close() error {
	return r.client.Close()
}
