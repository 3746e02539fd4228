package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

var _ service.RateLimitService = (*RedisRateLimiter)(nil)

// RedisRateLimiter shares token buckets between instances through Redis.
type RedisRateLimiter struct {
	client       redis.UniversalClient
	logger       logger.Logger
	config       *RateLimiterConfig
	localBuckets *TokenBucketPool // Fallback for Redis failures
	now          func() time.Time
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	// Capacity is the bucket size, the largest burst allowed
	Capacity int64
	// RefillPerSecond is the sustained request rate
	RefillPerSecond float64
	// EnableLocalFallback serves from in-process buckets while Redis is down
	EnableLocalFallback bool
	// KeyPrefix is the Redis key prefix
	KeyPrefix string
}

// RateLimiterConfigFrom derives the limiter settings from configuration.
func RateLimiterConfigFrom(rl *config.RateLimitConfig, redisCfg *config.RedisConfig) *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:            int64(rl.Burst),
		RefillPerSecond:     float64(rl.RequestsPerMinute) / 60.0,
		EnableLocalFallback: true,
		KeyPrefix:           redisCfg.KeyPrefix,
	}
}

// Atomic token bucket: refill by elapsed time, then try to take the tokens.
const tokenBucketLuaScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(tokens + elapsed * rate / 1000, capacity)

local allowed = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
end

local reset_ms = 0
if tokens < capacity then
    reset_ms = math.ceil((capacity - tokens) / rate * 1000)
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', key, reset_ms + 60000)

return {allowed, math.floor(tokens), reset_ms}
`

var tokenBucketScript = redis.NewScript(tokenBucketLuaScript)

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, cfg *RateLimiterConfig, log logger.Logger) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, errors.ErrInvalidArgument("redis client is required")
	}
	if cfg == nil {
		cfg = DefaultRateLimiterConfig()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = constants.DefaultRateLimitBurst
	}
	if cfg.RefillPerSecond <= 0 {
		cfg.RefillPerSecond = float64(constants.DefaultRateLimitPerMinute) / 60.0
	}

	rl := &RedisRateLimiter{
		client: client,
		logger: log.WithComponent("RedisRateLimiter"),
		config: cfg,
		now:    time.Now,
	}
	if cfg.EnableLocalFallback {
		rl.localBuckets = NewTokenBucketPool(TokenBucketConfig{
			Capacity: float64(cfg.Capacity),
			Rate:     cfg.RefillPerSecond,
		}, 0)
	}

	rl.logger.Info(context.Background(), "Redis rate limiter initialized",
		logger.Int64("capacity", cfg.Capacity),
		logger.Float64("refill_per_second", cfg.RefillPerSecond),
		logger.Bool("local_fallback", cfg.EnableLocalFallback),
	)
	return rl, nil
}

// DefaultRateLimiterConfig returns default rate limiter configuration.
func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Capacity:            constants.DefaultRateLimitBurst,
		RefillPerSecond:     float64(constants.DefaultRateLimitPerMinute) / 60.0,
		EnableLocalFallback: true,
		KeyPrefix:           "validation:ratelimit:",
	}
}

// Allow checks if a request is allowed under the rate limit.
func (rl *RedisRateLimiter) Allow(ctx context.Context, dimension service.RateLimitDimension, key string) (bool, int, time.Time, error) {
	redisKey := rl.buildKey(dimension, key)
	now := rl.now()

	allowed, remaining, resetMs, err := rl.run(ctx, redisKey, now)
	if err != nil {
		if rl.localBuckets != nil {
			rl.logger.Warn(ctx, "Redis rate limiter unavailable, using local bucket",
				logger.Err(err),
				logger.String("key", redisKey),
			)
			ok, rem, resetAt := rl.localBuckets.GetOrCreate(redisKey).Take()
			return ok, rem, resetAt, nil
		}
		return false, 0, time.Time{}, errors.ErrUnavailable("rate limiter unavailable").WithCause(err)
	}
	return allowed, remaining, now.Add(time.Duration(resetMs) * time.Millisecond), nil
}

// Backend implements service.RateLimitService.
func (rl *RedisRateLimiter) Backend() string {
	return string(constants.RateLimitBackendRedis)
}

// ResetLimit forgets the bucket of key.
func (rl *RedisRateLimiter) ResetLimit(ctx context.Context, dimension service.RateLimitDimension, key string) error {
	redisKey := rl.buildKey(dimension, key)
	if err := rl.client.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return errors.ErrUnavailable("failed to reset rate limit").WithCause(err)
	}
	if rl.localBuckets != nil {
		rl.localBuckets.Remove(redisKey)
	}
	rl.logger.Debug(ctx, "Rate limit reset", logger.String("key", redisKey))
	return nil
}

func (rl *RedisRateLimiter) run(ctx context.Context, key string, now time.Time) (bool, int, int64, error) {
	res, err := tokenBucketScript.Run(ctx, rl.client, []string{key},
		rl.config.Capacity, rl.config.RefillPerSecond, 1, now.UnixMilli()).Result()
	if err != nil {
		return false, 0, 0, err
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected rate limit script result %T", res)
	}
	nums := make([]int64, len(values))
	for i, v := range values {
		n, ok := v.(int64)
		if !ok {
			return false, 0, 0, fmt.Errorf("unexpected rate limit script value %T", v)
		}
		nums[i] = n
	}
	return nums[0] == 1, int(nums[1]), nums[2], nil
}

// buildKey builds a Redis key for rate limiting.
func (rl *RedisRateLimiter) buildKey(dimension service.RateLimitDimension, key string) string {
	return fmt.Sprintf("%s%s:%s", rl.config.KeyPrefix, dimension, key)
}

// Close releases the local fallback buckets.
func (rl *RedisRateLimiter) Close() error {
	if rl.localBuckets != nil {
		rl.localBuckets.Clear()
	}
	rl.logger.Info(context.Background(), "Redis rate limiter closed")
	return nil
}
