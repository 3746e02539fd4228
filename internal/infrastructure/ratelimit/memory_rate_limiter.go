package ratelimit

import (
	"context"
	"time"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	redisconn "github.com/ScalabilityIssues/validation-service/internal/infrastructure/redis"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

var _ service.RateLimitService = (*MemoryRateLimiter)(nil)

// MemoryRateLimiter keeps one token bucket per key in process memory.
type MemoryRateLimiter struct {
	pool *TokenBucketPool
}

// NewMemoryRateLimiter creates a limiter with capacity burst refilled at
// perMinute tokens per minute.
func NewMemoryRateLimiter(perMinute, burst int) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		pool: NewTokenBucketPool(TokenBucketConfig{
			Capacity: float64(burst),
			Rate:     float64(perMinute) / 60.0,
		}, 0),
	}
}

// Allow implements service.RateLimitService.
func (l *MemoryRateLimiter) Allow(_ context.Context, dimension service.RateLimitDimension, key string) (bool, int, time.Time, error) {
	allowed, remaining, resetAt := l.pool.GetOrCreate(string(dimension) + ":" + key).Take()
	return allowed, remaining, resetAt, nil
}

// Backend implements service.RateLimitService.
func (l *MemoryRateLimiter) Backend() string {
	return string(constants.RateLimitBackendMemory)
}

// NewRateLimitService builds the limiter selected by cfg. It returns nil when
// rate limiting is disabled. For the redis backend, conn must be connected.
func NewRateLimitService(cfg *config.Config, conn *redisconn.RedisConnection, log logger.Logger) (service.RateLimitService, error) {
	if !cfg.RateLimit.Enabled {
		return nil, nil
	}
	switch constants.RateLimitBackend(cfg.RateLimit.Backend) {
	case constants.RateLimitBackendMemory, "":
		return NewMemoryRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst), nil
	case constants.RateLimitBackendRedis:
		if conn == nil || conn.GetClient() == nil {
			return nil, errors.ErrInternal("redis rate limiter requires a redis connection")
		}
		rl, err := NewRedisRateLimiter(conn.GetClient(), RateLimiterConfigFrom(&cfg.RateLimit, &cfg.Redis), log)
		if err != nil {
			return nil, err
		}
		return rl, nil
	default:
		return nil, errors.ErrInvalidArgument("unknown rate limit backend " + cfg.RateLimit.Backend)
	}
}
