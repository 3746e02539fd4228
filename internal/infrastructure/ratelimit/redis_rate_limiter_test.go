package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	redisconn "github.com/ScalabilityIssues/validation-service/internal/infrastructure/redis"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

func newTestRedisLimiter(t *testing.T, fallback bool) (*RedisRateLimiter, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rl, err := NewRedisRateLimiter(client, &RateLimiterConfig{
		Capacity:            3,
		RefillPerSecond:     1,
		EnableLocalFallback: fallback,
		KeyPrefix:           "test:rl:",
	}, logger.NewNoopLogger())
	require.NoError(t, err)

	clock := newFakeClock()
	rl.now = clock.Now
	return rl, s, clock
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	rl, s, clock := newTestRedisLimiter(t, false)
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		allowed, remaining, _, err := rl.Allow(ctx, service.RateLimitDimensionIP, "127.0.0.1")
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, want, remaining)
	}

	allowed, remaining, resetAt, err := rl.Allow(ctx, service.RateLimitDimensionIP, "127.0.0.1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Equal(t, clock.Now().Add(3*time.Second), resetAt)
	assert.True(t, s.Exists("test:rl:ip:127.0.0.1"))

	clock.Advance(time.Second)
	allowed, _, _, err = rl.Allow(ctx, service.RateLimitDimensionIP, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, allowed, "one token refilled after a second")

	allowed, _, _, err = rl.Allow(ctx, service.RateLimitDimensionIP, "127.0.0.2")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisRateLimiter_ResetLimit(t *testing.T) {
	rl, s, _ := newTestRedisLimiter(t, false)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _, _, err := rl.Allow(ctx, service.RateLimitDimensionIP, "peer")
		require.NoError(t, err)
	}
	require.NoError(t, rl.ResetLimit(ctx, service.RateLimitDimensionIP, "peer"))
	assert.False(t, s.Exists("test:rl:ip:peer"))

	allowed, remaining, _, err := rl.Allow(ctx, service.RateLimitDimensionIP, "peer")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2, remaining)
}

func TestRedisRateLimiter_RedisDown(t *testing.T) {
	t.Run("falls back to local buckets", func(t *testing.T) {
		rl, s, _ := newTestRedisLimiter(t, true)
		s.Close()

		allowed, _, _, err := rl.Allow(context.Background(), service.RateLimitDimensionIP, "peer")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("reports unavailable without fallback", func(t *testing.T) {
		rl, s, _ := newTestRedisLimiter(t, false)
		s.Close()

		allowed, _, _, err := rl.Allow(context.Background(), service.RateLimitDimensionIP, "peer")
		assert.False(t, allowed)
		assert.True(t, errors.IsCode(err, errors.CodeUnavailable))
	})
}

func TestNewRedisRateLimiter_RequiresClient(t *testing.T) {
	_, err := NewRedisRateLimiter(nil, nil, logger.NewNoopLogger())
	assert.Error(t, err)
}

func TestNewRateLimitService(t *testing.T) {
	log := logger.NewNoopLogger()

	cfg := &config.Config{}
	svc, err := NewRateLimitService(cfg, nil, log)
	require.NoError(t, err)
	assert.Nil(t, svc, "disabled")

	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Backend: "memory", RequestsPerMinute: 60, Burst: 5}
	svc, err = NewRateLimitService(cfg, nil, log)
	require.NoError(t, err)
	assert.Equal(t, "memory", svc.Backend())

	cfg.RateLimit.Backend = "redis"
	_, err = NewRateLimitService(cfg, nil, log)
	assert.Error(t, err, "redis backend without a connection")

	s := miniredis.RunT(t)
	cfg.Redis = config.RedisConfig{Address: s.Addr(), KeyPrefix: "validation:ratelimit:"}
	conn := redisconn.NewRedisConnection(&cfg.Redis, log)
	require.NoError(t, conn.Connect(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })

	svc, err = NewRateLimitService(cfg, conn, log)
	require.NoError(t, err)
	assert.Equal(t, "redis", svc.Backend())

	allowed, _, _, err := svc.Allow(context.Background(), service.RateLimitDimensionGlobal, "all")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, s.Exists("validation:ratelimit:global:all"))

	cfg.RateLimit.Backend = "memcached"
	_, err = NewRateLimitService(cfg, nil, log)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
}
