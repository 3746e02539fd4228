// Package ratelimit provides the in-memory and Redis backed request limiters.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

// TokenBucket implements the token bucket algorithm for rate limiting.
// It is safe for concurrent use.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64   // Maximum number of tokens
	tokens     float64   // Current number of tokens
	rate       float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	now        func() time.Time
}

// TokenBucketConfig holds configuration for creating a token bucket.
type TokenBucketConfig struct {
	// Capacity is the maximum number of tokens the bucket can hold
	Capacity float64
	// Rate is the number of tokens added per second
	Rate float64
}

// NewTokenBucket creates a full token bucket with the given capacity and
// refill rate per second.
func NewTokenBucket(capacity, rate float64) *TokenBucket {
	return newTokenBucket(capacity, rate, time.Now)
}

func newTokenBucket(capacity, rate float64, now func() time.Time) *TokenBucket {
	if capacity <= 0 {
		capacity = float64(constants.DefaultRateLimitBurst)
	}
	if rate <= 0 {
		rate = float64(constants.DefaultRateLimitPerMinute) / 60.0
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		rate:       rate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow attempts to consume one token from the bucket.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1.0)
}

// AllowN attempts to consume n tokens from the bucket.
func (tb *TokenBucket) AllowN(n float64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}
	return false
}

// Take consumes one token if available and reports the remaining whole tokens
// and when the bucket will be full again.
func (tb *TokenBucket) Take() (allowed bool, remaining int, resetAt time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= 1 {
		tb.tokens--
		allowed = true
	}
	missing := tb.capacity - tb.tokens
	resetAt = tb.lastRefill.Add(time.Duration(missing / tb.rate * float64(time.Second)))
	return allowed, int(math.Floor(tb.tokens)), resetAt
}

// refill adds tokens based on elapsed time. Must be called with lock held.
func (tb *TokenBucket) refill() {
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(tb.tokens+elapsed*tb.rate, tb.capacity)
	}
	tb.lastRefill = now
}

// Available returns the current number of tokens available.
func (tb *TokenBucket) Available() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

// Capacity returns the maximum capacity of the bucket.
func (tb *TokenBucket) Capacity() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.capacity
}

// TimeUntilAvailable returns the duration until n tokens will be available.
func (tb *TokenBucket) TimeUntilAvailable(n float64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens >= n {
		return 0
	}
	return time.Duration((n - tb.tokens) / tb.rate * float64(time.Second))
}

// TokenBucketPool keeps one bucket per key. Buckets idle for longer than the
// pool's idle timeout are evicted and start full on next use.
type TokenBucketPool struct {
	mu      sync.Mutex
	buckets *cache.Cache
	config  TokenBucketConfig
	now     func() time.Time
}

// NewTokenBucketPool creates a new token bucket pool.
func NewTokenBucketPool(config TokenBucketConfig, idleTimeout time.Duration) *TokenBucketPool {
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	return &TokenBucketPool{
		buckets: cache.New(idleTimeout, idleTimeout/2),
		config:  config,
		now:     time.Now,
	}
}

// GetOrCreate returns the bucket for key, creating it if needed. Every call
// renews the idle timeout of the bucket.
func (p *TokenBucketPool) GetOrCreate(key string) *TokenBucket {
	p.mu.Lock()
	defer p.mu.Unlock()

	if v, ok := p.buckets.Get(key); ok {
		bucket := v.(*TokenBucket)
		p.buckets.SetDefault(key, bucket)
		return bucket
	}
	bucket := newTokenBucket(p.config.Capacity, p.config.Rate, p.now)
	p.buckets.SetDefault(key, bucket)
	return bucket
}

// Remove removes a bucket from the pool.
func (p *TokenBucketPool) Remove(key string) {
	p.buckets.Delete(key)
}

// Size returns the number of buckets in the pool.
func (p *TokenBucketPool) Size() int {
	return p.buckets.ItemCount()
}

// Clear removes all buckets from the pool.
func (p *TokenBucketPool) Clear() {
	p.buckets.Flush()
}
