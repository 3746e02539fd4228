package service

import (
	"context"
	"time"
)

// RateLimitDimension defines the logical type of rate limiting.
type RateLimitDimension string

const (
	RateLimitDimensionIP     RateLimitDimension = "ip"     // Per-caller limit
	RateLimitDimensionGlobal RateLimitDimension = "global" // Whole instance limit
)

//go:generate mockery --name RateLimitService --output mocks --outpkg mocks
// RateLimitService defines the interface for rate limiting operations.
type RateLimitService interface {
	// Allow checks whether one more request for key is allowed. It returns the
	// number of remaining requests and when the bucket is full again.
	Allow(ctx context.Context, dimension RateLimitDimension, key string) (allowed bool, remaining int, resetAt time.Time, err error)

	// Backend names the store behind the limiter, for metrics.
	Backend() string
}
