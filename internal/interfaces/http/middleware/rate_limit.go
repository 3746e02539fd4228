package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// RateLimitMiddleware limits requests per client IP. A nil limiter disables
// the middleware. Limiter errors let the request through.
func RateLimitMiddleware(rateLimiter service.RateLimitService, metrics service.Metrics, log logger.Logger) gin.HandlerFunc {
	if rateLimiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if metrics == nil {
		metrics = service.NewNoopMetrics()
	}
	return func(c *gin.Context) {
		identifier := c.ClientIP()
		allowed, remaining, resetAt, err := rateLimiter.Allow(c.Request.Context(), service.RateLimitDimensionIP, identifier)
		if err != nil {
			log.Error(c.Request.Context(), "rate limiter failed", err)
			c.Next() // Fail open
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			metrics.RecordRateLimitHit(rateLimiter.Backend())
			log.Warn(c.Request.Context(), "rate limit exceeded",
				logger.String("identifier", identifier),
				logger.String("path", c.FullPath()),
			)
			c.Header("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}

		c.Next()
	}
}
