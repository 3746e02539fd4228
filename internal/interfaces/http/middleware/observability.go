// Package middleware holds the gin middleware of the ops HTTP listener.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// HTTPMetrics records in-flight requests and request latency.
type HTTPMetrics interface {
	ActiveRequestsInc(path, method string)
	ActiveRequestsDec(path, method string)
	ObserveRequestDuration(path, method string, status int, duration time.Duration)
}

// ObservabilityMiddleware starts a server span for each request and records
// request metrics labeled by route template. Either argument may be nil.
func ObservabilityMiddleware(tracer trace.Tracer, metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// Route template keeps label cardinality low.
		path := c.FullPath()
		if path == "" {
			path = "not_found"
		}
		method := c.Request.Method

		if tracer != nil {
			ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
			ctx, span := tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindServer))
			defer func() {
				span.SetAttributes(
					attribute.String("http.method", method),
					attribute.String("http.path", path),
					attribute.Int("http.status_code", c.Writer.Status()),
					attribute.String("http.client_ip", c.ClientIP()),
				)
				span.End()
			}()
			c.Request = c.Request.WithContext(ctx)
		}

		if metrics != nil {
			metrics.ActiveRequestsInc(path, method)
			defer metrics.ActiveRequestsDec(path, method)
		}

		c.Next()

		if metrics != nil {
			metrics.ObserveRequestDuration(path, method, c.Writer.Status(), time.Since(start))
		}
	}
}

// RequestIDMiddleware stores the caller's X-Request-ID, or a fresh one, in the
// request context and echoes it in the response.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyClientIP, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Header(constants.HeaderRequestID, requestID)
		c.Next()
	}
}

// LoggingMiddleware logs every request once it is served.
func LoggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(c.Request.Context(), "Request processed",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}
