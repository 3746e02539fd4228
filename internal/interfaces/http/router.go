// Package http serves the ops endpoints: health probes, Prometheus metrics,
// the verification key set and optionally pprof.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/ScalabilityIssues/validation-service/internal/config"
	domainService "github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/internal/interfaces/http/handlers"
	"github.com/ScalabilityIssues/validation-service/internal/interfaces/http/middleware"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// KeysPath is where the verification key set is served.
const KeysPath = "/.well-known/verification-keys.json"

// jwksMaxAge is the Cache-Control max-age of the key set, in seconds.
const jwksMaxAge = 300

// RouterDeps groups the collaborators of the router. Nil optional fields
// disable the corresponding feature.
type RouterDeps struct {
	Health *handlers.HealthHandler
	Keys   *handlers.KeysHandler

	// Gatherer backs /metrics. Nil means the default registry.
	Gatherer    prometheus.Gatherer
	HTTPMetrics middleware.HTTPMetrics
	Metrics     domainService.Metrics
	Tracer      trace.Tracer
	RateLimiter domainService.RateLimitService
}

// Router is the ops HTTP server.
type Router struct {
	engine *gin.Engine
	config *config.HTTPConfig
	logger logger.Logger
	deps   RouterDeps
	server *http.Server
}

// NewRouter creates the router and registers every route.
func NewRouter(cfg *config.HTTPConfig, deps RouterDeps, log logger.Logger) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := &Router{
		engine: gin.New(),
		config: cfg,
		logger: log.WithComponent("http"),
		deps:   deps,
	}
	if err := r.engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		r.logger.Warn(context.Background(), "Ignoring invalid trusted proxies", logger.Err(err))
		_ = r.engine.SetTrustedProxies(nil)
	}
	r.setupRoutes()
	r.server = &http.Server{
		Handler:           r.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return r
}

func (r *Router) setupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestIDMiddleware())
	r.engine.Use(middleware.ObservabilityMiddleware(r.deps.Tracer, r.deps.HTTPMetrics))
	r.engine.Use(middleware.LoggingMiddleware(r.logger))

	if r.deps.Health != nil {
		r.engine.GET("/health", r.deps.Health.HealthCheck)
		r.engine.GET("/ready", r.deps.Health.ReadinessCheck)
		r.engine.GET("/live", r.deps.Health.LivenessCheck)
	}

	gatherer := r.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	if r.deps.Keys != nil {
		corsConfig := cors.Config{
			AllowMethods:  []string{http.MethodGet, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "If-None-Match", "X-Request-ID"},
			ExposeHeaders: []string{"ETag", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		}
		if len(r.config.AllowedOrigins) == 0 || slices.Contains(r.config.AllowedOrigins, "*") {
			corsConfig.AllowAllOrigins = true
		} else {
			corsConfig.AllowOrigins = r.config.AllowedOrigins
		}
		corsMiddleware := cors.New(corsConfig)
		r.engine.OPTIONS(KeysPath, corsMiddleware)
		r.engine.GET(KeysPath,
			corsMiddleware,
			middleware.RateLimitMiddleware(r.deps.RateLimiter, r.deps.Metrics, r.logger),
			middleware.ETagCache(jwksMaxAge),
			r.deps.Keys.GetJWKS,
		)
	}

	if r.config.PProf {
		pprof.Register(r.engine)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":             "not_found",
			"error_description": "The requested resource was not found",
		})
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Serve serves on lis until Stop is called. Stop before Serve makes Serve
// return immediately.
func (r *Router) Serve(lis net.Listener) error {
	r.logger.Info(context.Background(), "Starting ops HTTP server", logger.String("address", lis.Addr().String()))

	if err := r.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (r *Router) ListenAndServe() error {
	lis, err := net.Listen("tcp", r.config.Addr())
	if err != nil {
		return err
	}
	return r.Serve(lis)
}

// Stop gracefully shuts the server down.
func (r *Router) Stop(ctx context.Context) error {
	r.logger.Info(ctx, "Stopping ops HTTP server")
	return r.server.Shutdown(ctx)
}
