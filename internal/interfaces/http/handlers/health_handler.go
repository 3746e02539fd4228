// Package handlers holds the gin handlers of the ops HTTP listener.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	ready   func() bool
	timeout time.Duration
	log     logger.Logger
}

// NewHealthHandler creates a new HealthHandler. ready reports whether the
// service accepts signing traffic; nil means always ready.
func NewHealthHandler(ready func() bool, log logger.Logger) *HealthHandler {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &HealthHandler{
		checks:  make(map[string]CheckFunc),
		ready:   ready,
		timeout: 2 * time.Second,
		log:     log.WithComponent("health"),
	}
}

// AddCheck registers a dependency probe under name.
func (h *HealthHandler) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// HealthCheck runs every dependency probe and reports 503 if any fails.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	checks, ok := h.performChecks(c.Request.Context())
	h.respond(c, ok, checks)
}

// ReadinessCheck is HealthCheck plus the serving state of the service.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	checks, ok := h.performChecks(c.Request.Context())
	if h.ready() {
		checks["serving"] = "ok"
	} else {
		checks["serving"] = "not serving"
		ok = false
	}
	h.respond(c, ok, checks)
}

// LivenessCheck reports that the process is up.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (h *HealthHandler) respond(c *gin.Context, ok bool, checks map[string]string) {
	status, httpStatus := "healthy", http.StatusOK
	if !ok {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (h *HealthHandler) performChecks(ctx context.Context) (map[string]string, bool) {
	h.mu.RLock()
	checkers := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checkers[name] = fn
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		all = true
	)
	results := make(map[string]string, len(checkers))
	wg.Add(len(checkers))
	for name, fn := range checkers {
		go func(name string, fn CheckFunc) {
			defer wg.Done()
			status := "ok"
			if err := fn(ctx); err != nil {
				status = "error: " + err.Error()
				h.log.Warn(ctx, "Health check failed", logger.String("check", name), logger.Err(err))
			}
			mu.Lock()
			results[name] = status
			if status != "ok" {
				all = false
			}
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return results, all
}
