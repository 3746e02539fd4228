package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/monitoring"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

func TestObservabilityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	recorder := tracetest.NewSpanRecorder()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

	var inFlight float64
	router := gin.New()
	router.Use(ObservabilityMiddleware(tracer, m))
	router.GET("/items/:id", func(c *gin.Context) {
		inFlight = testutil.ToFloat64(m.HTTPActiveRequests.WithLabelValues("/items/:id", http.MethodGet))
		c.Status(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, float64(1), inFlight)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.HTTPActiveRequests.WithLabelValues("/items/:id", http.MethodGet)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/items/:id", http.MethodGet, "202")))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /items/:id", spans[0].Name())
}

func TestObservabilityMiddleware_NilCollaborators(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ObservabilityMiddleware(nil, nil))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen string
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(constants.ContextKeyRequestID).(string)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(constants.HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", w.Header().Get(constants.HeaderRequestID))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(constants.HeaderRequestID))
	assert.NotEqual(t, "req-1", seen)
}

func TestETagCache_IgnoresNonOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ETagCache(60))
	router.GET("/missing", func(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"error": "nope"}) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil).WithContext(context.Background()))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
	assert.JSONEq(t, `{"error":"nope"}`, w.Body.String())
}
