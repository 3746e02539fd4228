package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	SignRequests       *prometheus.CounterVec
	SignLatency        *prometheus.HistogramVec
	QRImageBytes       prometheus.Histogram
	StageFailures      *prometheus.CounterVec
	KeyRequests        prometheus.Counter
	RateLimitHits      *prometheus.CounterVec
	AuditPublishErrors prometheus.Counter

	GRPCRequests *prometheus.CounterVec
	GRPCLatency  *prometheus.HistogramVec

	HTTPActiveRequests *prometheus.GaugeVec
	HTTPRequests       *prometheus.CounterVec
	HTTPLatency        *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg. A nil reg means
// the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	ns := constants.MetricsNamespace

	return &Metrics{
		SignRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "sign_requests_total",
				Help:      "Total number of SignTicket requests by result.",
			},
			[]string{"policy", "result"},
		),
		SignLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "sign_duration_seconds",
				Help:      "Latency of the SignTicket pipeline.",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"policy"},
		),
		QRImageBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "qr_image_bytes",
				Help:      "Size of generated QR PNG images.",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 8),
			},
		),
		StageFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "stage_failures_total",
				Help:      "Failures of the signing pipeline by stage.",
			},
			[]string{"stage"},
		),
		KeyRequests: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "verification_key_requests_total",
				Help:      "Total number of verification key requests.",
			},
		),
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rate_limit_hits_total",
				Help:      "Total number of requests rejected by the rate limiter.",
			},
			[]string{"backend"},
		),
		AuditPublishErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "audit_publish_errors_total",
				Help:      "Audit events that could not be published.",
			},
		),
		GRPCRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		GRPCLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "grpc_request_duration_seconds",
				Help:      "Latency of gRPC requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		HTTPActiveRequests: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "http_active_requests",
				Help:      "In-flight ops HTTP requests.",
			},
			[]string{"path", "method"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "http_requests_total",
				Help:      "Total number of ops HTTP requests.",
			},
			[]string{"path", "method", "status"},
		),
		HTTPLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_duration_seconds",
				Help:      "Latency of ops HTTP requests.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}

// RecordGRPCRequest records one finished unary call.
func (m *Metrics) RecordGRPCRequest(method, code string, duration time.Duration) {
	m.GRPCRequests.WithLabelValues(method, code).Inc()
	m.GRPCLatency.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) ActiveRequestsInc(path, method string) {
	m.HTTPActiveRequests.WithLabelValues(path, method).Inc()
}

func (m *Metrics) ActiveRequestsDec(path, method string) {
	m.HTTPActiveRequests.WithLabelValues(path, method).Dec()
}

// ObserveRequestDuration records one finished ops HTTP request.
func (m *Metrics) ObserveRequestDuration(path, method string, status int, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(path, method).Observe(duration.Seconds())
}
