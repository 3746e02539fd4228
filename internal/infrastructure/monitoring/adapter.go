package monitoring

import (
	"time"

	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
)

// MetricsAdapter implements the domain's service.Metrics interface on top of
// the Prometheus collectors.
type MetricsAdapter struct {
	metrics *Metrics
}

// NewMetricsAdapter wraps metrics so that domain and application code never
// touch Prometheus types.
func NewMetricsAdapter(metrics *Metrics) service.Metrics {
	return &MetricsAdapter{metrics: metrics}
}

func (a *MetricsAdapter) RecordSignRequest(policy, result string, duration time.Duration) {
	a.metrics.SignRequests.WithLabelValues(policy, result).Inc()
	a.metrics.SignLatency.WithLabelValues(policy).Observe(duration.Seconds())
}

func (a *MetricsAdapter) RecordQRImage(size int) {
	a.metrics.QRImageBytes.Observe(float64(size))
}

func (a *MetricsAdapter) RecordStageFailure(stage string) {
	a.metrics.StageFailures.WithLabelValues(stage).Inc()
}

func (a *MetricsAdapter) RecordKeyRequest() {
	a.metrics.KeyRequests.Inc()
}

func (a *MetricsAdapter) RecordRateLimitHit(backend string) {
	a.metrics.RateLimitHits.WithLabelValues(backend).Inc()
}

func (a *MetricsAdapter) RecordAuditPublishError() {
	a.metrics.AuditPublishErrors.Inc()
}
