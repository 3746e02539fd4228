package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsAdapter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	a := NewMetricsAdapter(m)

	a.RecordSignRequest("claims", "ok", 3*time.Millisecond)
	a.RecordSignRequest("claims", "ok", time.Millisecond)
	a.RecordSignRequest("claims", "invalid_argument", time.Millisecond)
	a.RecordStageFailure("encode")
	a.RecordQRImage(812)
	a.RecordKeyRequest()
	a.RecordRateLimitHit("memory")
	a.RecordAuditPublishError()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignRequests.WithLabelValues("claims", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignRequests.WithLabelValues("claims", "invalid_argument")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageFailures.WithLabelValues("encode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeyRequests))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("memory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditPublishErrors))
	assert.Equal(t, 1, testutil.CollectAndCount(m.QRImageBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(m.StageFailures, "validation_stage_failures_total"))
}

func TestMetrics_HTTPAndGRPC(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ActiveRequestsInc("/health", "GET")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPActiveRequests.WithLabelValues("/health", "GET")))
	m.ActiveRequestsDec("/health", "GET")
	m.ObserveRequestDuration("/health", "GET", 200, time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPActiveRequests.WithLabelValues("/health", "GET")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/health", "GET", "200")))

	m.RecordGRPCRequest("/validationsvc.Validation/SignTicket", "OK", time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GRPCRequests.WithLabelValues("/validationsvc.Validation/SignTicket", "OK")))
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics(prometheus.NewRegistry())
		NewMetrics(prometheus.NewRegistry())
	})
}
