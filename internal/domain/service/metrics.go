// Package service defines the interfaces and pure domain logic of the
// ticket signing pipeline.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics, keeping the
// application layer independent of Prometheus.
type Metrics interface {
	// RecordSignRequest records one finished SignTicket call.
	RecordSignRequest(policy, result string, duration time.Duration)

	// RecordQRImage records the size of a generated image.
	RecordQRImage(size int)

	// RecordStageFailure records a failed pipeline stage.
	RecordStageFailure(stage string)

	// RecordKeyRequest records one GetVerificationKeys call.
	RecordKeyRequest()

	// RecordRateLimitHit records a rejected request.
	RecordRateLimitHit(backend string)

	// RecordAuditPublishError records an audit event that was dropped.
	RecordAuditPublishError()
}

type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordSignRequest(string, string, time.Duration) {}
func (noopMetrics) RecordQRImage(int)                               {}
func (noopMetrics) RecordStageFailure(string)                       {}
func (noopMetrics) RecordKeyRequest()                               {}
func (noopMetrics) RecordRateLimitHit(string)                       {}
func (noopMetrics) RecordAuditPublishError()                        {}
