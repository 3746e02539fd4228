package mocks

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordSignRequest(policy, result string, duration time.Duration) {
	m.Called(policy, result, duration)
}

func (m *MockMetrics) RecordQRImage(size int) {
	m.Called(size)
}

func (m *MockMetrics) RecordStageFailure(stage string) {
	m.Called(stage)
}

func (m *MockMetrics) RecordKeyRequest() {
	m.Called()
}

func (m *MockMetrics) RecordRateLimitHit(backend string) {
	m.Called(backend)
}

func (m *MockMetrics) RecordAuditPublishError() {
	m.Called()
}
