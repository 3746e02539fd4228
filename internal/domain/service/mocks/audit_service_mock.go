package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
)

type MockAuditPublisher struct {
	mock.Mock
}

func (m *MockAuditPublisher) Publish(ctx context.Context, event *models.AuditLog) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
