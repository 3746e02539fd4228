package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ScalabilityIssues/validation-service/internal/domain/service"
)

type MockRateLimitService struct {
	mock.Mock
}

func (m *MockRateLimitService) Allow(ctx context.Context, dimension service.RateLimitDimension, key string) (bool, int, time.Time, error) {
	args := m.Called(ctx, dimension, key)
	return args.Bool(0), args.Int(1), args.Get(2).(time.Time), args.Error(3)
}

func (m *MockRateLimitService) Backend() string {
	args := m.Called()
	return args.String(0)
}
