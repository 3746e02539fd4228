package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

type MockSigner struct {
	mock.Mock
}

func (m *MockSigner) Sign(payload []byte) ([]byte, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSigner) PublicKey() []byte {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]byte)
}

type MockCanonicalizer struct {
	mock.Mock
}

func (m *MockCanonicalizer) Canonicalize(ticket *validationpb.Ticket) ([]byte, error) {
	args := m.Called(ticket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCanonicalizer) Policy() constants.ClaimsPolicy {
	args := m.Called()
	return args.Get(0).(constants.ClaimsPolicy)
}

type MockCodeEncoder struct {
	mock.Mock
}

func (m *MockCodeEncoder) Encode(pkg *models.SignedPackage) ([]byte, error) {
	args := m.Called(pkg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
