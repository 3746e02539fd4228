package service

import (
	"context"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

//go:generate mockery --name Canonicalizer --output mocks --outpkg mocks
// Canonicalizer turns a ticket into the exact bytes that get signed.
// Implementations are pure: equal tickets always produce identical bytes.
type Canonicalizer interface {
	// Canonicalize returns the canonical payload for ticket. A nil ticket is
	// rejected with an invalid_argument error.
	Canonicalize(ticket *validationpb.Ticket) ([]byte, error)

	// Policy names the active canonicalization policy.
	Policy() constants.ClaimsPolicy
}

//go:generate mockery --name Signer --output mocks --outpkg mocks
// Signer holds the single immutable signing key of the process. It is safe
// for unlimited concurrent use.
type Signer interface {
	// Sign returns the signature over payload.
	Sign(payload []byte) ([]byte, error)

	// PublicKey returns the raw verification key.
	PublicKey() []byte
}

//go:generate mockery --name CodeEncoder --output mocks --outpkg mocks
// CodeEncoder renders a signed package as a scannable image.
type CodeEncoder interface {
	// Encode returns the PNG bytes of the matrix code embedding pkg.
	Encode(pkg *models.SignedPackage) ([]byte, error)
}

//go:generate mockery --name AuditPublisher --output mocks --outpkg mocks
// AuditPublisher ships issuance events to an external sink. Publishing is
// best effort; a failure never fails the signing request.
type AuditPublisher interface {
	Publish(ctx context.Context, event *models.AuditLog) error
	Close() error
}
