// Package ticketverifier checks signed tickets at the gate: it reads the QR
// code, unpacks the signed package and verifies the Ed25519 signature against
// the keys published by the validation service.
package ticketverifier

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/crypto"
	"github.com/ScalabilityIssues/validation-service/internal/infrastructure/qrcode"
	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

var (
	ErrNoKeysFound      = errors.New("no verification keys available")
	ErrInvalidKey       = errors.New("invalid verification key")
	ErrMalformedPackage = errors.New("malformed signed ticket")
	ErrInvalidSignature = errors.New("signature does not match any verification key")
)

// Result is a verified ticket.
type Result struct {
	// Payload is the exact byte string that was signed.
	Payload []byte
	// Claims is Payload decoded as TicketClaims under the claims policy.
	Claims *validationpb.TicketClaims
	// Ticket is Payload decoded as Ticket under the verbatim policy.
	Ticket *validationpb.Ticket
}

// Verifier verifies signed tickets against a KeySource.
type Verifier struct {
	source KeySource
	policy constants.ClaimsPolicy
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithPolicy sets the claims policy the issuing service signs with. Both
// payload schemas share field numbers, so the policy cannot be inferred from
// the bytes. The default is constants.ClaimsPolicyClaims.
func WithPolicy(policy constants.ClaimsPolicy) Option {
	return func(v *Verifier) {
		v.policy = policy
	}
}

// New creates a Verifier.
func New(source KeySource, opts ...Option) *Verifier {
	v := &Verifier{source: source, policy: constants.ClaimsPolicyClaims}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyPNG decodes a QR PNG returned by SignTicket and verifies it.
func (v *Verifier) VerifyPNG(ctx context.Context, data []byte) (*Result, error) {
	pkg, err := qrcode.DecodePNG(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	return v.verify(ctx, pkg)
}

// VerifyImage verifies a QR code captured by a scanner or camera.
func (v *Verifier) VerifyImage(ctx context.Context, img image.Image) (*Result, error) {
	text, err := qrcode.DecodeText(img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	return v.VerifyText(ctx, text)
}

// VerifyText verifies the base64 text read from a QR code.
func (v *Verifier) VerifyText(ctx context.Context, text string) (*Result, error) {
	pkg, err := qrcode.ParseText(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPackage, err)
	}
	return v.verify(ctx, pkg)
}

// VerifySignedTicket verifies a package returned in the signed_ticket field.
func (v *Verifier) VerifySignedTicket(ctx context.Context, st *validationpb.SignedTicket) (*Result, error) {
	if st == nil {
		return nil, ErrMalformedPackage
	}
	return v.verify(ctx, models.SignedPackageFromWire(st))
}

// verify tries every known key. On a miss the keys are refreshed once, so a
// verifier picks up a rotated key without restarting.
func (v *Verifier) verify(ctx context.Context, pkg *models.SignedPackage) (*Result, error) {
	ok, err := v.check(ctx, pkg)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := v.source.Refresh(ctx); err != nil {
			return nil, err
		}
		if ok, err = v.check(ctx, pkg); err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, ErrInvalidSignature
	}

	return v.decode(pkg.Payload)
}

func (v *Verifier) decode(payload []byte) (*Result, error) {
	res := &Result{Payload: payload}
	var err error
	switch v.policy {
	case constants.ClaimsPolicyClaims:
		res.Claims, err = validationpb.UnmarshalTicketClaims(payload)
	case constants.ClaimsPolicyVerbatim:
		res.Ticket, err = validationpb.UnmarshalTicket(payload)
	default:
		return nil, fmt.Errorf("unknown claims policy %q", v.policy)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformedPackage, err)
	}
	return res, nil
}

func (v *Verifier) check(ctx context.Context, pkg *models.SignedPackage) (bool, error) {
	keys, err := v.source.Keys(ctx)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, ErrNoKeysFound
	}
	for _, k := range keys {
		if crypto.Verify(k, pkg.Payload, pkg.Signature) == nil {
			return true, nil
		}
	}
	return false, nil
}
