package service

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/go-jose/go-jose/v4"

	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	domainService "github.com/ScalabilityIssues/validation-service/internal/domain/service"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
	"github.com/ScalabilityIssues/validation-service/pkg/logger"
)

// KeyAlgorithm is the JOSE name of the signing algorithm.
const KeyAlgorithm = "EdDSA"

// KeyPublisher exposes the public half of the signing key.
type KeyPublisher interface {
	// VerificationKeys returns the raw keys verifiers should accept. There is
	// always exactly one.
	VerificationKeys(ctx context.Context) [][]byte

	// ActiveKey returns the key together with its identifier.
	ActiveKey() models.VerificationKey

	// JWKS returns the keys as a JSON Web Key Set.
	JWKS() jose.JSONWebKeySet
}

type keyPublisherImpl struct {
	key     models.VerificationKey
	jwks    jose.JSONWebKeySet
	metrics domainService.Metrics
	logger  logger.Logger
}

// NewKeyPublisher derives the published key material from signer. The key is
// immutable, so everything is computed once here.
func NewKeyPublisher(signer domainService.Signer, metrics domainService.Metrics, log logger.Logger) (KeyPublisher, error) {
	raw := signer.PublicKey()
	if len(raw) != ed25519.PublicKeySize {
		return nil, errors.ErrInternal(fmt.Sprintf("verification key has %d bytes, want %d", len(raw), ed25519.PublicKeySize))
	}
	pub := ed25519.PublicKey(raw)

	jwk := jose.JSONWebKey{Key: pub, Algorithm: KeyAlgorithm, Use: "sig"}
	thumb, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute key thumbprint")
	}
	jwk.KeyID = base64.RawURLEncoding.EncodeToString(thumb)

	if metrics == nil {
		metrics = domainService.NewNoopMetrics()
	}
	p := &keyPublisherImpl{
		key: models.VerificationKey{
			ID:        jwk.KeyID,
			PublicKey: pub,
			Algorithm: KeyAlgorithm,
		},
		jwks:    jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}},
		metrics: metrics,
		logger:  log.WithComponent("KeyPublisher"),
	}
	p.logger.Info(context.Background(), "Verification key ready", logger.String("kid", jwk.KeyID))
	return p, nil
}

func (p *keyPublisherImpl) VerificationKeys(ctx context.Context) [][]byte {
	p.metrics.RecordKeyRequest()
	p.logger.Debug(ctx, "Serving verification keys", logger.String("kid", p.key.ID))
	return [][]byte{p.key.Bytes()}
}

func (p *keyPublisherImpl) ActiveKey() models.VerificationKey {
	return models.VerificationKey{
		ID:        p.key.ID,
		PublicKey: p.key.Bytes(),
		Algorithm: p.key.Algorithm,
	}
}

func (p *keyPublisherImpl) JWKS() jose.JSONWebKeySet {
	keys := make([]jose.JSONWebKey, len(p.jwks.Keys))
	copy(keys, p.jwks.Keys)
	return jose.JSONWebKeySet{Keys: keys}
}
