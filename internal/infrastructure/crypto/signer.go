// Package crypto holds the Ed25519 signing key of the service and the code
// that acquires it at startup.
package crypto

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/sigstore/sigstore/pkg/signature"
)

// Algorithm is the JOSE name of the only supported signature scheme.
const Algorithm = "EdDSA"

// Ed25519Signer signs payloads with the single process-wide key. The key is
// fixed at construction and the signer is safe for concurrent use.
type Ed25519Signer struct {
	sv        *signature.ED25519SignerVerifier
	publicKey ed25519.PublicKey
}

// NewSigner wraps priv.
func NewSigner(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key length %d", len(priv))
	}
	sv, err := signature.LoadED25519SignerVerifier(priv)
	if err != nil {
		return nil, fmt.Errorf("load ed25519 signer: %w", err)
	}
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{sv: sv, publicKey: bytes.Clone(pub)}, nil
}

// Sign returns the 64 byte Ed25519 signature over payload. Ed25519 is
// deterministic, so equal payloads always yield equal signatures.
func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return s.sv.SignMessage(bytes.NewReader(payload))
}

// PublicKey returns a copy of the raw 32 byte verification key.
func (s *Ed25519Signer) PublicKey() []byte {
	return bytes.Clone(s.publicKey)
}

// Verify checks sig over payload against this signer's own key.
func (s *Ed25519Signer) Verify(payload, sig []byte) error {
	return s.sv.VerifySignature(bytes.NewReader(sig), bytes.NewReader(payload))
}

// Verify checks sig over payload against the raw public key pub.
func Verify(pub, payload, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 public key length %d", len(pub))
	}
	v, err := signature.LoadED25519Verifier(ed25519.PublicKey(pub))
	if err != nil {
		return err
	}
	return v.VerifySignature(bytes.NewReader(sig), bytes.NewReader(payload))
}
