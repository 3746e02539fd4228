package models

import "crypto/ed25519"

// VerificationKey is the published half of the signing keypair.
type VerificationKey struct {
	// ID is the RFC 7638 thumbprint of the key, used as JWKS kid.
	ID string
	// PublicKey is the raw 32 byte Ed25519 public key.
	PublicKey ed25519.PublicKey
	// Algorithm is always EdDSA.
	Algorithm string
}

// Bytes returns a copy of the raw key.
func (k VerificationKey) Bytes() []byte {
	out := make([]byte, len(k.PublicKey))
	copy(out, k.PublicKey)
	return out
}
