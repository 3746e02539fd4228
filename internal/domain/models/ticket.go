package models

import (
	"github.com/ScalabilityIssues/validation-service/api/validationpb"
)

// SignedPackage is the canonical payload together with its signature. It is
// the unit that travels to verifiers.
type SignedPackage struct {
	Payload   []byte
	Signature []byte
}

// ToWire converts the package into its schema message.
func (p *SignedPackage) ToWire() *validationpb.SignedTicket {
	if p == nil {
		return nil
	}
	return &validationpb.SignedTicket{Ticket: p.Payload, Signature: p.Signature}
}

// Marshal returns the binary wire form embedded in QR codes.
func (p *SignedPackage) Marshal() ([]byte, error) {
	return p.ToWire().Marshal()
}

// SignedPackageFromWire converts a decoded schema message.
func SignedPackageFromWire(st *validationpb.SignedTicket) *SignedPackage {
	if st == nil {
		return nil
	}
	return &SignedPackage{Payload: st.Ticket, Signature: st.Signature}
}

// SigningResult is what one SignTicket call produced. Image is nil when the
// service runs in package-only mode; Package is always set.
type SigningResult struct {
	Image   []byte
	Package *SignedPackage
}
