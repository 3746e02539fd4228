package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

// AuditLog records one issued signature. It carries a digest of the payload,
// never the payload or passenger data itself.
type AuditLog struct {
	EventID       uuid.UUID                `json:"event_id"`
	EventType     constants.AuditEventType `json:"event_type"`
	TicketID      string                   `json:"ticket_id"`
	Policy        string                   `json:"policy"`
	PayloadSHA256 string                   `json:"payload_sha256"`
	SignatureSize int                      `json:"signature_size"`
	ImageSize     int                      `json:"image_size,omitempty"`
	KeyID         string                   `json:"key_id"`
	RequestID     string                   `json:"request_id,omitempty"`
	TraceID       string                   `json:"trace_id,omitempty"`
	Timestamp     time.Time                `json:"timestamp"`
}

// NewTicketSignedLog creates the audit entry for a freshly signed package.
func NewTicketSignedLog(ticketID, policy, keyID string, pkg *SignedPackage) *AuditLog {
	digest := sha256.Sum256(pkg.Payload)
	return &AuditLog{
		EventID:       uuid.New(),
		EventType:     constants.AuditEventTicketSigned,
		TicketID:      ticketID,
		Policy:        policy,
		PayloadSHA256: hex.EncodeToString(digest[:]),
		SignatureSize: len(pkg.Signature),
		KeyID:         keyID,
		Timestamp:     time.Now().UTC(),
	}
}

// WithImageSize sets the size of the rendered QR image.
func (a *AuditLog) WithImageSize(n int) *AuditLog {
	a.ImageSize = n
	return a
}

// WithContextInfo sets request correlation identifiers.
func (a *AuditLog) WithContextInfo(requestID, traceID string) *AuditLog {
	a.RequestID = requestID
	a.TraceID = traceID
	return a
}

// JSON returns the wire form used by every audit sink.
func (a *AuditLog) JSON() ([]byte, error) {
	return json.Marshal(a)
}
