// Package constants defines system-wide constants for the validation service.
package constants

import "time"

// ================================================================================
// Service Identity
// ================================================================================

const (
	// ServiceName is used for tracing resources, metrics namespaces and logs
	ServiceName = "validation-service"

	// MetricsNamespace prefixes every Prometheus metric exported by the service
	MetricsNamespace = "validation"
)

// ================================================================================
// Server Defaults
// ================================================================================

const (
	// DefaultIP binds every interface
	DefaultIP = "0.0.0.0"

	// DefaultGRPCPort is the default port of the gRPC listener
	DefaultGRPCPort = 50051

	// DefaultHTTPPort is the default port of the ops HTTP listener
	DefaultHTTPPort = 8080

	// DefaultRequestTimeout bounds every unary call on the server side
	DefaultRequestTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds the graceful drain on SIGTERM
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultSigningKeyFile is read when no other key path is configured
	DefaultSigningKeyFile = "sign_key.env"
)

// ================================================================================
// Key Sources
// ================================================================================

// KeySource selects where the signing key comes from at startup
type KeySource string

const (
	// KeySourceFile reads a PKCS#8 PEM private key from disk
	KeySourceFile KeySource = "file"

	// KeySourceGenerate creates an ephemeral key, for non-production runs only
	KeySourceGenerate KeySource = "generate"

	// KeySourceVault reads a PEM private key from a Vault KV v2 secret
	KeySourceVault KeySource = "vault"
)

// ================================================================================
// Signing Policies
// ================================================================================

// ClaimsPolicy selects how a ticket becomes the signed payload
type ClaimsPolicy string

const (
	// ClaimsPolicyClaims copies a subset of ticket fields into TicketClaims
	ClaimsPolicyClaims ClaimsPolicy = "claims"

	// ClaimsPolicyVerbatim signs the caller supplied ticket as is
	ClaimsPolicyVerbatim ClaimsPolicy = "verbatim"
)

// ResponseMode selects what SignTicket returns
type ResponseMode string

const (
	// ResponseModeQR returns only the QR image
	ResponseModeQR ResponseMode = "qr"

	// ResponseModePackage returns only the signed package
	ResponseModePackage ResponseMode = "package"

	// ResponseModeBoth returns the QR image and the signed package
	ResponseModeBoth ResponseMode = "both"
)

// ================================================================================
// Rate Limiting
// ================================================================================

// RateLimitBackend selects the store of rate limit buckets
type RateLimitBackend string

const (
	// RateLimitBackendMemory keeps buckets in process
	RateLimitBackendMemory RateLimitBackend = "memory"

	// RateLimitBackendRedis shares buckets between replicas
	RateLimitBackendRedis RateLimitBackend = "redis"
)

const (
	// DefaultRateLimitPerMinute is the default sustained rate per client
	DefaultRateLimitPerMinute = 600

	// DefaultRateLimitBurst is the default bucket size per client
	DefaultRateLimitBurst = 100
)

// ================================================================================
// Audit
// ================================================================================

// AuditSink selects where issuance events go
type AuditSink string

const (
	// AuditSinkLog writes issuance events to the structured log
	AuditSinkLog AuditSink = "log"

	// AuditSinkKafka publishes issuance events to a Kafka topic
	AuditSinkKafka AuditSink = "kafka"

	// AuditSinkNone disables issuance events
	AuditSinkNone AuditSink = "none"
)

// AuditEventType identifies an audit event
type AuditEventType string

const (
	// AuditEventTicketSigned is emitted for every signed ticket
	AuditEventTicketSigned AuditEventType = "ticket.signed"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyClientIP is the key for the caller address in context
	ContextKeyClientIP ContextKey = "client_ip"
)

// ================================================================================
// Metadata Headers
// ================================================================================

const (
	// HeaderRequestID carries a caller supplied request id
	HeaderRequestID = "x-request-id"

	// HeaderForwardedFor carries the original client address behind a proxy
	HeaderForwardedFor = "x-forwarded-for"
)

// ================================================================================
// Logging
// ================================================================================

// LogLevel represents a logging level name as accepted in configuration
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LogFormat selects the encoder of the structured logger
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)
