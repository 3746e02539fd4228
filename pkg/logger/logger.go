// Package logger provides the structured logging contract of the validation service.
// Implementations live in internal/infrastructure/monitoring; this package only holds
// the interface, field helpers and a process wide default.
package logger

import (
	"context"
	"strings"
	"time"

	"github.com/ScalabilityIssues/validation-service/pkg/constants"
)

// ================================================================================
// Logger Interface
// ================================================================================

// Logger defines the interface for structured logging
type Logger interface {
	// Debug logs a debug message
	Debug(ctx context.Context, message string, fields ...Field)

	// Info logs an informational message
	Info(ctx context.Context, message string, fields ...Field)

	// Warn logs a warning message
	Warn(ctx context.Context, message string, fields ...Field)

	// Error logs an error message
	Error(ctx context.Context, message string, err error, fields ...Field)

	// Fatal logs a fatal message and exits the application
	Fatal(ctx context.Context, message string, err error, fields ...Field)

	// WithFields creates a new logger with additional fields
	WithFields(fields ...Field) Logger

	// WithComponent creates a new logger for a specific component
	WithComponent(component string) Logger

	// SetLevel sets the logging level
	SetLevel(level constants.LogLevel)

	// GetLevel returns the current logging level
	GetLevel() constants.LogLevel
}

// ================================================================================
// Field Type for Structured Logging
// ================================================================================

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand constructor for Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// String creates a string field
func String(key string, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Time creates a time field
func Time(key string, value time.Time) Field {
	return Field{Key: key, Value: value.Format(time.RFC3339Nano)}
}

// Any creates a field with any type
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// ContextFields extracts request scoped values carried in ctx.
func ContextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}
	var fields []Field
	if requestID, ok := ctx.Value(constants.ContextKeyRequestID).(string); ok && requestID != "" {
		fields = append(fields, String("request_id", requestID))
	}
	if clientIP, ok := ctx.Value(constants.ContextKeyClientIP).(string); ok && clientIP != "" {
		fields = append(fields, String("client_ip", clientIP))
	}
	return fields
}

// ================================================================================
// Sanitization
// ================================================================================

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"private_key",
	"signing_key",
	"authorization",
}

// SanitizeValue masks values of sensitive keys. Signatures and public keys are
// not secret and pass through.
func SanitizeValue(key string, value interface{}) interface{} {
	keyLower := strings.ToLower(key)
	for _, sensitiveKey := range sensitiveKeys {
		if strings.Contains(keyLower, sensitiveKey) {
			if str, ok := value.(string); ok && len(str) > 0 {
				return maskString(str)
			}
			return "***REDACTED***"
		}
	}
	return value
}

// maskString partially masks a string value
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "***" + s[len(s)-4:]
}

// ================================================================================
// No-op Logger
// ================================================================================

type noopLogger struct{}

// NewNoopLogger returns a Logger that discards everything. Useful in tests.
func NewNoopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(context.Context, string, ...Field)        {}
func (noopLogger) Info(context.Context, string, ...Field)         {}
func (noopLogger) Warn(context.Context, string, ...Field)         {}
func (noopLogger) Error(context.Context, string, error, ...Field) {}
func (noopLogger) Fatal(context.Context, string, error, ...Field) {}
func (n noopLogger) WithFields(...Field) Logger                   { return n }
func (n noopLogger) WithComponent(string) Logger                  { return n }
func (noopLogger) SetLevel(constants.LogLevel)                    {}
func (noopLogger) GetLevel() constants.LogLevel                   { return constants.LogLevelInfo }

// ================================================================================
// Global Logger Instance
// ================================================================================

var globalLogger Logger = NewNoopLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(l Logger) {
	if l == nil {
		l = NewNoopLogger()
	}
	globalLogger = l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	return globalLogger
}
