package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    AppError
		code   Code
		status int
	}{
		{"invalid argument", ErrInvalidArgument("missing ticket"), CodeInvalidArgument, http.StatusBadRequest},
		{"internal", ErrInternal("Error creating QR code"), CodeInternal, http.StatusInternalServerError},
		{"rate limited", ErrRateLimited("slow down"), CodeRateLimited, http.StatusTooManyRequests},
		{"unavailable", ErrUnavailable("no key"), CodeUnavailable, http.StatusServiceUnavailable},
		{"not found", ErrNotFound("nope"), CodeNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code())
			assert.Equal(t, tt.status, tt.err.HTTPStatus())
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ignored"))

	cause := New("disk on fire")
	err := Wrap(cause, "load signing key")
	require.NotNil(t, err)
	assert.Equal(t, "load signing key", err.Message())
	assert.Equal(t, "load signing key: disk on fire", err.Error())
	assert.True(t, Is(err, cause))
}

func TestAsAppError_ThroughFmtWrap(t *testing.T) {
	inner := ErrInvalidArgument("missing ticket").WithMetadata("field", "ticket")
	wrapped := fmt.Errorf("sign: %w", inner)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidArgument, appErr.Code())
	assert.Equal(t, "ticket", appErr.Metadata()["field"])
	assert.True(t, IsCode(wrapped, CodeInvalidArgument))
	assert.False(t, IsCode(wrapped, CodeInternal))

	_, ok = AsAppError(New("plain"))
	assert.False(t, ok)
}

func TestIs_MatchesByCode(t *testing.T) {
	err := ErrInternal("Error creating QR code")
	assert.True(t, Is(err, ErrInternal("")))
	assert.True(t, Is(err, ErrInternal("Error creating QR code")))
	assert.False(t, Is(err, ErrInternal("other")))
	assert.False(t, Is(err, ErrInvalidArgument("")))
}
