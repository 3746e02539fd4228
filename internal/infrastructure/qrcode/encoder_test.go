package qrcode

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	stderrors "errors"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
)

func samplePackage(payloadLen int) *models.SignedPackage {
	payload := make([]byte, payloadLen)
	for i := range payload {
		payload[i] = byte(i*31 + 7)
	}
	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	return &models.SignedPackage{Payload: payload, Signature: ed25519.Sign(priv, payload)}
}

func TestEncoder_RoundTrip(t *testing.T) {
	for _, level := range []string{"low", "medium", "high", "highest"} {
		t.Run(level, func(t *testing.T) {
			enc, err := NewEncoder(level)
			require.NoError(t, err)

			pkg := samplePackage(40)
			data, err := enc.Encode(pkg)
			require.NoError(t, err)
			assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])

			got, err := DecodePNG(data)
			require.NoError(t, err)
			assert.Equal(t, pkg.Payload, got.Payload)
			assert.Equal(t, pkg.Signature, got.Signature)
		})
	}
}

func TestEncoder_RoundTripAcrossVersions(t *testing.T) {
	enc, err := NewEncoder("medium")
	require.NoError(t, err)

	sizes := []int{1018, 1238, 1258, 1518, 1538, 1548, 1578}
	for n := 8; n <= 1658; n += 50 {
		sizes = append(sizes, n)
	}
	for _, n := range sizes {
		pkg := samplePackage(n)
		data, err := enc.Encode(pkg)
		require.NoError(t, err, "payload of %d bytes", n)

		got, err := DecodePNG(data)
		require.NoError(t, err, "payload of %d bytes", n)
		assert.Equal(t, pkg.Payload, got.Payload, "payload of %d bytes", n)
		assert.Equal(t, pkg.Signature, got.Signature, "payload of %d bytes", n)
	}
}

func TestDecodeText_ScaledAndOffset(t *testing.T) {
	enc, err := NewEncoder("medium")
	require.NoError(t, err)
	code, err := enc.Render("scanned at the gate")
	require.NoError(t, err)

	const scale, offset = 3, 40
	size := code.Bounds().Dx()
	canvas := image.NewGray(image.Rect(0, 0, size*scale+2*offset, size*scale+2*offset))
	for i := range canvas.Pix {
		canvas.Pix[i] = 0xff
	}
	for y := 0; y < size*scale; y++ {
		for x := 0; x < size*scale; x++ {
			canvas.SetGray(offset+x, offset+y, code.GrayAt(x/scale, y/scale))
		}
	}

	text, err := DecodeText(canvas)
	require.NoError(t, err)
	assert.Equal(t, "scanned at the gate", text)
}

func TestEncoder_ImageLayout(t *testing.T) {
	enc, err := NewEncoder("medium")
	require.NoError(t, err)

	data, err := enc.Encode(samplePackage(40))
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "single channel image")

	size := gray.Bounds().Dx()
	assert.Equal(t, size, gray.Bounds().Dy())
	// version N has 17+4N modules plus a four module border on each side
	assert.Equal(t, 0, (size-8-17)%4)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := gray.GrayAt(x, y).Y
			require.True(t, v == 0 || v == 0xff, "pixel (%d,%d) is %d", x, y, v)
			if x < 4 || y < 4 || x >= size-4 || y >= size-4 {
				require.Equal(t, uint8(0xff), v, "quiet zone at (%d,%d)", x, y)
			}
		}
	}
	// top left finder pattern corner
	assert.Equal(t, uint8(0), gray.GrayAt(4, 4).Y)
}

func TestEncoder_Deterministic(t *testing.T) {
	enc, err := NewEncoder("medium")
	require.NoError(t, err)
	a, err := enc.Encode(samplePackage(64))
	require.NoError(t, err)
	b, err := enc.Encode(samplePackage(64))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncoder_CapacityBoundary(t *testing.T) {
	enc, err := NewEncoder("medium")
	require.NoError(t, err)

	_, err = enc.Encode(samplePackage(1000))
	require.NoError(t, err, "well under capacity")

	img, err := enc.Encode(samplePackage(4000))
	assert.Nil(t, img)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, ErrCodeCreation))
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeInternal, appErr.Code())
	assert.Equal(t, "Error creating QR code", appErr.Message())
}

func TestEncoder_RenderFitsExactLimit(t *testing.T) {
	enc, err := NewEncoder("low")
	require.NoError(t, err)

	// 2953 bytes is the byte mode capacity of version 40-L.
	text := bytes.Repeat([]byte("a"), 2953)
	_, err = enc.Render(string(text))
	require.NoError(t, err)

	_, err = enc.Render(string(text) + "a")
	assert.ErrorIs(t, err, ErrCodeCreation)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, stderrors.New("disk full") }

func TestWritePNG_Failure(t *testing.T) {
	err := WritePNG(failingWriter{}, image.NewGray(image.Rect(0, 0, 21, 21)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImageWrite)
	assert.True(t, errors.IsCode(err, errors.CodeInternal))
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "Error creating QR code", appErr.Message())
}

func TestNewEncoder_UnknownLevel(t *testing.T) {
	_, err := NewEncoder("extreme")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidArgument))
}

func TestParseText_Rejects(t *testing.T) {
	_, err := ParseText("***not base64***")
	assert.Error(t, err)

	_, err = ParseText(base64.StdEncoding.EncodeToString([]byte{0xff, 0xff, 0xff}))
	assert.Error(t, err)
}
