// Package qrcode renders signed packages as QR images and reads them back.
package qrcode

import (
	"bytes"
	"encoding/base64"
	stderrors "errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	goqr "github.com/skip2/go-qrcode"

	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
	"github.com/ScalabilityIssues/validation-service/pkg/errors"
)

var (
	// ErrCodeCreation means the text does not fit any QR version at the
	// configured recovery level.
	ErrCodeCreation = stderrors.New("qrcode: code creation failed")

	// ErrImageWrite means the raster image could not be serialized.
	ErrImageWrite = stderrors.New("qrcode: image write failed")
)

// msgCodeCreation is the only message callers see for any encoding failure.
// Causes are logged, never exposed.
const msgCodeCreation = "Error creating QR code"

// ParseRecoveryLevel maps a configuration name onto a QR recovery level.
func ParseRecoveryLevel(name string) (goqr.RecoveryLevel, error) {
	switch name {
	case "low":
		return goqr.Low, nil
	case "", "medium":
		return goqr.Medium, nil
	case "high":
		return goqr.High, nil
	case "highest":
		return goqr.Highest, nil
	default:
		return 0, fmt.Errorf("unknown QR recovery level %q", name)
	}
}

// Encoder renders the base64 text of a signed package as a QR code with one
// pixel per module and the standard four module quiet zone, encoded as an
// 8-bit grayscale PNG.
type Encoder struct {
	level goqr.RecoveryLevel
}

// NewEncoder returns an encoder using the named recovery level.
func NewEncoder(level string) (*Encoder, error) {
	l, err := ParseRecoveryLevel(level)
	if err != nil {
		return nil, errors.ErrInvalidArgument(err.Error())
	}
	return &Encoder{level: l}, nil
}

// Encode serializes pkg, base64 encodes it and returns the PNG bytes of its
// QR code.
func (e *Encoder) Encode(pkg *models.SignedPackage) ([]byte, error) {
	wire, err := pkg.Marshal()
	if err != nil {
		return nil, errors.ErrInternal(msgCodeCreation).WithCause(fmt.Errorf("%w: %v", ErrCodeCreation, err))
	}
	img, err := e.Render(base64.StdEncoding.EncodeToString(wire))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := WritePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render builds the smallest QR version that holds text and draws it.
func (e *Encoder) Render(text string) (*image.Gray, error) {
	code, err := goqr.New(text, e.level)
	if err != nil {
		return nil, errors.ErrInternal(msgCodeCreation).
			WithCause(fmt.Errorf("%w: %v", ErrCodeCreation, err)).
			WithMetadata("text_len", len(text))
	}

	bitmap := code.Bitmap()
	size := len(bitmap)
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				img.SetGray(x, y, color.Gray{Y: 0x00})
			} else {
				img.SetGray(x, y, color.Gray{Y: 0xff})
			}
		}
	}
	return img, nil
}

// WritePNG serializes img losslessly.
func WritePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, img); err != nil {
		return errors.ErrInternal(msgCodeCreation).WithCause(fmt.Errorf("%w: %v", ErrImageWrite, err))
	}
	return nil
}
