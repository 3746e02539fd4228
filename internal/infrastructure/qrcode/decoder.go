package qrcode

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"

	"github.com/ScalabilityIssues/validation-service/api/validationpb"
	"github.com/ScalabilityIssues/validation-service/internal/domain/models"
)

// DecodePure reads a code laid out the way Encoder writes it: axis aligned,
// one pixel per module, surrounded by the quiet zone. Sampling the module
// grid directly avoids the finder pattern search.
func DecodePure(img image.Image) (string, error) {
	return decode(img, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_PURE_BARCODE: true,
	})
}

// DecodeText returns the text stored in the QR code in img. Pure codes are
// tried first; scanned or photographed images fall back to the detector.
func DecodeText(img image.Image) (string, error) {
	if text, err := DecodePure(img); err == nil {
		return text, nil
	}
	return decode(img, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	})
}

func decode(img image.Image, hints map[gozxing.DecodeHintType]interface{}) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("prepare image: %w", err)
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("decode qr code: %w", err)
	}
	return result.GetText(), nil
}

// DecodePNG reads a QR PNG produced by Encoder back into the signed package.
func DecodePNG(data []byte) (*models.SignedPackage, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	text, err := DecodePure(img)
	if err != nil {
		return nil, err
	}
	return ParseText(text)
}

// ParseText reverses the base64 and wire encoding of a package.
func ParseText(text string) (*models.SignedPackage, error) {
	wire, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	st, err := validationpb.UnmarshalSignedTicket(wire)
	if err != nil {
		return nil, fmt.Errorf("decode signed ticket: %w", err)
	}
	return models.SignedPackageFromWire(st), nil
}
