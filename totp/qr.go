package totp

import (
	"encoding/base64"
	"errors"

	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of generated QR images.
const DefaultQRSize = 256

// QRCodePNG encodes content as a PNG QR image with medium error correction.
func QRCodePNG(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// QRCodeBase64 returns the PNG from [QRCodePNG] as standard base64, ready
// for a data:image/png;base64, URI.
func QRCodeBase64(content string, size int) (string, error) {
	png, err := QRCodePNG(content, size)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
