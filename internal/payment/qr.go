package payment

import (
	"encoding/base64"
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

// ErrEmptyPayload is returned when there is nothing to encode.
var ErrEmptyPayload = errors.New("payment: empty qr payload")

// QROptions controls QR rendering.
type QROptions struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// DefaultQROptions matches the printed invoice: 160px at the highest
// error-correction level.
func DefaultQROptions() QROptions {
	return QROptions{Size: 160, Level: qrcode.Highest}
}

// QRCode renders content as a PNG.
func QRCode(content string, opts QROptions) ([]byte, error) {
	if content == "" {
		return nil, ErrEmptyPayload
	}
	if opts.Size <= 0 {
		opts.Size = DefaultQROptions().Size
	}
	return qrcode.Encode(content, opts.Level, opts.Size)
}

// QRDataURI renders content as an inline PNG data URI.
func QRDataURI(content string, opts QROptions) (string, error) {
	png, err := QRCode(content, opts)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
