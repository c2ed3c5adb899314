package qrtoken

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the PNG edge length in pixels used for mailed tickets.
const DefaultSize = 320

// RenderPNG encodes text as a QR code PNG. Medium error correction keeps
// codes readable from slightly creased printouts.
func RenderPNG(text string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(text, qrcode.Medium, size)
}

// DataURL wraps PNG bytes in a data: URL for inline display.
func DataURL(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
