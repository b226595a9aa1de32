package qr

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// EncodeURL renders a payment URL as a base64 PNG so notification emails
// can embed it inline.
func EncodeURL(url string) (string, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
