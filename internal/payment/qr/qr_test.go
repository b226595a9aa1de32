package qr_test

import (
	"bytes"
	"encoding/base64"
	"testing"

	"ms-booking/internal/payment/qr"
)

func TestEncodeURL(t *testing.T) {
	encoded, err := qr.EncodeURL("https://checkout.stripe.com/pay/cs_test_123")
	if err != nil {
		t.Fatalf("EncodeURL failed: %v", err)
	}
	if encoded == "" {
		t.Fatal("Expected a non-empty encoding")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("Expected valid base64, got %v", err)
	}
	if !bytes.HasPrefix(raw, []byte("\x89PNG")) {
		t.Error("Expected a PNG payload")
	}
}

func TestEncodeURLEmpty(t *testing.T) {
	if _, err := qr.EncodeURL(""); err == nil {
		t.Error("Expected encoding an empty string to fail")
	}
}
