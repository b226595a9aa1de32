package settings

import (
	"strings"
	"testing"
)

func TestSecretBoxRoundTrip(t *testing.T) {
	box := newSecretBox("operator-chosen-secret")

	encoded, err := box.Encrypt("sk_live_abc123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if encoded == "sk_live_abc123" {
		t.Fatal("Expected the ciphertext to differ from the plaintext")
	}

	decoded, err := box.Decrypt(encoded)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decoded != "sk_live_abc123" {
		t.Errorf("Expected the plaintext back, got %q", decoded)
	}
}

func TestSecretBoxRandomizedNonce(t *testing.T) {
	box := newSecretBox("operator-chosen-secret")

	first, err := box.Encrypt("sk_live_abc123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	second, err := box.Encrypt("sk_live_abc123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if first == second {
		t.Error("Expected two encryptions of the same value to differ")
	}
}

func TestSecretBoxWrongKey(t *testing.T) {
	encoded, err := newSecretBox("right-key").Encrypt("sk_live_abc123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := newSecretBox("wrong-key").Decrypt(encoded); err == nil {
		t.Error("Expected decryption with the wrong key to fail")
	}
}

func TestSecretBoxTamperedCiphertext(t *testing.T) {
	box := newSecretBox("operator-chosen-secret")
	encoded, err := box.Encrypt("sk_live_abc123")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	tampered := strings.ToLower(encoded)
	if tampered == encoded {
		tampered = strings.ToUpper(encoded)
	}
	if _, err := box.Decrypt(tampered); err == nil {
		t.Error("Expected a tampered ciphertext to fail authentication")
	}

	if _, err := box.Decrypt("AAAA"); err == nil {
		t.Error("Expected a too-short ciphertext to be rejected")
	}
}
