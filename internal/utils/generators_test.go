package utils_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"ms-booking/internal/utils"
)

func TestGeneratePaymentID(t *testing.T) {
	id := utils.GeneratePaymentID()

	if !strings.HasPrefix(id, "pay_") {
		t.Errorf("Expected a pay_ prefix, got %q", id)
	}
	if !regexp.MustCompile(`^pay_\d+_\d{6}$`).MatchString(id) {
		t.Errorf("Unexpected payment id format %q", id)
	}
}

func TestGenerateTransferReference(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ref := utils.GenerateTransferReference("3f8a1c2e-9b7d-4e21-a5f0-123456789abc", now)

	parts := strings.Split(ref, "-")
	if len(parts) != 3 {
		t.Fatalf("Expected three segments, got %q", ref)
	}
	if parts[0] != "3F8A1C2E" {
		t.Errorf("Expected the booking fragment 3F8A1C2E, got %q", parts[0])
	}
	if parts[1] != "260310" {
		t.Errorf("Expected the date segment 260310, got %q", parts[1])
	}
	if !regexp.MustCompile(`^\d{4}$`).MatchString(parts[2]) {
		t.Errorf("Expected a 4-digit suffix, got %q", parts[2])
	}
}

func TestGenerateTransferReferenceShortID(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	ref := utils.GenerateTransferReference("b1", now)

	if !strings.HasPrefix(ref, "B1-260310-") {
		t.Errorf("Expected a short id to be used whole, got %q", ref)
	}
}
