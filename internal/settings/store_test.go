package settings_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/settings"
)

func testDefaults() config.PaymentDefaults {
	return config.PaymentDefaults{
		CardEnabled:          true,
		BankTransferEnabled:  true,
		PaymentDeadlineDays:  5,
		ReminderLeadHours:    24,
		RemindersEnabled:     true,
		TaxRate:              22.0,
		Currency:             "eur",
		InvoicePrefix:        "INV",
		BankName:             "Test Bank",
		TransferNoteTemplate: "Prenotazione {CODICE} - {RISORSA} - {DATA}",
		SettingsSecret:       "test-settings-secret",
	}
}

func setupStore(t *testing.T) *settings.Store {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunDB.ResetModel(context.Background(), (*models.PaymentSettings)(nil)); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	return settings.NewStore(bunDB, testDefaults(), logger.NewLogger())
}

func TestGetMaterializesDefaults(t *testing.T) {
	store := setupStore(t)

	row, err := store.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if row.SettingsID != 1 {
		t.Errorf("Expected the singleton row id, got %d", row.SettingsID)
	}
	if !row.CardEnabled || !row.BankTransferEnabled {
		t.Error("Expected both payment paths enabled by default")
	}
	if row.PaymentDeadlineDays != 5 || row.ReminderLeadHours != 24 {
		t.Errorf("Expected the configured deadlines, got %d/%d", row.PaymentDeadlineDays, row.ReminderLeadHours)
	}
	if row.NextInvoiceNumber != 1 {
		t.Errorf("Expected the invoice counter to start at 1, got %d", row.NextInvoiceNumber)
	}

	// A second read hits the already-materialized row.
	again, err := store.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.SettingsID != 1 {
		t.Errorf("Expected the same singleton row, got %d", again.SettingsID)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	store := setupStore(t)

	deadline := 10
	disabled := false
	updated, err := store.Update(models.SettingsUpdateRequest{
		PaymentDeadlineDays: &deadline,
		CardEnabled:         &disabled,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.PaymentDeadlineDays != 10 {
		t.Errorf("Expected deadline 10, got %d", updated.PaymentDeadlineDays)
	}
	if updated.CardEnabled {
		t.Error("Expected card payments to be disabled")
	}
	// Untouched fields keep their values.
	if !updated.BankTransferEnabled || updated.ReminderLeadHours != 24 {
		t.Errorf("Expected untouched fields to survive, got %+v", updated)
	}
	if updated.UpdatedAt.IsZero() {
		t.Error("Expected updated_at to be stamped")
	}

	// The change is persisted.
	row, err := store.Get()
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if row.PaymentDeadlineDays != 10 || row.CardEnabled {
		t.Errorf("Expected the update to persist, got %+v", row)
	}
}

func TestGatewaySecretEncryptedAtRest(t *testing.T) {
	store := setupStore(t)

	secret := "sk_live_abc123"
	updated, err := store.Update(models.SettingsUpdateRequest{GatewaySecret: &secret})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.GatewaySecretEnc == "" || updated.GatewaySecretEnc == secret {
		t.Errorf("Expected the stored secret to be encrypted, got %q", updated.GatewaySecretEnc)
	}

	decrypted, err := store.GatewaySecret()
	if err != nil {
		t.Fatalf("GatewaySecret failed: %v", err)
	}
	if decrypted != secret {
		t.Errorf("Expected the secret back, got %q", decrypted)
	}

	// An empty string clears the credential.
	empty := ""
	if _, err := store.Update(models.SettingsUpdateRequest{GatewaySecret: &empty}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cleared, err := store.GatewaySecret()
	if err != nil {
		t.Fatalf("GatewaySecret failed: %v", err)
	}
	if cleared != "" {
		t.Errorf("Expected the cleared secret to be empty, got %q", cleared)
	}
}
