package audit_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/audit"
	"ms-booking/internal/models"
)

func setupAuditDB(t *testing.T) *audit.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := bunDB.ResetModel(context.Background(), (*models.AuditEntry)(nil)); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}

	return &audit.DB{Bun: bunDB}
}

func seedEntries(t *testing.T, d *audit.DB, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		entry := models.AuditEntry{
			EntryID:    fmt.Sprintf("e%d", i),
			ActorID:    "mgr",
			ActorRole:  models.RoleManager,
			Action:     models.AuditBookingCreated,
			EntityType: "booking",
			EntityID:   "b1",
			CreatedAt:  testNow.Add(time.Duration(i) * time.Minute),
		}
		if err := d.Insert(entry); err != nil {
			t.Fatalf("Failed to insert entry: %v", err)
		}
	}
}

func TestFindPaging(t *testing.T) {
	d := setupAuditDB(t)
	seedEntries(t, d, 5)

	entries, total, err := d.Find(models.AuditFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected a page of 2, got %d", len(entries))
	}
	// Newest first.
	if entries[0].EntryID != "e4" || entries[1].EntryID != "e3" {
		t.Errorf("Expected e4 then e3, got %s then %s", entries[0].EntryID, entries[1].EntryID)
	}

	entries, _, err = d.Find(models.AuditFilter{Page: 3, PageSize: 2})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(entries) != 1 || entries[0].EntryID != "e0" {
		t.Errorf("Expected the last page to hold e0, got %+v", entries)
	}
}

func TestFindFilters(t *testing.T) {
	d := setupAuditDB(t)
	seedEntries(t, d, 3)

	other := models.AuditEntry{
		EntryID:    "p1",
		ActorID:    "root",
		ActorRole:  models.RoleAdmin,
		Action:     models.AuditPaymentRefunded,
		EntityType: "payment",
		EntityID:   "pay_1",
		CreatedAt:  testNow.Add(time.Hour),
	}
	if err := d.Insert(other); err != nil {
		t.Fatalf("Failed to insert entry: %v", err)
	}

	entries, total, err := d.Find(models.AuditFilter{ActorID: "root", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if total != 1 || entries[0].EntryID != "p1" {
		t.Errorf("Expected only the admin's entry, got total=%d %+v", total, entries)
	}

	_, total, err = d.Find(models.AuditFilter{Action: models.AuditBookingCreated, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected 3 booking.created entries, got %d", total)
	}

	_, total, err = d.Find(models.AuditFilter{
		From: testNow.Add(30 * time.Minute),
		To:   testNow.Add(2 * time.Hour),
		Page: 1, PageSize: 10,
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 entry inside the time window, got %d", total)
	}
}

func TestFindByEntityOrder(t *testing.T) {
	d := setupAuditDB(t)
	seedEntries(t, d, 3)

	entries, err := d.FindByEntity("booking", "b1")
	if err != nil {
		t.Fatalf("FindByEntity failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].EntryID != "e2" || entries[2].EntryID != "e0" {
		t.Errorf("Expected newest first, got %s ... %s", entries[0].EntryID, entries[2].EntryID)
	}

	entries, err = d.FindByEntity("booking", "unknown")
	if err != nil {
		t.Fatalf("FindByEntity failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries for an unknown entity, got %d", len(entries))
	}
}

func TestDeleteOlderThan(t *testing.T) {
	d := setupAuditDB(t)
	seedEntries(t, d, 5)

	removed, err := d.DeleteOlderThan(testNow.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed entries, got %d", removed)
	}

	_, total, err := d.Find(models.AuditFilter{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected 3 surviving entries, got %d", total)
	}
}
