package audit_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ms-booking/internal/apperr"
	"ms-booking/internal/audit"
	"ms-booking/internal/clock"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

var (
	alice = models.Principal{ID: "alice", Email: "alice@example.com", Role: models.RoleUser}
	mgr   = models.Principal{ID: "mgr", Email: "mgr@example.com", Role: models.RoleManager}
)

type MockAuditStore struct {
	entries      []models.AuditEntry
	lastFilter   models.AuditFilter
	lastCutoff   time.Time
	removed      int64
	shouldFailOn string
	errorMsg     string
}

func (m *MockAuditStore) Insert(entry models.AuditEntry) error {
	if m.shouldFailOn == "Insert" {
		return errors.New(m.errorMsg)
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockAuditStore) Find(filter models.AuditFilter) ([]models.AuditEntry, int, error) {
	if m.shouldFailOn == "Find" {
		return nil, 0, errors.New(m.errorMsg)
	}
	m.lastFilter = filter
	return m.entries, len(m.entries), nil
}

func (m *MockAuditStore) FindByEntity(entityType, entityID string) ([]models.AuditEntry, error) {
	if m.shouldFailOn == "FindByEntity" {
		return nil, errors.New(m.errorMsg)
	}
	var out []models.AuditEntry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockAuditStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	if m.shouldFailOn == "DeleteOlderThan" {
		return 0, errors.New(m.errorMsg)
	}
	m.lastCutoff = cutoff
	return m.removed, nil
}

func setupAudit() (*audit.Service, *MockAuditStore) {
	store := &MockAuditStore{}
	return audit.NewService(store, clock.Fixed{T: testNow}, logger.NewLogger()), store
}

func TestRecord(t *testing.T) {
	svc, store := setupAudit()

	svc.Record(mgr, models.AuditBookingApproved, "booking", "b1", "booking approved",
		map[string]interface{}{"amount": 100.0})

	if len(store.entries) != 1 {
		t.Fatalf("Expected one entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.EntryID == "" {
		t.Error("Expected a generated entry id")
	}
	if e.ActorID != mgr.ID || e.ActorRole != mgr.Role {
		t.Errorf("Expected the actor to be captured, got %s/%s", e.ActorID, e.ActorRole)
	}
	if e.Action != models.AuditBookingApproved || e.EntityID != "b1" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if !e.CreatedAt.Equal(testNow) {
		t.Errorf("Expected created_at %v, got %v", testNow, e.CreatedAt)
	}

	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("Expected JSON metadata, got %q: %v", e.Metadata, err)
	}
	if meta["amount"] != 100.0 {
		t.Errorf("Expected the metadata to round-trip, got %+v", meta)
	}
}

func TestRecordSwallowsStorageFailure(t *testing.T) {
	svc, store := setupAudit()
	store.shouldFailOn = "Insert"
	store.errorMsg = "db down"

	// Recording is fire-and-forget: the call must not panic or bubble the
	// failure up to the audited operation.
	svc.Record(mgr, models.AuditBookingApproved, "booking", "b1", "booking approved", nil)

	if len(store.entries) != 0 {
		t.Error("Expected no entry to be stored")
	}
}

func TestFindAllDefaultsAndAccess(t *testing.T) {
	svc, store := setupAudit()

	if _, err := svc.FindAll(alice, models.AuditFilter{}); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("Expected forbidden for a plain user, got %v", err)
	}

	page, err := svc.FindAll(mgr, models.AuditFilter{})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.lastFilter.Page != 1 || store.lastFilter.PageSize != 50 {
		t.Errorf("Expected page defaults 1/50, got %d/%d", store.lastFilter.Page, store.lastFilter.PageSize)
	}
	if page.Page != 1 {
		t.Errorf("Expected page 1, got %d", page.Page)
	}

	if _, err := svc.FindAll(mgr, models.AuditFilter{Page: 3, PageSize: 10}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if store.lastFilter.Page != 3 || store.lastFilter.PageSize != 10 {
		t.Errorf("Expected the explicit paging to pass through, got %d/%d", store.lastFilter.Page, store.lastFilter.PageSize)
	}
}

func TestFindByEntityAccess(t *testing.T) {
	svc, store := setupAudit()
	store.entries = []models.AuditEntry{
		{EntryID: "e1", EntityType: "booking", EntityID: "b1", Action: models.AuditBookingCreated},
		{EntryID: "e2", EntityType: "payment", EntityID: "pay_1", Action: models.AuditPaymentCreated},
	}

	if _, err := svc.FindByEntity(alice, "booking", "b1"); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("Expected forbidden for a plain user, got %v", err)
	}

	entries, err := svc.FindByEntity(mgr, "booking", "b1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 1 || entries[0].EntryID != "e1" {
		t.Errorf("Expected only the booking's history, got %+v", entries)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, store := setupAudit()
	store.removed = 7

	removed, err := svc.PurgeExpired()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if removed != 7 {
		t.Errorf("Expected 7 removed entries, got %d", removed)
	}

	wantCutoff := testNow.Add(-90 * 24 * time.Hour)
	if !store.lastCutoff.Equal(wantCutoff) {
		t.Errorf("Expected cutoff %v, got %v", wantCutoff, store.lastCutoff)
	}
}
