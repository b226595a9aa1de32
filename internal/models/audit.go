package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditEntry is an immutable record of a mutating action. Entries are
// created and never updated; only the retention sweep deletes them.
type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_log"`

	EntryID     string    `json:"entry_id" bun:"entry_id,pk"`
	ActorID     string    `json:"actor_id" bun:"actor_id,notnull"`
	ActorEmail  string    `json:"actor_email" bun:"actor_email,nullzero"`
	ActorRole   string    `json:"actor_role" bun:"actor_role,nullzero"`
	Action      string    `json:"action" bun:"action,notnull"`
	EntityType  string    `json:"entity_type" bun:"entity_type,notnull"`
	EntityID    string    `json:"entity_id" bun:"entity_id,notnull"`
	Description string    `json:"description" bun:"description,nullzero"`
	Metadata    string    `json:"metadata,omitempty" bun:"metadata,nullzero"` // JSON-encoded
	CreatedAt   time.Time `json:"created_at" bun:"created_at,notnull"`
}

// Audit action kinds.
const (
	AuditBookingCreated    = "booking.created"
	AuditBookingUpdated    = "booking.updated"
	AuditBookingApproved   = "booking.approved"
	AuditBookingRejected   = "booking.rejected"
	AuditBookingCancelled  = "booking.cancelled"
	AuditBookingAutoCancel = "booking.auto_cancelled"
	AuditBookingCompleted  = "booking.completed"
	AuditBookingPurged     = "booking.purged"
	AuditPaymentCreated    = "payment.created"
	AuditPaymentReceived   = "payment.received"
	AuditPaymentVerified   = "payment.verified"
	AuditPaymentRefunded   = "payment.refunded"
	AuditInvoiceIssued     = "invoice.issued"
	AuditSettingsUpdated   = "settings.updated"
)

type AuditFilter struct {
	ActorID    string
	Action     string
	EntityType string
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}

type AuditPage struct {
	Entries []AuditEntry `json:"entries"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
}
