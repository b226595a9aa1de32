package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingRejected  BookingStatus = "rejected"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Live reports whether a booking in this status occupies the resource's
// timeline. Only live bookings are considered by the conflict check.
func (s BookingStatus) Live() bool {
	return s == BookingPending || s == BookingApproved
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID  string        `json:"booking_id" bun:"booking_id,pk"`
	ResourceID string        `json:"resource_id" bun:"resource_id,notnull"`
	UserID     string        `json:"user_id" bun:"user_id,notnull"`
	StartTime  time.Time     `json:"start_time" bun:"start_time,notnull"`
	EndTime    time.Time     `json:"end_time" bun:"end_time,notnull"`
	Status     BookingStatus `json:"status" bun:"status,notnull"`

	// PaymentStatus mirrors the payment lifecycle on the booking itself so
	// the sweeps can select on it without joining the payments table.
	PaymentStatus PaymentStatus `json:"payment_status" bun:"payment_status,notnull"`

	Amount   float64 `json:"amount" bun:"amount,notnull"`
	Currency string  `json:"currency" bun:"currency,notnull"`

	ApprovedBy         string `json:"approved_by,omitempty" bun:"approved_by,nullzero"`
	RejectedBy         string `json:"rejected_by,omitempty" bun:"rejected_by,nullzero"`
	RejectionReason    string `json:"rejection_reason,omitempty" bun:"rejection_reason,nullzero"`
	CancellationReason string `json:"cancellation_reason,omitempty" bun:"cancellation_reason,nullzero"`

	PaymentReceived bool `json:"payment_received" bun:"payment_received"`
	InvoiceIssued   bool `json:"invoice_issued" bun:"invoice_issued"`
	ReminderSent    bool `json:"reminder_sent" bun:"reminder_sent"`

	CreatedAt   time.Time `json:"created_at" bun:"created_at,notnull"`
	ApprovedAt  time.Time `json:"approved_at,omitempty" bun:"approved_at,nullzero"`
	RejectedAt  time.Time `json:"rejected_at,omitempty" bun:"rejected_at,nullzero"`
	CancelledAt time.Time `json:"cancelled_at,omitempty" bun:"cancelled_at,nullzero"`
}

// BookingAddon is an additional-resource line attached to a booking,
// priced by the same hours x rate x quantity formula as the main resource.
type BookingAddon struct {
	bun.BaseModel `bun:"table:booking_addons"`

	AddonID    string  `json:"addon_id" bun:"addon_id,pk"`
	BookingID  string  `json:"booking_id" bun:"booking_id,notnull"`
	ResourceID string  `json:"resource_id" bun:"resource_id,notnull"`
	Quantity   int     `json:"quantity" bun:"quantity,notnull"`
	Amount     float64 `json:"amount" bun:"amount,notnull"`
}

type AddonRequest struct {
	ResourceID string `json:"resource_id"`
	Quantity   int    `json:"quantity"`
}

type BookingRequest struct {
	ResourceID string         `json:"resource_id"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Addons     []AddonRequest `json:"addons,omitempty"`
}

type BookingUpdateRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ChargeMode discriminates between the automatically computed charge and
// an admin-supplied override at approval time.
type ChargeMode string

const (
	ChargeAuto     ChargeMode = "auto"
	ChargeOverride ChargeMode = "override"
)

type Charge struct {
	Mode   ChargeMode `json:"mode"`
	Amount float64    `json:"amount,omitempty"`
}

type ApproveRequest struct {
	Charge Charge `json:"charge"`
	Notes  string `json:"notes,omitempty"`
}

type RejectRequest struct {
	ReasonCode string `json:"reason_code"`
	Notes      string `json:"notes,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

// RejectionReasons maps reason codes accepted by Reject to the
// human-readable message stored on the booking.
var RejectionReasons = map[string]string{
	"unavailable": "The resource is not available for the requested time window",
	"maintenance": "The resource is scheduled for maintenance",
	"policy":      "The request does not comply with the usage policy",
	"incomplete":  "The request is missing required information",
	"other":       "The request was declined",
}

type BookingWithAddons struct {
	Booking Booking        `json:"booking"`
	Addons  []BookingAddon `json:"addons"`
}
