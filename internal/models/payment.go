package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMethod string

const (
	MethodGatewayCard  PaymentMethod = "gateway_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

// Payment is the single payment record of a booking. One row carries both
// payment paths: the gateway session/intent identifiers when a hosted
// checkout was materialized, and the transfer reference/note when the
// bank-transfer option was. At most one Payment exists per booking.
type Payment struct {
	PaymentID string        `json:"payment_id"`
	BookingID string        `json:"booking_id"`
	Amount    float64       `json:"amount"`
	Currency  string        `json:"currency"`
	Method    PaymentMethod `json:"method"`
	Status    PaymentStatus `json:"status"`

	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
	CheckoutURL       string `json:"checkout_url,omitempty"`

	TransferReference  string `json:"transfer_reference,omitempty"`
	TransferNote       string `json:"transfer_note,omitempty"`
	TransferVerified   bool   `json:"transfer_verified"`
	TransferVerifiedBy string `json:"transfer_verified_by,omitempty"`

	RefundedAmount float64   `json:"refunded_amount,omitempty"`
	RefundedAt     time.Time `json:"refunded_at,omitempty"`

	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// PaymentOption is what the orchestrator hands back after materializing a
// payment path for an approved booking. It is embedded in the approval
// notification so the requester sees how to pay.
type PaymentOption struct {
	Method      PaymentMethod `json:"method"`
	AmountMinor int64         `json:"amount_minor"`
	Currency    string        `json:"currency"`
	ExpiresAt   time.Time     `json:"expires_at"`

	// Gateway path.
	CheckoutURL string `json:"checkout_url,omitempty"`
	QRCode      string `json:"qr_code,omitempty"` // base64 PNG of the checkout URL

	// Bank-transfer path.
	Reference       string `json:"reference,omitempty"`
	TransferNote    string `json:"transfer_note,omitempty"`
	BankName        string `json:"bank_name,omitempty"`
	BankAccountName string `json:"bank_account_name,omitempty"`
	BankIBAN        string `json:"bank_iban,omitempty"`
	BankBIC         string `json:"bank_bic,omitempty"`
}

type DirectPaymentRequest struct {
	BookingID string        `json:"booking_id"`
	Method    PaymentMethod `json:"method"`
}

type RefundRequest struct {
	Amount *float64 `json:"amount,omitempty"` // nil means full refund
	Reason string   `json:"reason,omitempty"`
}
