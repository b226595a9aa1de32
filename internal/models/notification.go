package models

import "time"

// Notification kinds published to the dispatcher. The dispatcher (email,
// PDF rendering) is an external consumer; these payloads are its contract.
const (
	NotifyBookingCreatedAdmin = "booking_created_admin"
	NotifyBookingCreatedUser  = "booking_created_user"
	NotifyBookingApproved     = "booking_approved"
	NotifyBookingRejected     = "booking_rejected"
	NotifyBookingCancelled    = "booking_cancelled"
	NotifyPaymentReminder     = "payment_reminder"
)

type BookingNotification struct {
	Kind       string          `json:"kind"`
	BookingID  string          `json:"booking_id"`
	ResourceID string          `json:"resource_id"`
	UserID     string          `json:"user_id"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
	Status     BookingStatus   `json:"status"`
	Amount     float64         `json:"amount"`
	Currency   string          `json:"currency"`
	Reason     string          `json:"reason,omitempty"`
	Options    []PaymentOption `json:"payment_options,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

type PaymentReminderNotification struct {
	Kind           string    `json:"kind"`
	BookingID      string    `json:"booking_id"`
	UserID         string    `json:"user_id"`
	PaymentURL     string    `json:"payment_url"`
	QRCode         string    `json:"qr_code,omitempty"`
	HoursRemaining int       `json:"hours_remaining"`
	ExpiresAt      time.Time `json:"expires_at"`
	Timestamp      time.Time `json:"timestamp"`
}
