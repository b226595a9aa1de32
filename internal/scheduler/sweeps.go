package scheduler

import (
	"fmt"
	"time"

	"ms-booking/internal/apperr"
	"ms-booking/internal/clock"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/qr"
)

type BookingDB interface {
	ListDueReminders(cutoff time.Time) ([]models.Booking, error)
	MarkReminderSent(bookingID string) (bool, error)
	ListPaymentOverdue(cutoff time.Time) ([]models.Booking, error)
}

type BookingTransitions interface {
	AutoCancel(id string, reason string) (*models.Booking, error)
}

type PaymentReader interface {
	GetByBooking(bookingID string) (*models.Payment, error)
}

type SettingsReader interface {
	Get() (*models.PaymentSettings, error)
}

type ReminderPublisher interface {
	PublishPaymentReminder(n models.PaymentReminderNotification) error
}

type AuditPurger interface {
	PurgeExpired() (int64, error)
}

// Sweeps holds the periodic maintenance passes. Every sweep isolates
// per-item failures: one broken booking is logged and skipped, the rest of
// the batch still runs.
type Sweeps struct {
	DB       BookingDB
	Bookings BookingTransitions
	Payments PaymentReader
	Settings SettingsReader
	Notifier ReminderPublisher
	Audit    AuditPurger
	Clock    clock.Clock
	Logger   *logger.Logger

	// PaymentPageURL is the fallback link for reminders when a booking has
	// no live checkout session.
	PaymentPageURL string
}

// RunReminderSweep sends one payment reminder per approved, unpaid booking
// whose deadline falls within the configured lead window. The reminder
// flag is flipped through a guarded update, so a sweep racing another
// instance sends at most one reminder per booking.
func (s *Sweeps) RunReminderSweep() {
	settings, err := s.Settings.Get()
	if err != nil {
		s.Logger.Error("SWEEP", fmt.Sprintf("reminder sweep could not load settings: %v", err))
		return
	}
	if !settings.RemindersEnabled {
		s.Logger.LogSweep("REMINDER", "reminders disabled, skipping")
		return
	}

	now := s.Clock.Now()
	deadline := time.Duration(settings.PaymentDeadlineDays) * 24 * time.Hour
	lead := time.Duration(settings.ReminderLeadHours) * time.Hour

	// A booking is due once it has been approved for at least the lead
	// window, a booking approved exactly lead hours ago included.
	cutoff := now.Add(-lead)

	due, err := s.DB.ListDueReminders(cutoff)
	if err != nil {
		s.Logger.Error("SWEEP", fmt.Sprintf("reminder sweep query failed: %v", err))
		return
	}
	if len(due) == 0 {
		return
	}

	s.Logger.LogSweep("REMINDER", fmt.Sprintf("%d bookings due for a payment reminder", len(due)))

	sent := 0
	for _, booking := range due {
		if err := s.remind(booking, now, deadline); err != nil {
			s.Logger.Error("SWEEP", fmt.Sprintf("reminder failed for booking %s: %v", booking.BookingID, err))
			continue
		}
		sent++
	}

	s.Logger.LogSweep("REMINDER", fmt.Sprintf("sent %d of %d reminders", sent, len(due)))
}

func (s *Sweeps) remind(booking models.Booking, now time.Time, deadline time.Duration) error {
	expiresAt := booking.ApprovedAt.Add(deadline)
	paymentURL := fmt.Sprintf("%s/%s", s.PaymentPageURL, booking.BookingID)
	qrCode := ""

	payment, err := s.Payments.GetByBooking(booking.BookingID)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}
	if payment != nil {
		if !payment.ExpiresAt.IsZero() {
			expiresAt = payment.ExpiresAt
		}
		if payment.CheckoutURL != "" {
			paymentURL = payment.CheckoutURL
		}
	}

	if encoded, err := qr.EncodeURL(paymentURL); err == nil {
		qrCode = encoded
	}

	hoursRemaining := int(expiresAt.Sub(now).Hours())
	if hoursRemaining < 0 {
		hoursRemaining = 0
	}

	if err := s.Notifier.PublishPaymentReminder(models.PaymentReminderNotification{
		Kind:           models.NotifyPaymentReminder,
		BookingID:      booking.BookingID,
		UserID:         booking.UserID,
		PaymentURL:     paymentURL,
		QRCode:         qrCode,
		HoursRemaining: hoursRemaining,
		ExpiresAt:      expiresAt,
		Timestamp:      now,
	}); err != nil {
		return err
	}

	flagged, err := s.DB.MarkReminderSent(booking.BookingID)
	if err != nil {
		return err
	}
	if !flagged {
		s.Logger.Warn("SWEEP", fmt.Sprintf("booking %s was already flagged as reminded", booking.BookingID))
	}
	return nil
}

// RunAutoCancelSweep cancels approved bookings whose payment deadline
// lapsed without the money arriving.
func (s *Sweeps) RunAutoCancelSweep() {
	settings, err := s.Settings.Get()
	if err != nil {
		s.Logger.Error("SWEEP", fmt.Sprintf("auto-cancel sweep could not load settings: %v", err))
		return
	}

	now := s.Clock.Now()
	cutoff := now.Add(-time.Duration(settings.PaymentDeadlineDays) * 24 * time.Hour)

	overdue, err := s.DB.ListPaymentOverdue(cutoff)
	if err != nil {
		s.Logger.Error("SWEEP", fmt.Sprintf("auto-cancel sweep query failed: %v", err))
		return
	}
	if len(overdue) == 0 {
		return
	}

	s.Logger.LogSweep("AUTO_CANCEL", fmt.Sprintf("%d bookings past the payment deadline", len(overdue)))

	cancelled := 0
	for _, booking := range overdue {
		if _, err := s.Bookings.AutoCancel(booking.BookingID, "payment deadline expired"); err != nil {
			s.Logger.Error("SWEEP", fmt.Sprintf("auto-cancel failed for booking %s: %v", booking.BookingID, err))
			continue
		}
		cancelled++
	}

	s.Logger.LogSweep("AUTO_CANCEL", fmt.Sprintf("cancelled %d of %d overdue bookings", cancelled, len(overdue)))
}

// RunRetentionSweep drops audit entries past the retention period.
func (s *Sweeps) RunRetentionSweep() {
	removed, err := s.Audit.PurgeExpired()
	if err != nil {
		s.Logger.Error("SWEEP", fmt.Sprintf("retention sweep failed: %v", err))
		return
	}
	s.Logger.LogSweep("RETENTION", fmt.Sprintf("removed %d expired audit entries", removed))
}
