package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/booking"
	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- BOOKINGS ----------------

// GetBookingByID → fetch one booking by its ID
func (d *DB) GetBookingByID(id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(context.Background())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("booking %s not found", id)
		}
		return nil, err
	}
	return &b, nil
}

// GetAddonsByBooking → fetch all additional-resource lines of a booking
func (d *DB) GetAddonsByBooking(bookingID string) ([]models.BookingAddon, error) {
	var addons []models.BookingAddon
	err := d.Bun.NewSelect().
		Model(&addons).
		Where("booking_id = ?", bookingID).
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return addons, nil
}

// overlapQuery builds the live-overlap count for a candidate interval.
// Two half-open intervals overlap iff A.start < B.end AND B.start < A.end.
func (d *DB) overlapQuery(resourceID string, start, end time.Time, excludeID string) *bun.SelectQuery {
	q := d.Bun.NewSelect().
		Model((*models.Booking)(nil)).
		Where("resource_id = ?", resourceID).
		Where("status IN (?)", bun.In(booking.LiveStatuses)).
		Where("start_time < ?", end).
		Where("end_time > ?", start)
	if excludeID != "" {
		q = q.Where("booking_id != ?", excludeID)
	}
	return q
}

// CountOverlapping → number of live bookings that intersect the candidate
// interval on the resource. excludeID lets an in-place edit ignore its own row.
func (d *DB) CountOverlapping(resourceID string, start, end time.Time, excludeID string) (int, error) {
	return d.overlapQuery(resourceID, start, end, excludeID).Count(context.Background())
}

// CreateBookingWithAddons inserts a booking and its addon lines. The
// overlap check is re-run inside the same transaction so two concurrent
// creations for the same window cannot both pass the check.
func (d *DB) CreateBookingWithAddons(b models.Booking, addons []models.BookingAddon) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Where("resource_id = ?", b.ResourceID).
			Where("status IN (?)", bun.In(booking.LiveStatuses)).
			Where("start_time < ?", b.EndTime).
			Where("end_time > ?", b.StartTime)
		count, err := q.Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("resource %s is already reserved in the requested window", b.ResourceID)
		}

		if _, err := tx.NewInsert().Model(&b).Exec(ctx); err != nil {
			return err
		}
		if len(addons) > 0 {
			if _, err := tx.NewInsert().Model(&addons).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateBooking → update the mutable fields of a booking
func (d *DB) UpdateBooking(b models.Booking) error {
	_, err := d.Bun.NewUpdate().
		Model(&b).
		Column("start_time", "end_time", "status", "payment_status", "amount",
			"approved_by", "rejected_by", "rejection_reason", "cancellation_reason",
			"payment_received", "invoice_issued", "reminder_sent",
			"approved_at", "rejected_at", "cancelled_at").
		Where("booking_id = ?", b.BookingID).
		Exec(context.Background())
	return err
}

// UpdateBookingTimes moves a booking's window, re-running the overlap
// check (excluding the booking's own row) inside one transaction.
func (d *DB) UpdateBookingTimes(b models.Booking) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		count, err := tx.NewSelect().
			Model((*models.Booking)(nil)).
			Where("resource_id = ?", b.ResourceID).
			Where("status IN (?)", bun.In(booking.LiveStatuses)).
			Where("start_time < ?", b.EndTime).
			Where("end_time > ?", b.StartTime).
			Where("booking_id != ?", b.BookingID).
			Count(ctx)
		if err != nil {
			return err
		}
		if count > 0 {
			return apperr.Conflict("resource %s is already reserved in the requested window", b.ResourceID)
		}

		_, err = tx.NewUpdate().
			Model(&b).
			Column("start_time", "end_time", "amount").
			Where("booking_id = ?", b.BookingID).
			Exec(ctx)
		return err
	})
}

// UpdateAddonAmount → reprice one addon line after a window change
func (d *DB) UpdateAddonAmount(addonID string, amount float64) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.BookingAddon)(nil)).
		Set("amount = ?", amount).
		Where("addon_id = ?", addonID).
		Exec(context.Background())
	return err
}

// SetPaymentStatus → flip only the payment-status mirror on the booking
func (d *DB) SetPaymentStatus(bookingID string, status models.PaymentStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("payment_status = ?", status).
		Where("booking_id = ?", bookingID).
		Exec(context.Background())
	return err
}

// DeleteBookingCascade removes a booking and its addon lines. Used only by
// the administrative purge.
func (d *DB) DeleteBookingCascade(id string) error {
	ctx := context.Background()
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.BookingAddon)(nil)).
			Where("booking_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*models.Booking)(nil)).
			Where("booking_id = ?", id).
			Exec(ctx)
		return err
	})
}

// ---------------- SWEEP QUERIES ----------------

// ListDueReminders → approved bookings still awaiting payment, approved at
// or before the cutoff, not yet reminded.
func (d *DB) ListDueReminders(cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", models.BookingApproved).
		Where("payment_status = ?", models.PaymentPending).
		Where("reminder_sent = ?", false).
		Where("approved_at <= ?", cutoff).
		Order("approved_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkReminderSent flips the reminder flag exactly once; the affected-row
// count guards against a concurrent sweep re-flagging.
func (d *DB) MarkReminderSent(bookingID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("reminder_sent = ?", true).
		Where("booking_id = ?", bookingID).
		Where("reminder_sent = ?", false).
		Exec(context.Background())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListPaymentOverdue → approved bookings whose payment deadline lapsed.
func (d *DB) ListPaymentOverdue(cutoff time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("status = ?", models.BookingApproved).
		Where("payment_status = ?", models.PaymentPending).
		Where("approved_at < ?", cutoff).
		Order("approved_at ASC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListByUser → all bookings of a requester, newest first.
func (d *DB) ListByUser(userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(context.Background())
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
