package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/clock"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type DBLayer interface {
	GetBookingByID(id string) (*models.Booking, error)
	GetAddonsByBooking(bookingID string) ([]models.BookingAddon, error)
	CountOverlapping(resourceID string, start, end time.Time, excludeID string) (int, error)
	CreateBookingWithAddons(b models.Booking, addons []models.BookingAddon) error
	UpdateBooking(b models.Booking) error
	UpdateBookingTimes(b models.Booking) error
	UpdateAddonAmount(addonID string, amount float64) error
	SetPaymentStatus(bookingID string, status models.PaymentStatus) error
	DeleteBookingCascade(id string) error
	ListByUser(userID string) ([]models.Booking, error)
}

type ResourceLock interface {
	LockResource(resourceID, bookingID string) (bool, error)
	UnlockResource(resourceID, bookingID string) error
}

type Catalog interface {
	GetResource(id string) (*models.Resource, error)
}

type Payments interface {
	CreatePaymentOptions(b models.Booking, resourceName string) ([]models.PaymentOption, error)
	GetByBooking(bookingID string) (*models.Payment, error)
	Refund(actor models.Principal, bookingID string, req models.RefundRequest) (*models.Payment, error)
	DeleteByBooking(bookingID string) error
}

type Notifier interface {
	PublishBookingCreated(n models.BookingNotification) error
	PublishBookingApproved(n models.BookingNotification) error
	PublishBookingRejected(n models.BookingNotification) error
	PublishBookingCancelled(n models.BookingNotification) error
}

type AuditTrail interface {
	Record(actor models.Principal, action, entityType, entityID, description string, metadata map[string]interface{})
}

type BookingService struct {
	DB       DBLayer
	Lock     ResourceLock
	Catalog  Catalog
	Payments Payments
	Notifier Notifier
	Audit    AuditTrail
	Clock    clock.Clock
	Logger   *logger.Logger
}

func NewBookingService(db DBLayer, lock ResourceLock, catalog Catalog, payments Payments, notifier Notifier, audit AuditTrail, clk clock.Clock, log *logger.Logger) *BookingService {
	return &BookingService{
		DB:       db,
		Lock:     lock,
		Catalog:  catalog,
		Payments: payments,
		Notifier: notifier,
		Audit:    audit,
		Clock:    clk,
		Logger:   log,
	}
}

// ---------------- CREATE / READ ----------------

// Create validates the requested window, prices it against the catalog and
// inserts a pending booking. The overlap check runs twice: once up front for
// a fast rejection and once more inside the insert transaction, under a
// short per-resource lock, so concurrent requests cannot both slip through.
func (s *BookingService) Create(actor models.Principal, req models.BookingRequest) (*models.BookingWithAddons, error) {
	now := s.Clock.Now()

	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if req.StartTime.Before(now) {
		return nil, apperr.Validation("booking cannot start in the past")
	}

	resource, err := s.Catalog.GetResource(req.ResourceID)
	if err != nil {
		return nil, err
	}
	if !resource.IsActive {
		return nil, apperr.Validation("resource %s is not active", req.ResourceID)
	}

	bookingID := uuid.NewString()
	hours := req.EndTime.Sub(req.StartTime).Hours()

	booking := models.Booking{
		BookingID:     bookingID,
		ResourceID:    req.ResourceID,
		UserID:        actor.ID,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
		Amount:        hours * resource.HourlyRate,
		Currency:      resource.Currency,
		CreatedAt:     now,
	}

	addons := make([]models.BookingAddon, 0, len(req.Addons))
	for _, a := range req.Addons {
		if a.Quantity <= 0 {
			return nil, apperr.Validation("addon %s has non-positive quantity", a.ResourceID)
		}
		addonResource, err := s.Catalog.GetResource(a.ResourceID)
		if err != nil {
			return nil, err
		}
		if !addonResource.IsActive {
			return nil, apperr.Validation("resource %s is not active", a.ResourceID)
		}
		amount := hours * addonResource.HourlyRate * float64(a.Quantity)
		addons = append(addons, models.BookingAddon{
			AddonID:    uuid.NewString(),
			BookingID:  bookingID,
			ResourceID: a.ResourceID,
			Quantity:   a.Quantity,
			Amount:     amount,
		})
		booking.Amount += amount
	}

	// Serialize concurrent creations on the same resource before checking.
	ok, err := s.Lock.LockResource(req.ResourceID, bookingID)
	if err != nil {
		return nil, apperr.External(err, "could not acquire resource lock")
	}
	if !ok {
		return nil, apperr.Conflict("resource %s is being booked by another request, retry shortly", req.ResourceID)
	}
	defer func() {
		if err := s.Lock.UnlockResource(req.ResourceID, bookingID); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("failed to release lock for resource %s: %v", req.ResourceID, err))
		}
	}()

	count, err := s.DB.CountOverlapping(req.ResourceID, req.StartTime, req.EndTime, "")
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperr.Conflict("resource %s is already reserved in the requested window", req.ResourceID)
	}

	if err := s.DB.CreateBookingWithAddons(booking, addons); err != nil {
		return nil, err
	}

	s.Logger.LogBooking("CREATE", bookingID, fmt.Sprintf("resource=%s window=[%s, %s) amount=%.2f",
		req.ResourceID, req.StartTime.Format(time.RFC3339), req.EndTime.Format(time.RFC3339), booking.Amount))

	s.Audit.Record(actor, models.AuditBookingCreated, "booking", bookingID,
		fmt.Sprintf("booking created for resource %s", req.ResourceID),
		map[string]interface{}{
			"resource_id": req.ResourceID,
			"start_time":  req.StartTime,
			"end_time":    req.EndTime,
			"amount":      booking.Amount,
		})

	// Requester and admin each get their own event; either publish failing
	// never blocks the other, or the creation.
	if err := s.Notifier.PublishBookingCreated(s.notification(models.NotifyBookingCreatedUser, booking, "", nil)); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("requester notification publish failed for booking %s: %v", bookingID, err))
	}
	if err := s.Notifier.PublishBookingCreated(s.notification(models.NotifyBookingCreatedAdmin, booking, "", nil)); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("admin notification publish failed for booking %s: %v", bookingID, err))
	}

	return &models.BookingWithAddons{Booking: booking, Addons: addons}, nil
}

// GetBooking returns a booking to its owner or to staff.
func (s *BookingService) GetBooking(actor models.Principal, id string) (*models.BookingWithAddons, error) {
	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.ID && !actor.IsStaff() && actor.Role != models.RoleSystem {
		return nil, apperr.Forbidden("booking %s does not belong to the requester", id)
	}
	addons, err := s.DB.GetAddonsByBooking(id)
	if err != nil {
		return nil, err
	}
	return &models.BookingWithAddons{Booking: *booking, Addons: addons}, nil
}

// ListMine returns the requester's bookings, newest first.
func (s *BookingService) ListMine(actor models.Principal) ([]models.Booking, error) {
	return s.DB.ListByUser(actor.ID)
}

// CheckAvailability reports whether a window is free on a resource without
// creating anything. A non-empty excludeID ignores that booking's own row,
// so an edit can check its new window.
func (s *BookingService) CheckAvailability(resourceID string, start, end time.Time, excludeID string) (bool, error) {
	if err := validateWindow(start, end); err != nil {
		return false, err
	}
	if _, err := s.Catalog.GetResource(resourceID); err != nil {
		return false, err
	}
	count, err := s.DB.CountOverlapping(resourceID, start, end, excludeID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// ---------------- REQUESTER TRANSITIONS ----------------

// Update moves a pending booking to a new window and reprices it. Only the
// owner may edit, and only while the booking is still pending. The past-date
// rule is not re-applied here: a booking created in time may be edited even
// after its original start has come around.
func (s *BookingService) Update(actor models.Principal, id string, req models.BookingUpdateRequest) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.ID {
		return nil, apperr.Forbidden("booking %s does not belong to the requester", id)
	}
	if booking.Status != models.BookingPending {
		return nil, apperr.Invariant("only pending bookings can be edited, booking %s is %s", id, booking.Status)
	}
	if err := validateWindow(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	resource, err := s.Catalog.GetResource(booking.ResourceID)
	if err != nil {
		return nil, err
	}
	addons, err := s.DB.GetAddonsByBooking(id)
	if err != nil {
		return nil, err
	}

	hours := req.EndTime.Sub(req.StartTime).Hours()
	amount := hours * resource.HourlyRate

	// Reprice addon lines for the new duration.
	repriced := make(map[string]float64, len(addons))
	for _, a := range addons {
		addonResource, err := s.Catalog.GetResource(a.ResourceID)
		if err != nil {
			return nil, err
		}
		lineAmount := hours * addonResource.HourlyRate * float64(a.Quantity)
		repriced[a.AddonID] = lineAmount
		amount += lineAmount
	}

	booking.StartTime = req.StartTime
	booking.EndTime = req.EndTime
	booking.Amount = amount

	if err := s.DB.UpdateBookingTimes(*booking); err != nil {
		return nil, err
	}
	for addonID, lineAmount := range repriced {
		if err := s.DB.UpdateAddonAmount(addonID, lineAmount); err != nil {
			return nil, err
		}
	}

	s.Logger.LogBooking("UPDATE", id, fmt.Sprintf("window=[%s, %s) amount=%.2f",
		req.StartTime.Format(time.RFC3339), req.EndTime.Format(time.RFC3339), amount))

	s.Audit.Record(actor, models.AuditBookingUpdated, "booking", id,
		"booking window changed",
		map[string]interface{}{
			"start_time": req.StartTime,
			"end_time":   req.EndTime,
			"amount":     amount,
		})

	return booking, nil
}

// Cancel cancels a live booking. Owners cancel their own bookings; staff
// may cancel anyone's. A booking whose payment already succeeded gets a
// best-effort refund: a gateway failure is logged but never blocks the
// cancellation itself.
func (s *BookingService) Cancel(actor models.Principal, id string, req models.CancelRequest) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.ID && !actor.IsStaff() && actor.Role != models.RoleSystem {
		return nil, apperr.Forbidden("booking %s does not belong to the requester", id)
	}
	if !booking.Status.Live() {
		return nil, apperr.Invariant("cannot cancel a booking in status %s", booking.Status)
	}

	return s.cancel(actor, booking, req.Reason, models.AuditBookingCancelled, false)
}

// AutoCancel is the scheduler's transition for approved bookings whose
// payment deadline lapsed. It marks the payment failed and runs the same
// cancellation path as an interactive cancel, attributed to the system.
func (s *BookingService) AutoCancel(id string, reason string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingApproved {
		return nil, apperr.Invariant("cannot auto-cancel a booking in status %s", booking.Status)
	}

	booking.PaymentStatus = models.PaymentFailed
	return s.cancel(models.SystemPrincipal(), booking, reason, models.AuditBookingAutoCancel, true)
}

func (s *BookingService) cancel(actor models.Principal, booking *models.Booking, reason, auditAction string, paymentFailed bool) (*models.Booking, error) {
	// Refund before flipping state, so a succeeded payment is never left
	// attached to a cancelled booking without at least an attempt.
	if !paymentFailed {
		payment, err := s.Payments.GetByBooking(booking.BookingID)
		if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			s.Logger.Warn("BOOKING", fmt.Sprintf("could not load payment for booking %s: %v", booking.BookingID, err))
		}
		if payment != nil && payment.Status == models.PaymentSucceeded {
			refundReason := "booking cancelled"
			if reason != "" {
				refundReason = refundReason + ": " + reason
			}
			if _, err := s.Payments.Refund(models.SystemPrincipal(), booking.BookingID, models.RefundRequest{Reason: refundReason}); err != nil {
				s.Logger.Error("BOOKING", fmt.Sprintf("refund failed for booking %s: %v", booking.BookingID, err))
			} else {
				booking.PaymentStatus = models.PaymentRefunded
			}
		}
	}

	booking.Status = models.BookingCancelled
	booking.CancellationReason = reason
	booking.CancelledAt = s.Clock.Now()

	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, err
	}

	s.Logger.LogBooking("CANCEL", booking.BookingID, fmt.Sprintf("actor=%s reason=%q", actor.ID, reason))

	s.Audit.Record(actor, auditAction, "booking", booking.BookingID,
		"booking cancelled",
		map[string]interface{}{"reason": reason})

	if err := s.Notifier.PublishBookingCancelled(s.notification(models.NotifyBookingCancelled, *booking, reason, nil)); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("notification publish failed for booking %s: %v", booking.BookingID, err))
	}

	return booking, nil
}

// ---------------- STAFF TRANSITIONS ----------------

// Approve moves a pending booking to approved, fixing the final charge and
// materializing the payment options. A failure while materializing an
// individual option never rolls back the approval: the requester can still
// pay through a retry endpoint.
func (s *BookingService) Approve(actor models.Principal, id string, req models.ApproveRequest) (*models.Booking, []models.PaymentOption, error) {
	if err := auth.Require(actor, auth.ActionBookingApprove); err != nil {
		return nil, nil, err
	}

	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, nil, err
	}
	if booking.Status != models.BookingPending {
		return nil, nil, apperr.Invariant("cannot approve a booking in status %s", booking.Status)
	}

	switch req.Charge.Mode {
	case models.ChargeAuto, "":
		// keep the computed amount
	case models.ChargeOverride:
		if req.Charge.Amount <= 0 {
			return nil, nil, apperr.Validation("charge override must be a positive amount")
		}
		booking.Amount = req.Charge.Amount
	default:
		return nil, nil, apperr.Validation("unknown charge mode %q", req.Charge.Mode)
	}

	booking.Status = models.BookingApproved
	booking.ApprovedBy = actor.ID
	booking.ApprovedAt = s.Clock.Now()

	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, nil, err
	}

	s.Logger.LogBooking("APPROVE", id, fmt.Sprintf("approver=%s amount=%.2f mode=%s", actor.ID, booking.Amount, req.Charge.Mode))

	s.Audit.Record(actor, models.AuditBookingApproved, "booking", id,
		"booking approved",
		map[string]interface{}{
			"amount":      booking.Amount,
			"charge_mode": req.Charge.Mode,
			"notes":       req.Notes,
		})

	resourceName := booking.ResourceID
	if resource, err := s.Catalog.GetResource(booking.ResourceID); err == nil {
		resourceName = resource.Name
	}

	options, err := s.Payments.CreatePaymentOptions(*booking, resourceName)
	if err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("payment materialization failed for booking %s: %v", id, err))
		options = nil
	}

	if err := s.Notifier.PublishBookingApproved(s.notification(models.NotifyBookingApproved, *booking, "", options)); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("notification publish failed for booking %s: %v", id, err))
	}

	return booking, options, nil
}

// Reject declines a pending booking with a reason from the fixed code set.
func (s *BookingService) Reject(actor models.Principal, id string, req models.RejectRequest) (*models.Booking, error) {
	if err := auth.Require(actor, auth.ActionBookingReject); err != nil {
		return nil, err
	}

	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingPending {
		return nil, apperr.Invariant("cannot reject a booking in status %s", booking.Status)
	}

	message, ok := models.RejectionReasons[req.ReasonCode]
	if !ok {
		return nil, apperr.Validation("unknown rejection reason code %q", req.ReasonCode)
	}
	reason := message
	if req.Notes != "" {
		reason = message + ": " + req.Notes
	}

	// A payment that succeeded before approval (direct pay) gets a
	// best-effort refund; a gateway failure never blocks the rejection.
	payment, err := s.Payments.GetByBooking(booking.BookingID)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		s.Logger.Warn("BOOKING", fmt.Sprintf("could not load payment for booking %s: %v", booking.BookingID, err))
	}
	if payment != nil && payment.Status == models.PaymentSucceeded {
		if _, err := s.Payments.Refund(models.SystemPrincipal(), booking.BookingID, models.RefundRequest{Reason: "booking rejected: " + reason}); err != nil {
			s.Logger.Error("BOOKING", fmt.Sprintf("refund failed for booking %s: %v", booking.BookingID, err))
		} else {
			booking.PaymentStatus = models.PaymentRefunded
		}
	}

	booking.Status = models.BookingRejected
	booking.RejectedBy = actor.ID
	booking.RejectedAt = s.Clock.Now()
	booking.RejectionReason = reason

	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, err
	}

	s.Logger.LogBooking("REJECT", id, fmt.Sprintf("rejecter=%s code=%s", actor.ID, req.ReasonCode))

	s.Audit.Record(actor, models.AuditBookingRejected, "booking", id,
		"booking rejected",
		map[string]interface{}{
			"reason_code": req.ReasonCode,
			"reason":      reason,
		})

	if err := s.Notifier.PublishBookingRejected(s.notification(models.NotifyBookingRejected, *booking, reason, nil)); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("notification publish failed for booking %s: %v", id, err))
	}

	return booking, nil
}

// MarkPaymentReceived flips the payment-received flag exactly once. When
// both completion flags are set the booking moves to completed.
func (s *BookingService) MarkPaymentReceived(actor models.Principal, id string) (*models.Booking, error) {
	if err := auth.Require(actor, auth.ActionMarkPaymentReceived); err != nil {
		return nil, err
	}

	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingApproved {
		return nil, apperr.Invariant("cannot mark payment received on a booking in status %s", booking.Status)
	}
	if booking.PaymentReceived {
		return nil, apperr.Invariant("payment already marked received for booking %s", id)
	}

	booking.PaymentReceived = true
	if booking.PaymentStatus == models.PaymentPending || booking.PaymentStatus == models.PaymentProcessing {
		booking.PaymentStatus = models.PaymentSucceeded
	}
	s.completeIfReady(actor, booking)

	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, err
	}

	s.Logger.LogBooking("PAYMENT_RECEIVED", id, fmt.Sprintf("actor=%s", actor.ID))
	s.Audit.Record(actor, models.AuditPaymentReceived, "booking", id, "payment marked as received", nil)

	return booking, nil
}

// MarkInvoiceIssued flips the invoice-issued flag exactly once. When both
// completion flags are set the booking moves to completed.
func (s *BookingService) MarkInvoiceIssued(actor models.Principal, id string) (*models.Booking, error) {
	if err := auth.Require(actor, auth.ActionMarkInvoiceIssued); err != nil {
		return nil, err
	}

	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingApproved {
		return nil, apperr.Invariant("cannot mark invoice issued on a booking in status %s", booking.Status)
	}
	if booking.InvoiceIssued {
		return nil, apperr.Invariant("invoice already marked issued for booking %s", id)
	}

	booking.InvoiceIssued = true
	s.completeIfReady(actor, booking)

	if err := s.DB.UpdateBooking(*booking); err != nil {
		return nil, err
	}

	s.Logger.LogBooking("INVOICE_ISSUED", id, fmt.Sprintf("actor=%s", actor.ID))
	s.Audit.Record(actor, models.AuditInvoiceIssued, "booking", id, "invoice marked as issued", nil)

	return booking, nil
}

func (s *BookingService) completeIfReady(actor models.Principal, booking *models.Booking) {
	if booking.PaymentReceived && booking.InvoiceIssued {
		booking.Status = models.BookingCompleted
		s.Logger.LogBooking("COMPLETE", booking.BookingID, "both completion flags set")
		s.Audit.Record(actor, models.AuditBookingCompleted, "booking", booking.BookingID,
			"booking completed", nil)
	}
}

// Purge permanently removes a terminal booking, its addon lines and its
// payment record. The audit entry keeps a snapshot of the removed booking.
func (s *BookingService) Purge(actor models.Principal, id string) error {
	if err := auth.Require(actor, auth.ActionBookingPurge); err != nil {
		return err
	}

	booking, err := s.DB.GetBookingByID(id)
	if err != nil {
		return err
	}
	if booking.Status.Live() {
		return apperr.Invariant("cannot purge a live booking, booking %s is %s", id, booking.Status)
	}

	if err := s.Payments.DeleteByBooking(id); err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return err
	}
	if err := s.DB.DeleteBookingCascade(id); err != nil {
		return err
	}

	s.Logger.LogBooking("PURGE", id, fmt.Sprintf("actor=%s", actor.ID))

	s.Audit.Record(actor, models.AuditBookingPurged, "booking", id,
		"booking purged",
		map[string]interface{}{
			"resource_id": booking.ResourceID,
			"user_id":     booking.UserID,
			"status":      booking.Status,
			"start_time":  booking.StartTime,
			"end_time":    booking.EndTime,
			"amount":      booking.Amount,
		})

	return nil
}

// ---------------- HELPERS ----------------

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return apperr.Validation("start_time and end_time are required")
	}
	if !start.Before(end) {
		return apperr.Validation("start_time must be before end_time")
	}
	return nil
}

func (s *BookingService) notification(kind string, b models.Booking, reason string, options []models.PaymentOption) models.BookingNotification {
	return models.BookingNotification{
		Kind:       kind,
		BookingID:  b.BookingID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		Status:     b.Status,
		Amount:     b.Amount,
		Currency:   b.Currency,
		Reason:     reason,
		Options:    options,
		Timestamp:  s.Clock.Now(),
	}
}
