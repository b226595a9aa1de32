package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/clock"
	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment/qr"
	"ms-booking/internal/payment/storage"
	"ms-booking/internal/utils"
)

// stripeTimeout bounds every outbound gateway call.
const stripeTimeout = 15 * time.Second

type BookingDB interface {
	GetBookingByID(id string) (*models.Booking, error)
	SetPaymentStatus(bookingID string, status models.PaymentStatus) error
}

type SettingsStore interface {
	Get() (*models.PaymentSettings, error)
	Update(req models.SettingsUpdateRequest) (*models.PaymentSettings, error)
	GatewaySecret() (string, error)
}

type AuditTrail interface {
	Record(actor models.Principal, action, entityType, entityID, description string, metadata map[string]interface{})
}

// Service orchestrates the payment lifecycle of approved bookings: hosted
// checkout sessions, manual bank transfers, webhook confirmations and
// refunds. Each booking has at most one payment row; the row carries both
// payment paths until one of them completes.
type Service struct {
	Store    storage.Store
	Bookings BookingDB
	Settings SettingsStore
	Audit    AuditTrail
	Clock    clock.Clock
	Logger   *logger.Logger

	StripeCfg     config.StripeConfig
	defaultClient *client.API
}

func NewService(store storage.Store, bookings BookingDB, settings SettingsStore, audit AuditTrail, clk clock.Clock, log *logger.Logger, stripeCfg config.StripeConfig) *Service {
	var sc *client.API
	if stripeCfg.SecretKey != "" {
		sc = client.New(stripeCfg.SecretKey, nil)
	}
	return &Service{
		Store:         store,
		Bookings:      bookings,
		Settings:      settings,
		Audit:         audit,
		Clock:         clk,
		Logger:        log,
		StripeCfg:     stripeCfg,
		defaultClient: sc,
	}
}

// stripeClient returns the gateway client, preferring the admin-stored
// credential over the process-wide default.
func (s *Service) stripeClient() (*client.API, error) {
	secret, err := s.Settings.GatewaySecret()
	if err != nil {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("could not read stored gateway secret, falling back to default: %v", err))
	}
	if secret != "" {
		return client.New(secret, nil), nil
	}
	if s.defaultClient == nil {
		return nil, apperr.External(nil, "payment gateway is not configured")
	}
	return s.defaultClient, nil
}

// ---------------- OPTION MATERIALIZATION ----------------

// CreatePaymentOptions builds the payment paths for a freshly approved
// booking and persists the single payment row. A failure materializing one
// option is logged and skipped; only when no option at all could be built
// does the call fail.
func (s *Service) CreatePaymentOptions(b models.Booking, resourceName string) ([]models.PaymentOption, error) {
	settings, err := s.Settings.Get()
	if err != nil {
		return nil, err
	}

	if existing, err := s.Store.GetPaymentByBookingID(b.BookingID); err == nil && existing != nil {
		return nil, apperr.Conflict("booking %s already has payment %s", b.BookingID, existing.PaymentID)
	}

	now := s.Clock.Now()
	amountMinor := toMinorUnits(b.Amount)

	payment := &models.Payment{
		PaymentID: utils.GeneratePaymentID(),
		BookingID: b.BookingID,
		Amount:    b.Amount,
		Currency:  b.Currency,
		Status:    models.PaymentPending,
		ExpiresAt: now.Add(time.Duration(settings.PaymentDeadlineDays) * 24 * time.Hour),
		CreatedAt: now,
	}

	var options []models.PaymentOption

	if settings.CardEnabled {
		option, err := s.materializeCheckout(payment, b, resourceName, amountMinor)
		if err != nil {
			s.Logger.Error("PAYMENT", fmt.Sprintf("checkout materialization failed for booking %s: %v", b.BookingID, err))
		} else {
			options = append(options, *option)
		}
	}

	if settings.BankTransferEnabled {
		option := s.materializeTransfer(payment, settings, b, resourceName, amountMinor)
		options = append(options, *option)
	}

	if len(options) == 0 {
		return nil, apperr.External(nil, "no payment option could be materialized for booking %s", b.BookingID)
	}

	if err := s.Store.SavePayment(payment); err != nil {
		return nil, err
	}

	s.Logger.LogPayment("CREATE", payment.PaymentID, fmt.Sprintf("booking=%s options=%d amount=%.2f %s",
		b.BookingID, len(options), b.Amount, b.Currency))

	s.Audit.Record(models.SystemPrincipal(), models.AuditPaymentCreated, "payment", payment.PaymentID,
		fmt.Sprintf("payment options materialized for booking %s", b.BookingID),
		map[string]interface{}{
			"booking_id": b.BookingID,
			"amount":     b.Amount,
			"currency":   b.Currency,
			"options":    len(options),
		})

	return options, nil
}

func (s *Service) materializeCheckout(payment *models.Payment, b models.Booking, resourceName string, amountMinor int64) (*models.PaymentOption, error) {
	sc, err := s.stripeClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), stripeTimeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.StripeCfg.SuccessURL),
		CancelURL:  stripe.String(s.StripeCfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(b.Currency),
					UnitAmount: stripe.Int64(amountMinor),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Booking %s: %s", shortID(b.BookingID), resourceName)),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		// Stripe caps hosted sessions at 24 hours; the retry endpoint mints
		// a new one when this lapses before the payment deadline.
		ExpiresAt: stripe.Int64(s.Clock.Now().Add(24 * time.Hour).Unix()),
	}
	params.AddMetadata("booking_id", b.BookingID)
	params.AddExpand("payment_intent")

	session, err := sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, apperr.External(err, "failed to create checkout session")
	}

	payment.Method = models.MethodGatewayCard
	payment.CheckoutSessionID = session.ID
	payment.CheckoutURL = session.URL
	if session.PaymentIntent != nil {
		payment.PaymentIntentID = session.PaymentIntent.ID
	}

	option := &models.PaymentOption{
		Method:      models.MethodGatewayCard,
		AmountMinor: amountMinor,
		Currency:    b.Currency,
		ExpiresAt:   payment.ExpiresAt,
		CheckoutURL: session.URL,
	}

	if encoded, err := qr.EncodeURL(session.URL); err != nil {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("QR encoding failed for booking %s: %v", b.BookingID, err))
	} else {
		option.QRCode = encoded
	}

	return option, nil
}

func (s *Service) materializeTransfer(payment *models.Payment, settings *models.PaymentSettings, b models.Booking, resourceName string, amountMinor int64) *models.PaymentOption {
	reference := utils.GenerateTransferReference(b.BookingID, s.Clock.Now())
	note := renderTransferNote(settings.TransferNoteTemplate, reference, resourceName, b.StartTime)

	if payment.Method == "" {
		payment.Method = models.MethodBankTransfer
	}
	payment.TransferReference = reference
	payment.TransferNote = note

	return &models.PaymentOption{
		Method:          models.MethodBankTransfer,
		AmountMinor:     amountMinor,
		Currency:        b.Currency,
		ExpiresAt:       payment.ExpiresAt,
		Reference:       reference,
		TransferNote:    note,
		BankName:        settings.BankName,
		BankAccountName: settings.BankAccountName,
		BankIBAN:        settings.BankIBAN,
		BankBIC:         settings.BankBIC,
	}
}

// CreateDirectPayment is the requester's own payment entry point. For a
// booking without a payment it records a fresh one, pre-approval included.
// For an approved booking whose payment already exists it re-materializes
// a lapsed checkout session or returns the still-valid bank details; any
// other second creation attempt is a conflict.
func (s *Service) CreateDirectPayment(actor models.Principal, req models.DirectPaymentRequest) (*models.PaymentOption, error) {
	booking, err := s.Bookings.GetBookingByID(req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.ID && !actor.IsStaff() {
		return nil, apperr.Forbidden("booking %s does not belong to the requester", req.BookingID)
	}
	if !booking.Status.Live() {
		return nil, apperr.Invariant("cannot pay a booking in status %s", booking.Status)
	}

	payment, err := s.Store.GetPaymentByBookingID(req.BookingID)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return s.insertDirectPayment(actor, booking, req.Method)
	}
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentSucceeded {
		return nil, apperr.Invariant("booking %s is already paid", req.BookingID)
	}
	if booking.Status != models.BookingApproved {
		return nil, apperr.Conflict("booking %s already has payment %s", req.BookingID, payment.PaymentID)
	}

	amountMinor := toMinorUnits(payment.Amount)

	if req.Method == models.MethodBankTransfer {
		settings, err := s.Settings.Get()
		if err != nil {
			return nil, err
		}
		if !settings.BankTransferEnabled {
			return nil, apperr.Validation("bank transfer payments are disabled")
		}
		if payment.TransferReference == "" {
			return nil, apperr.Validation("booking %s has no bank transfer option", req.BookingID)
		}
		return &models.PaymentOption{
			Method:          models.MethodBankTransfer,
			AmountMinor:     amountMinor,
			Currency:        payment.Currency,
			ExpiresAt:       payment.ExpiresAt,
			Reference:       payment.TransferReference,
			TransferNote:    payment.TransferNote,
			BankName:        settings.BankName,
			BankAccountName: settings.BankAccountName,
			BankIBAN:        settings.BankIBAN,
			BankBIC:         settings.BankBIC,
		}, nil
	}

	settings, err := s.Settings.Get()
	if err != nil {
		return nil, err
	}
	if !settings.CardEnabled {
		return nil, apperr.Validation("card payments are disabled")
	}

	option, err := s.materializeCheckout(payment, *booking, booking.ResourceID, amountMinor)
	if err != nil {
		return nil, err
	}

	payment.UpdatedAt = s.Clock.Now()
	if err := s.Store.UpdatePayment(payment); err != nil {
		return nil, err
	}

	s.Logger.LogPayment("RETRY", payment.PaymentID, fmt.Sprintf("new checkout session for booking %s", req.BookingID))
	return option, nil
}

// insertDirectPayment records the requester's payment for a booking that
// has none yet. Bank transfers get their reference and note immediately;
// the card path only records the intent, since hosted checkout sessions
// are minted at approval.
func (s *Service) insertDirectPayment(actor models.Principal, booking *models.Booking, method models.PaymentMethod) (*models.PaymentOption, error) {
	settings, err := s.Settings.Get()
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	amountMinor := toMinorUnits(booking.Amount)

	payment := &models.Payment{
		PaymentID: utils.GeneratePaymentID(),
		BookingID: booking.BookingID,
		Amount:    booking.Amount,
		Currency:  booking.Currency,
		ExpiresAt: now.Add(time.Duration(settings.PaymentDeadlineDays) * 24 * time.Hour),
		CreatedAt: now,
	}

	var option *models.PaymentOption
	switch method {
	case models.MethodBankTransfer:
		if !settings.BankTransferEnabled {
			return nil, apperr.Validation("bank transfer payments are disabled")
		}
		payment.Status = models.PaymentPending
		option = s.materializeTransfer(payment, settings, *booking, booking.ResourceID, amountMinor)
	case models.MethodGatewayCard:
		if !settings.CardEnabled {
			return nil, apperr.Validation("card payments are disabled")
		}
		payment.Status = models.PaymentProcessing
		payment.Method = models.MethodGatewayCard
		option = &models.PaymentOption{
			Method:      models.MethodGatewayCard,
			AmountMinor: amountMinor,
			Currency:    payment.Currency,
			ExpiresAt:   payment.ExpiresAt,
		}
	default:
		return nil, apperr.Validation("unknown payment method %q", method)
	}

	if err := s.Store.SavePayment(payment); err != nil {
		return nil, err
	}

	s.Logger.LogPayment("DIRECT", payment.PaymentID, fmt.Sprintf("booking=%s method=%s amount=%.2f %s",
		booking.BookingID, method, payment.Amount, payment.Currency))

	s.Audit.Record(actor, models.AuditPaymentCreated, "payment", payment.PaymentID,
		fmt.Sprintf("direct payment created for booking %s", booking.BookingID),
		map[string]interface{}{
			"booking_id": booking.BookingID,
			"method":     string(method),
			"amount":     payment.Amount,
			"currency":   payment.Currency,
		})

	return option, nil
}

// ---------------- CONFIRMATION ----------------

// VerifyBankTransfer confirms, exactly once, that the transfer for a
// booking arrived on the bank account. Admin-only.
func (s *Service) VerifyBankTransfer(actor models.Principal, bookingID string) (*models.Payment, error) {
	if err := auth.Require(actor, auth.ActionPaymentVerify); err != nil {
		return nil, err
	}

	payment, err := s.Store.GetPaymentByBookingID(bookingID)
	if err != nil {
		return nil, err
	}
	if payment.TransferReference == "" {
		return nil, apperr.Validation("booking %s has no bank transfer option", bookingID)
	}
	if payment.TransferVerified {
		return nil, apperr.Invariant("transfer for booking %s is already verified", bookingID)
	}
	if payment.Status == models.PaymentSucceeded {
		return nil, apperr.Invariant("payment for booking %s already succeeded", bookingID)
	}

	payment.TransferVerified = true
	payment.TransferVerifiedBy = actor.ID
	payment.Method = models.MethodBankTransfer
	payment.Status = models.PaymentSucceeded
	payment.UpdatedAt = s.Clock.Now()

	if err := s.Store.UpdatePayment(payment); err != nil {
		return nil, err
	}
	if err := s.Bookings.SetPaymentStatus(bookingID, models.PaymentSucceeded); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("failed to mirror payment status on booking %s: %v", bookingID, err))
	}

	s.Logger.LogPayment("VERIFY", payment.PaymentID, fmt.Sprintf("transfer %s verified by %s", payment.TransferReference, actor.ID))

	s.Audit.Record(actor, models.AuditPaymentVerified, "payment", payment.PaymentID,
		fmt.Sprintf("bank transfer verified for booking %s", bookingID),
		map[string]interface{}{
			"booking_id": bookingID,
			"reference":  payment.TransferReference,
		})

	return payment, nil
}

// HandleWebhook verifies and applies a gateway event. Events that cannot
// be matched to a known payment fail loudly so the gateway retries them.
func (s *Service) HandleWebhook(payload []byte, signature string) error {
	if s.StripeCfg.WebhookSecret == "" {
		return apperr.External(nil, "webhook secret is not configured")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.StripeCfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return apperr.Validation("webhook signature verification failed: %v", err)
	}

	s.Logger.Info("WEBHOOK", fmt.Sprintf("Processing gateway event: %s", event.Type))

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return apperr.Validation("failed to unmarshal checkout session: %v", err)
		}
		bookingID := session.Metadata["booking_id"]
		if bookingID == "" {
			return apperr.Validation("checkout session %s has no booking_id in metadata", session.ID)
		}
		intentID := ""
		if session.PaymentIntent != nil {
			intentID = session.PaymentIntent.ID
		}
		return s.markGatewaySucceeded(bookingID, intentID)

	case "payment_intent.succeeded":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return apperr.Validation("failed to unmarshal payment intent: %v", err)
		}
		bookingID := intent.Metadata["booking_id"]
		if bookingID == "" {
			// Checkout-created intents carry the metadata on the session;
			// the session.completed event covers those.
			s.Logger.Info("WEBHOOK", fmt.Sprintf("payment intent %s without booking metadata, skipping", intent.ID))
			return nil
		}
		return s.markGatewaySucceeded(bookingID, intent.ID)

	case "payment_intent.payment_failed":
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return apperr.Validation("failed to unmarshal payment intent: %v", err)
		}
		bookingID := intent.Metadata["booking_id"]
		if bookingID == "" {
			s.Logger.Info("WEBHOOK", fmt.Sprintf("failed payment intent %s without booking metadata, skipping", intent.ID))
			return nil
		}
		return s.markGatewayFailed(bookingID)

	default:
		s.Logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
	}

	return nil
}

func (s *Service) markGatewaySucceeded(bookingID, intentID string) error {
	payment, err := s.Store.GetPaymentByBookingID(bookingID)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentSucceeded {
		// Gateways redeliver events; a replayed confirmation is a no-op.
		return nil
	}

	payment.Status = models.PaymentSucceeded
	payment.Method = models.MethodGatewayCard
	if intentID != "" {
		payment.PaymentIntentID = intentID
	}
	payment.UpdatedAt = s.Clock.Now()

	if err := s.Store.UpdatePayment(payment); err != nil {
		return err
	}
	if err := s.Bookings.SetPaymentStatus(bookingID, models.PaymentSucceeded); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("failed to mirror payment status on booking %s: %v", bookingID, err))
	}

	s.Logger.LogPayment("SUCCEEDED", payment.PaymentID, fmt.Sprintf("gateway payment confirmed for booking %s", bookingID))

	s.Audit.Record(models.SystemPrincipal(), models.AuditPaymentReceived, "payment", payment.PaymentID,
		fmt.Sprintf("gateway payment confirmed for booking %s", bookingID),
		map[string]interface{}{
			"booking_id":        bookingID,
			"payment_intent_id": intentID,
		})

	return nil
}

func (s *Service) markGatewayFailed(bookingID string) error {
	payment, err := s.Store.GetPaymentByBookingID(bookingID)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentSucceeded {
		s.Logger.Warn("WEBHOOK", fmt.Sprintf("failure event for already-succeeded payment %s, ignoring", payment.PaymentID))
		return nil
	}

	payment.Status = models.PaymentFailed
	payment.UpdatedAt = s.Clock.Now()

	if err := s.Store.UpdatePayment(payment); err != nil {
		return err
	}
	if err := s.Bookings.SetPaymentStatus(bookingID, models.PaymentFailed); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("failed to mirror payment status on booking %s: %v", bookingID, err))
	}

	s.Logger.LogPayment("FAILED", payment.PaymentID, fmt.Sprintf("gateway payment failed for booking %s", bookingID))
	return nil
}

// ---------------- REFUNDS ----------------

// Refund sends money back through the gateway. Bank transfers have no
// gateway intent and must be refunded manually outside the engine.
func (s *Service) Refund(actor models.Principal, bookingID string, req models.RefundRequest) (*models.Payment, error) {
	if err := auth.Require(actor, auth.ActionPaymentRefund); err != nil {
		return nil, err
	}

	payment, err := s.Store.GetPaymentByBookingID(bookingID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentSucceeded && payment.Status != models.PaymentPartiallyRefunded {
		return nil, apperr.Invariant("cannot refund a payment in status %s", payment.Status)
	}
	if payment.PaymentIntentID == "" {
		return nil, apperr.Validation("payment %s has no gateway intent, refund it manually", payment.PaymentID)
	}

	remaining := payment.Amount - payment.RefundedAmount
	amount := remaining
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 || amount > remaining {
		return nil, apperr.Validation("refund amount %.2f exceeds the refundable %.2f", amount, remaining)
	}

	sc, err := s.stripeClient()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), stripeTimeout)
	defer cancel()

	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(payment.PaymentIntentID),
		Amount:        stripe.Int64(toMinorUnits(amount)),
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	refund, err := sc.Refunds.New(params)
	if err != nil {
		return nil, apperr.External(err, "gateway refund failed for payment %s", payment.PaymentID)
	}

	payment.RefundedAmount += amount
	payment.RefundedAt = s.Clock.Now()
	payment.UpdatedAt = payment.RefundedAt
	if payment.RefundedAmount >= payment.Amount {
		payment.Status = models.PaymentRefunded
	} else {
		payment.Status = models.PaymentPartiallyRefunded
	}

	if err := s.Store.UpdatePayment(payment); err != nil {
		return nil, err
	}
	if err := s.Bookings.SetPaymentStatus(bookingID, payment.Status); err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("failed to mirror payment status on booking %s: %v", bookingID, err))
	}

	s.Logger.LogPayment("REFUND", payment.PaymentID, fmt.Sprintf("refunded %.2f %s (gateway refund %s)", amount, payment.Currency, refund.ID))

	s.Audit.Record(actor, models.AuditPaymentRefunded, "payment", payment.PaymentID,
		fmt.Sprintf("refund issued for booking %s", bookingID),
		map[string]interface{}{
			"booking_id": bookingID,
			"amount":     amount,
			"reason":     req.Reason,
			"refund_id":  refund.ID,
		})

	return payment, nil
}

// ---------------- READS / SETTINGS ----------------

func (s *Service) GetByBooking(bookingID string) (*models.Payment, error) {
	return s.Store.GetPaymentByBookingID(bookingID)
}

func (s *Service) DeleteByBooking(bookingID string) error {
	return s.Store.DeletePaymentByBookingID(bookingID)
}

func (s *Service) GetSettings(actor models.Principal) (*models.PaymentSettings, error) {
	if err := auth.Require(actor, auth.ActionSettingsRead); err != nil {
		return nil, err
	}
	return s.Settings.Get()
}

func (s *Service) UpdateSettings(actor models.Principal, req models.SettingsUpdateRequest) (*models.PaymentSettings, error) {
	if err := auth.Require(actor, auth.ActionSettingsUpdate); err != nil {
		return nil, err
	}
	updated, err := s.Settings.Update(req)
	if err != nil {
		return nil, err
	}
	s.Audit.Record(actor, models.AuditSettingsUpdated, "settings", "payment_settings",
		"payment settings updated", nil)
	return updated, nil
}

// ---------------- HELPERS ----------------

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func renderTransferNote(template, reference, resourceName string, start time.Time) string {
	note := template
	note = strings.ReplaceAll(note, "{CODICE}", reference)
	note = strings.ReplaceAll(note, "{RISORSA}", resourceName)
	note = strings.ReplaceAll(note, "{DATA}", start.Format("2006-01-02"))
	return note
}
