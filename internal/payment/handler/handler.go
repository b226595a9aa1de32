package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/payment"
	"ms-booking/internal/utils"
)

type PaymentHandler struct {
	service *payment.Service
	logger  *logger.Logger
}

func NewPaymentHandler(service *payment.Service, logger *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

// Routes registers the payment endpoints on a gin router group.
func (h *PaymentHandler) Routes(rg *gin.RouterGroup) {
	rg.POST("/payments/direct", h.CreateDirectPayment)
	rg.GET("/payments/booking/:bookingId", h.GetPaymentByBooking)
	rg.POST("/payments/booking/:bookingId/verify-transfer", h.VerifyBankTransfer)
	rg.POST("/payments/booking/:bookingId/refund", h.Refund)
	rg.GET("/settings", h.GetSettings)
	rg.PUT("/settings", h.UpdateSettings)
}

// RegisterWebhook mounts the gateway webhook outside the authenticated
// group; Stripe signs requests instead of carrying a bearer token.
func (h *PaymentHandler) RegisterWebhook(r *gin.Engine) {
	r.POST("/webhooks/stripe", h.StripeWebhook)
}

func (h *PaymentHandler) principal(c *gin.Context) (models.Principal, bool) {
	token, err := auth.ExtractTokenFromRequest(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return models.Principal{}, false
	}
	p, err := auth.PrincipalFromToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", err.Error()))
		return models.Principal{}, false
	}
	return p, true
}

func (h *PaymentHandler) writeError(c *gin.Context, err error, message string) {
	c.JSON(apperr.HTTPStatus(err), utils.ErrorResponse(message, apperr.PublicMessage(err)))
}

// CreateDirectPayment hands the requester a fresh payment option for an
// approved booking, typically after the original checkout session lapsed.
func (h *PaymentHandler) CreateDirectPayment(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}

	var req models.DirectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if req.BookingID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", "booking_id is required"))
		return
	}

	option, err := h.service.CreateDirectPayment(actor, req)
	if err != nil {
		h.writeError(c, err, "Could not create payment")
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment option created", option))
}

func (h *PaymentHandler) GetPaymentByBooking(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}

	bookingID := c.Param("bookingId")
	result, err := h.service.GetByBooking(bookingID)
	if err != nil {
		h.writeError(c, err, "Could not fetch payment")
		return
	}
	if !actor.IsStaff() {
		// Owners may read their own payment; cross-check via the booking.
		booking, err := h.service.Bookings.GetBookingByID(bookingID)
		if err != nil || booking.UserID != actor.ID {
			c.JSON(http.StatusForbidden, utils.ErrorResponse("Forbidden", "payment does not belong to the requester"))
			return
		}
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment retrieved", result))
}

func (h *PaymentHandler) VerifyBankTransfer(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}

	bookingID := c.Param("bookingId")
	result, err := h.service.VerifyBankTransfer(actor, bookingID)
	if err != nil {
		h.writeError(c, err, "Could not verify transfer")
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Bank transfer verified", result))
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}

	bookingID := c.Param("bookingId")

	var req models.RefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
			return
		}
	}

	result, err := h.service.Refund(actor, bookingID, req)
	if err != nil {
		h.writeError(c, err, "Could not refund payment")
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Refund issued", result))
}

// StripeWebhook receives gateway events. The raw body is read before any
// binding so the signature check sees the exact bytes Stripe signed.
func (h *PaymentHandler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid webhook payload", err.Error()))
		return
	}

	if err := h.service.HandleWebhook(payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.writeError(c, err, "Webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Webhook processed", nil))
}

func (h *PaymentHandler) GetSettings(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}

	result, err := h.service.GetSettings(actor)
	if err != nil {
		h.writeError(c, err, "Could not fetch settings")
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Settings retrieved", result))
}

func (h *PaymentHandler) UpdateSettings(c *gin.Context) {
	actor, ok := h.principal(c)
	if !ok {
		return
	}

	var req models.SettingsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.service.UpdateSettings(actor, req)
	if err != nil {
		h.writeError(c, err, "Could not update settings")
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Settings updated", result))
}
