package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	BookingService *booking.BookingService
}

func NewHandler(service *booking.BookingService) *Handler {
	return &Handler{BookingService: service}
}

// Routes mounts the booking endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/availability", h.CheckAvailability)

	r.Route("/bookings", func(r chi.Router) {
		r.Post("/", h.CreateBooking)
		r.Get("/", h.ListMyBookings)
		r.Get("/{bookingId}", h.GetBooking)
		r.Put("/{bookingId}", h.UpdateBooking)
		r.Post("/{bookingId}/cancel", h.CancelBooking)
		r.Post("/{bookingId}/approve", h.ApproveBooking)
		r.Post("/{bookingId}/reject", h.RejectBooking)
		r.Post("/{bookingId}/payment-received", h.MarkPaymentReceived)
		r.Post("/{bookingId}/invoice-issued", h.MarkInvoiceIssued)
		r.Delete("/{bookingId}", h.PurgeBooking)
	})
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, err := h.BookingService.Create(actor, req)
	if err != nil {
		writeError(w, err, "Could not create booking")
		return
	}

	writeJSON(w, http.StatusCreated, utils.SuccessResponse("Booking created", result))
}

func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookings, err := h.BookingService.ListMine(actor)
	if err != nil {
		writeError(w, err, "Could not list bookings")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Bookings retrieved", bookings))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	result, err := h.BookingService.GetBooking(actor, bookingID)
	if err != nil {
		writeError(w, err, "Could not fetch booking")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking retrieved", result))
}

func (h *Handler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")

	var req models.BookingUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, err := h.BookingService.Update(actor, bookingID, req)
	if err != nil {
		writeError(w, err, "Could not update booking")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking updated", result))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")

	var req models.CancelRequest
	if r.Body != nil {
		// An empty body means a cancellation without a reason.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.BookingService.Cancel(actor, bookingID, req)
	if err != nil {
		writeError(w, err, "Could not cancel booking")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking cancelled", result))
}

func (h *Handler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")

	var req models.ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, options, err := h.BookingService.Approve(actor, bookingID, req)
	if err != nil {
		writeError(w, err, "Could not approve booking")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking approved", map[string]interface{}{
		"booking":         result,
		"payment_options": options,
	}))
}

func (h *Handler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")

	var req models.RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, err := h.BookingService.Reject(actor, bookingID, req)
	if err != nil {
		writeError(w, err, "Could not reject booking")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking rejected", result))
}

func (h *Handler) MarkPaymentReceived(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	result, err := h.BookingService.MarkPaymentReceived(actor, bookingID)
	if err != nil {
		writeError(w, err, "Could not mark payment received")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Payment marked as received", result))
}

func (h *Handler) MarkInvoiceIssued(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	result, err := h.BookingService.MarkInvoiceIssued(actor, bookingID)
	if err != nil {
		writeError(w, err, "Could not mark invoice issued")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Invoice marked as issued", result))
}

func (h *Handler) PurgeBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	bookingID := chi.URLParam(r, "bookingId")
	if err := h.BookingService.Purge(actor, bookingID); err != nil {
		writeError(w, err, "Could not purge booking")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Booking purged", nil))
}

// CheckAvailability answers whether a window is free on a resource.
// Query parameters: resource_id, start, end (RFC 3339), and an optional
// exclude_id so an edit can ignore its own booking.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	resourceID := r.URL.Query().Get("resource_id")
	if resourceID == "" {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "resource_id is required"))
		return
	}

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "start must be RFC 3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "end must be RFC 3339"))
		return
	}

	available, err := h.BookingService.CheckAvailability(resourceID, start, end, r.URL.Query().Get("exclude_id"))
	if err != nil {
		writeError(w, err, "Could not check availability")
		return
	}

	writeJSON(w, http.StatusOK, utils.SuccessResponse("Availability checked", map[string]interface{}{
		"resource_id": resourceID,
		"start":       start,
		"end":         end,
		"available":   available,
	}))
}

func writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error, message string) {
	writeJSON(w, apperr.HTTPStatus(err), utils.ErrorResponse(message, apperr.PublicMessage(err)))
}
