package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

type Handler struct {
	Service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{entityType}/{entityId}", h.EntityHistory)
	})
}

// List returns one filtered page of the audit trail. Filters arrive as
// query parameters: actor_id, action, entity_type, from, to, page, page_size.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	q := r.URL.Query()
	filter := models.AuditFilter{
		ActorID:    q.Get("actor_id"),
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "from must be RFC 3339"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "to must be RFC 3339"))
			return
		}
		filter.To = t
	}
	if v := q.Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("page_size"); v != "" {
		filter.PageSize, _ = strconv.Atoi(v)
	}

	page, err := h.Service.FindAll(actor, filter)
	if err != nil {
		h.writeJSON(w, apperr.HTTPStatus(err), utils.ErrorResponse("Could not list audit entries", apperr.PublicMessage(err)))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Audit entries retrieved", page))
}

// EntityHistory returns the full trail of one entity, newest first.
func (h *Handler) EntityHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing principal"))
		return
	}

	entityType := chi.URLParam(r, "entityType")
	entityID := chi.URLParam(r, "entityId")

	entries, err := h.Service.FindByEntity(actor, entityType, entityID)
	if err != nil {
		h.writeJSON(w, apperr.HTTPStatus(err), utils.ErrorResponse("Could not fetch entity history", apperr.PublicMessage(err)))
		return
	}

	h.writeJSON(w, http.StatusOK, utils.SuccessResponse("Entity history retrieved", entries))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
