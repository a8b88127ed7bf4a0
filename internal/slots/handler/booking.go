package handler

import (
	"encoding/json"
	"net/http"

	"labbook/internal/slots/service"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/middleware"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// Request claims an available timeslot for the calling actor.
func (h *BookingHandler) Request(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Request")
	if !ok {
		return
	}

	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Request", apperrors.InvalidInput("Invalid request body"))
		return
	}

	booking, err := h.service.Request(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, "Request", err)
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Request", "error", err)
	}
}

func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Approve")
	if !ok {
		return
	}

	booking, err := h.service.Approve(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Approve", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write response", "handler", "Approve", "error", err)
	}
}

// Reject declines a pending booking and republishes the window as an
// available timeslot. Both documents are returned.
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Reject")
	if !ok {
		return
	}

	booking, replacement, err := h.service.Reject(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Reject", err)
		return
	}

	payload := map[string]any{
		"booking":          booking,
		"replacement_slot": replacement,
	}
	if err := httputil.WriteSuccess(w, payload); err != nil {
		h.log.Error("failed to write response", "handler", "Reject", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Cancel")
	if !ok {
		return
	}

	booking, err := h.service.Cancel(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write response", "handler", "Cancel", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	booking, answers, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	payload := map[string]any{
		"booking": booking,
		"answers": answers,
	}
	if err := httputil.WriteSuccess(w, payload); err != nil {
		h.log.Error("failed to write response", "handler", "GetByID", "error", err)
	}
}

// List returns bookings visible to the actor: managers see every
// booking, everyone else sees only their own.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "List")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	bookings, total, err := h.service.List(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Request)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.POST("/api/v1/bookings/id/:id/approve", h.Approve)
	router.POST("/api/v1/bookings/id/:id/reject", h.Reject)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
}

func (h *BookingHandler) actor(w http.ResponseWriter, r *http.Request, op string) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, op, apperrors.Forbidden("Missing actor identity"))
		return model.Actor{}, false
	}
	return actor, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "error", writeErr)
	}
}
