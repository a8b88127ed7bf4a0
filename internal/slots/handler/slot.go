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

type SlotHandler struct {
	service service.SlotService
	log     *logger.Logger
}

func NewSlotHandler(service service.SlotService, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		log:     log,
	}
}

// Create publishes one timeslot. Manager only.
func (h *SlotHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.requireManager(w, r, "Create") {
		return
	}

	var spec model.SlotSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, "Create", apperrors.InvalidInput("Invalid request body"))
		return
	}

	slot, err := h.service.Create(r.Context(), &spec)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, slot); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "error", err)
	}
}

// CreateBatch expands a batch specification into timeslots.
// Manager only.
func (h *SlotHandler) CreateBatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if !h.requireManager(w, r, "CreateBatch") {
		return
	}

	var spec model.BatchSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		h.writeError(w, "CreateBatch", apperrors.InvalidInput("Invalid request body"))
		return
	}

	result, err := h.service.CreateBatch(r.Context(), &spec)
	if err != nil {
		h.writeError(w, "CreateBatch", err)
		return
	}

	if err := httputil.WriteCreated(w, result); err != nil {
		h.log.Error("failed to write created response", "handler", "CreateBatch", "error", err)
	}
}

// ListAvailable returns unclaimed timeslots for an infrastructure,
// optionally restricted to one date.
func (h *SlotHandler) ListAvailable(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	infrastructureID := query.Get("infrastructure_id")
	date := query.Get("date")

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	slots, total, err := h.service.ListAvailable(r.Context(), infrastructureID, date, limit, offset)
	if err != nil {
		h.writeError(w, "ListAvailable", err)
		return
	}

	if err := httputil.WritePaginated(w, slots, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAvailable", "error", err)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots", h.Create)
	router.POST("/api/v1/slots/batch", h.CreateBatch)
	router.GET("/api/v1/slots/available", h.ListAvailable)
}

func (h *SlotHandler) requireManager(w http.ResponseWriter, r *http.Request, op string) bool {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, op, apperrors.Forbidden("Missing actor identity"))
		return false
	}
	if !actor.Role.CanManage() {
		h.writeError(w, op, apperrors.Forbidden("This operation requires a manager or admin role").
			WithReason(apperrors.ReasonRoleMismatch))
		return false
	}
	return true
}

func (h *SlotHandler) writeError(w http.ResponseWriter, op string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", op, "error", writeErr)
	}
}
