package handler

import (
	"net/http"

	"labbook/internal/slots/service"
	apperrors "labbook/pkg/errors"
	httputil "labbook/pkg/http"
	"labbook/pkg/logger"
	"labbook/pkg/middleware"
	"labbook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// SweepHandler exposes the expiry sweep as an on-demand operation so
// operators do not have to wait for the background interval.
type SweepHandler struct {
	sweeper *service.Sweeper
	log     *logger.Logger
}

func NewSweepHandler(sweeper *service.Sweeper, log *logger.Logger) *SweepHandler {
	return &SweepHandler{
		sweeper: sweeper,
		log:     log,
	}
}

func (h *SweepHandler) Sweep(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok || !actor.Role.CanManage() {
		err := apperrors.Forbidden("This operation requires a manager or admin role").
			WithReason(apperrors.ReasonRoleMismatch)
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Sweep", "error", writeErr)
		}
		return
	}

	updated, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Sweep", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, &model.SweepResult{UpdatedCount: updated}); err != nil {
		h.log.Error("failed to write response", "handler", "Sweep", "error", err)
	}
}

func (h *SweepHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/slots/sweep", h.Sweep)
}
