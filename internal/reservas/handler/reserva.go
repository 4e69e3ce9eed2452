package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"canchas/internal/reservas/service"
	httputil "canchas/pkg/http"
	"canchas/pkg/logger"
	"canchas/pkg/model"
)

type ReservaHandler struct {
	service service.ReservaService
	log     *logger.Logger
}

func NewReservaHandler(service service.ReservaService, log *logger.Logger) *ReservaHandler {
	return &ReservaHandler{
		service: service,
		log:     log,
	}
}

func (h *ReservaHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservaCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Create", "Invalid request body")
		return
	}

	reserva, err := h.service.Create(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, reserva); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *ReservaHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reserva, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, reserva); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

// List returns the caller's reservas, or those of user_id for operators.
func (h *ReservaHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	reservas, total, err := h.service.ListByUser(r.Context(), r.URL.Query().Get("user_id"), limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, reservas, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *ReservaHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ReservaUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Update", "Invalid request body")
		return
	}

	updated, err := h.service.Update(r.Context(), ps.ByName("id"), &req)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservaHandler) ChangeState(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req model.ReservaEstadoChange
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "ChangeState", "Invalid request body")
		return
	}

	updated, err := h.service.ChangeState(r.Context(), ps.ByName("id"), req.Estado)
	if err != nil {
		h.writeError(w, "ChangeState", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "ChangeState", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservaHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	updated, err := h.service.Cancel(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ReservaHandler) badRequest(w http.ResponseWriter, handler, message string) {
	if err := httputil.WriteBadRequest(w, message); err != nil {
		h.log.Error("failed to write bad request response", "handler", handler, "operation", "WriteBadRequest", "error", err)
	}
}

func (h *ReservaHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *ReservaHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservas", h.Create)
	router.GET("/api/v1/reservas", h.List)
	router.GET("/api/v1/reservas/id/:id", h.GetByID)
	router.PUT("/api/v1/reservas/id/:id", h.Update)
	router.PATCH("/api/v1/reservas/id/:id/estado", h.ChangeState)
	router.POST("/api/v1/reservas/id/:id/cancelar", h.Cancel)
}
