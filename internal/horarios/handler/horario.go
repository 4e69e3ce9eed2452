package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"canchas/internal/horarios/service"
	httputil "canchas/pkg/http"
	"canchas/pkg/logger"
	"canchas/pkg/model"
)

type HorarioHandler struct {
	service service.HorarioService
	log     *logger.Logger
}

func NewHorarioHandler(service service.HorarioService, log *logger.Logger) *HorarioHandler {
	return &HorarioHandler{
		service: service,
		log:     log,
	}
}

func (h *HorarioHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var horario model.Horario
	if err := json.NewDecoder(r.Body).Decode(&horario); err != nil {
		h.badRequest(w, "Create", "Invalid request body")
		return
	}

	if err := h.service.Create(r.Context(), &horario); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, horario); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

type bulkRequest struct {
	Horarios []*model.Horario `json:"horarios"`
}

// BulkCreate answers 207 when some entries were rejected.
func (h *HorarioHandler) BulkCreate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "BulkCreate", "Invalid request body")
		return
	}

	result, err := h.service.BulkCreate(r.Context(), req.Horarios)
	if err != nil {
		h.writeError(w, "BulkCreate", err)
		return
	}

	status := http.StatusCreated
	if len(result.Duplicates) > 0 || len(result.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	if err := httputil.WriteJSON(w, status, result); err != nil {
		h.log.Error("failed to write bulk response", "handler", "BulkCreate", "operation", "WriteJSON", "error", err)
	}
}

func (h *HorarioHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.badRequest(w, "GetByID", "ID parameter is required")
		return
	}

	horario, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, horario); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HorarioHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	horarios, err := h.service.List(r.Context(), query.Get("cancha_id"), query.Get("fecha"))
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WriteSuccess(w, horarios); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HorarioHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.badRequest(w, "Update", "ID parameter is required")
		return
	}

	var updates model.HorarioUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.badRequest(w, "Update", "Invalid request body")
		return
	}

	updated, err := h.service.Update(r.Context(), id, &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *HorarioHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		h.badRequest(w, "Delete", "ID parameter is required")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *HorarioHandler) badRequest(w http.ResponseWriter, handler, message string) {
	if err := httputil.WriteBadRequest(w, message); err != nil {
		h.log.Error("failed to write bad request response", "handler", handler, "operation", "WriteBadRequest", "error", err)
	}
}

func (h *HorarioHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *HorarioHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/horarios", h.Create)
	router.POST("/api/v1/horarios/bulk", h.BulkCreate)
	router.GET("/api/v1/horarios", h.List)
	router.GET("/api/v1/horarios/id/:id", h.GetByID)
	router.PATCH("/api/v1/horarios/id/:id", h.Update)
	router.DELETE("/api/v1/horarios/id/:id", h.Delete)
}
