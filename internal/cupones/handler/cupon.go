package handler

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"canchas/internal/cupones/service"
	httputil "canchas/pkg/http"
	"canchas/pkg/logger"
	"canchas/pkg/model"
)

type CuponHandler struct {
	service service.CuponService
	log     *logger.Logger
}

func NewCuponHandler(service service.CuponService, log *logger.Logger) *CuponHandler {
	return &CuponHandler{
		service: service,
		log:     log,
	}
}

func (h *CuponHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var c model.CuponDescuento
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		h.badRequest(w, "Create", "Invalid request body")
		return
	}

	if err := h.service.Create(r.Context(), &c); err != nil {
		h.writeError(w, "Create", err)
		return
	}

	if err := httputil.WriteCreated(w, c); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *CuponHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	c, err := h.service.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, c); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CuponHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	cupones, total, err := h.service.ListByCentro(r.Context(), r.URL.Query().Get("centro_id"), limit, offset)
	if err != nil {
		h.writeError(w, "List", err)
		return
	}

	if err := httputil.WritePaginated(w, cupones, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *CuponHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var updates model.CuponUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		h.badRequest(w, "Update", "Invalid request body")
		return
	}

	updated, err := h.service.Update(r.Context(), ps.ByName("id"), &updates)
	if err != nil {
		h.writeError(w, "Update", err)
		return
	}

	if err := httputil.WriteSuccess(w, updated); err != nil {
		h.log.Error("failed to write success response", "handler", "Update", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CuponHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.Delete(r.Context(), ps.ByName("id")); err != nil {
		h.writeError(w, "Delete", err)
		return
	}

	httputil.WriteNoContent(w)
}

// Check previews a cupon for the caller. No use is recorded.
func (h *CuponHandler) Check(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.CuponCheck
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "Check", "Invalid request body")
		return
	}

	result, err := h.service.Check(r.Context(), &req)
	if err != nil {
		h.writeError(w, "Check", err)
		return
	}

	if err := httputil.WriteSuccess(w, result); err != nil {
		h.log.Error("failed to write success response", "handler", "Check", "operation", "WriteSuccess", "error", err)
	}
}

func (h *CuponHandler) badRequest(w http.ResponseWriter, handler, message string) {
	if err := httputil.WriteBadRequest(w, message); err != nil {
		h.log.Error("failed to write bad request response", "handler", handler, "operation", "WriteBadRequest", "error", err)
	}
}

func (h *CuponHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *CuponHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/cupones", h.Create)
	router.GET("/api/v1/cupones", h.List)
	router.POST("/api/v1/cupones/aplicar", h.Check)
	router.GET("/api/v1/cupones/id/:id", h.GetByID)
	router.PUT("/api/v1/cupones/id/:id", h.Update)
	router.DELETE("/api/v1/cupones/id/:id", h.Delete)
}
