package warehouses

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	decoder *httpx.Decoder
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, decoder: httpx.NewDecoder()}
}

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/warehouses", h.List)
	r.Post("/warehouses", h.Create)
	r.Get("/warehouses/{id}", h.Show)
}

type createRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := httpx.QueryInt(r, "page")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	list, meta, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Page[Warehouse]{Data: list, Meta: meta})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	warehouse, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": warehouse})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := h.decoder.Decode(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	warehouse, err := h.service.Create(r.Context(), Warehouse{Name: req.Name})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	h.logger.Info("warehouse created", slog.Int64("warehouse_id", warehouse.ID))
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": warehouse})
}
