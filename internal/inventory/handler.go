package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// MovementService is the behaviour the handler needs from Service.
type MovementService interface {
	PostMovement(ctx context.Context, input MovementInput) (Movement, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error)
}

// Resolver confirms that referenced products and warehouse exist.
type Resolver interface {
	ResolveReferences(ctx context.Context, warehouseID int64, productIDs []int64) error
}

// Handler wires HTTP endpoints for stock movements.
type Handler struct {
	logger   *slog.Logger
	service  MovementService
	resolver Resolver
	decoder  *httpx.Decoder
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service MovementService, resolver Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, resolver: resolver, decoder: httpx.NewDecoder()}
}

// MountRoutes registers movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/product-movements", h.handleList)
	r.Post("/product-movements", h.handlePost)
}

type postMovementRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64  `json:"warehouse_id" validate:"required,gt=0"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Type        string `json:"type" validate:"required,oneof=arrival sale return"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	var req postMovementRequest
	if err := h.decoder.Decode(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	key, err := httpx.IdempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	if h.resolver != nil {
		if err := h.resolver.ResolveReferences(r.Context(), req.WarehouseID, []int64{req.ProductID}); err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
	}
	movement, err := h.service.PostMovement(r.Context(), MovementInput{
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		Type:           req.Type,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": movement})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	movements, page, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Page[Movement]{Data: movements, Meta: page})
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	var (
		filter MovementFilter
		err    error
	)
	if filter.ProductID, err = httpx.QueryInt64(r, "product_id"); err != nil {
		return filter, err
	}
	if filter.WarehouseID, err = httpx.QueryInt64(r, "warehouse_id"); err != nil {
		return filter, err
	}
	if filter.Page, err = httpx.QueryInt(r, "page"); err != nil {
		return filter, err
	}
	if filter.PerPage, err = httpx.QueryInt(r, "per_page"); err != nil {
		return filter, err
	}
	q := r.URL.Query()
	if raw := q.Get("type"); raw != "" {
		filter.Type = MovementType(raw)
		if !filter.Type.IsValid() {
			return filter, shared.NewValidationError("type", "must be one of arrival sale return order_debit")
		}
	}
	if filter.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTime(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.NewValidationError(field, "must be RFC3339 or YYYY-MM-DD")
	}
	return t, nil
}
