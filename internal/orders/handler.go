package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/platform/httpx"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Engine is the behaviour the handler needs from Service.
type Engine interface {
	Create(ctx context.Context, in CreateInput) (Order, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Order, error)
	Complete(ctx context.Context, id int64) (Order, error)
	Cancel(ctx context.Context, id int64) (Order, error)
	Reopen(ctx context.Context, id int64) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, shared.Pagination, error)
}

// Handler wires HTTP endpoints for orders.
type Handler struct {
	logger   *slog.Logger
	engine   Engine
	resolver inventory.Resolver
	decoder  *httpx.Decoder
}

// NewHandler constructs the orders handler. A nil resolver skips reference checks.
func NewHandler(logger *slog.Logger, engine Engine, resolver inventory.Resolver) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, engine: engine, resolver: resolver, decoder: httpx.NewDecoder()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGet)
			r.Put("/", h.handleUpdate)
			r.Post("/complete", h.handleAction(ActionComplete))
			r.Post("/cancel", h.handleAction(ActionCancel))
			r.Post("/reopen", h.handleAction(ActionReopen))
		})
	})
}

type itemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Count     int64 `json:"count" validate:"required,gt=0"`
}

type createOrderRequest struct {
	Customer    string        `json:"customer" validate:"required,max=255"`
	WarehouseID int64         `json:"warehouse_id" validate:"required,gt=0"`
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type updateOrderRequest struct {
	Customer    string        `json:"customer" validate:"required,max=255"`
	WarehouseID int64         `json:"warehouse_id" validate:"omitempty,gt=0"`
	Items       []itemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decoder.Decode(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	key, err := httpx.IdempotencyKey(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	items := toItemInputs(req.Items)
	if err := h.resolve(r.Context(), req.WarehouseID, items); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	order, err := h.engine.Create(r.Context(), CreateInput{
		Customer:       req.Customer,
		WarehouseID:    req.WarehouseID,
		Items:          items,
		IdempotencyKey: key,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"data": order})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	var req updateOrderRequest
	if err := h.decoder.Decode(r, &req); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	items := toItemInputs(req.Items)
	if err := h.resolve(r.Context(), 0, items); err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	order, err := h.engine.Update(r.Context(), id, UpdateInput{
		Customer:    req.Customer,
		WarehouseID: req.WarehouseID,
		Items:       items,
	})
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": order})
}

func (h *Handler) handleAction(action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := httpx.URLInt64(r, "id")
		if err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		var order Order
		switch action {
		case ActionComplete:
			order, err = h.engine.Complete(r.Context(), id)
		case ActionCancel:
			order, err = h.engine.Cancel(r.Context(), id)
		default:
			order, err = h.engine.Reopen(r.Context(), id)
		}
		if err != nil {
			httpx.RespondError(w, r, h.logger, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"data": order})
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLInt64(r, "id")
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	order, err := h.engine.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": order})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	list, page, err := h.engine.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.Page[Order]{Data: list, Meta: page})
}

func (h *Handler) resolve(ctx context.Context, warehouseID int64, items []ItemInput) error {
	if h.resolver == nil {
		return nil
	}
	return h.resolver.ResolveReferences(ctx, warehouseID, inputProductIDs(items))
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	var (
		filter ListFilter
		err    error
	)
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		filter.Status = Status(raw)
		if !filter.Status.IsValid() {
			return filter, shared.NewValidationError("status", "must be one of active completed canceled")
		}
	}
	filter.Customer = q.Get("customer")
	if filter.WarehouseID, err = httpx.QueryInt64(r, "warehouse_id"); err != nil {
		return filter, err
	}
	if filter.Page, err = httpx.QueryInt(r, "page"); err != nil {
		return filter, err
	}
	if filter.PerPage, err = httpx.QueryInt(r, "per_page"); err != nil {
		return filter, err
	}
	return filter, nil
}

func toItemInputs(items []itemRequest) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, ItemInput{ProductID: item.ProductID, Count: item.Count})
	}
	return out
}
