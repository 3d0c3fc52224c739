package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/platform/broker"
	"github.com/odyssey-erp/depot/internal/shared"
)

const idempotencyScope = "orders.create"

// Order event types.
const (
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
	EventOrderCompleted = "order.completed"
	EventOrderCanceled  = "order.canceled"
	EventOrderReopened  = "order.reopened"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// ServiceOptions groups optional collaborators.
type ServiceOptions struct {
	Idempotency inventory.IdempotencyPort
	Notifier    *inventory.Notifier
	Metrics     *observability.EngineMetrics
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Service drives orders through their lifecycle. Every transition runs in one
// transaction with its stock movements; a failure leaves no trace.
type Service struct {
	repo        RepositoryPort
	recorder    *inventory.Recorder
	ledger      *inventory.Ledger
	idempotency inventory.IdempotencyPort
	notifier    *inventory.Notifier
	metrics     *observability.EngineMetrics
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds the order engine.
func NewService(repo RepositoryPort, recorder *inventory.Recorder, opts ServiceOptions) *Service {
	if recorder == nil {
		recorder = inventory.NewRecorder(nil)
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("orders")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		recorder:    recorder,
		ledger:      recorder.Ledger(),
		idempotency: opts.Idempotency,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		logger:      opts.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create opens an active order and debits its items from the warehouse.
func (s *Service) Create(ctx context.Context, in CreateInput) (Order, error) {
	customer, err := validateCustomer(in.Customer)
	if err != nil {
		return Order{}, err
	}
	if in.WarehouseID <= 0 {
		return Order{}, shared.NewValidationError("warehouse_id", "is required")
	}
	if err := validateItems(in.Items); err != nil {
		return Order{}, err
	}
	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Claim(ctx, idempotencyScope, in.IdempotencyKey); err != nil {
			return Order{}, err
		}
	}

	order, err := s.transition(ctx, ActionCreate, 0, func(ctx context.Context, tx TxRepository) (Order, []inventory.Movement, error) {
		if err := s.ledger.CheckAvailability(ctx, tx.Stock(), in.WarehouseID, toLines(in.Items)); err != nil {
			return Order{}, nil, err
		}
		order, err := tx.Insert(ctx, Order{
			Customer:    customer,
			WarehouseID: in.WarehouseID,
			Status:      StatusActive,
			CreatedAt:   s.now(),
		})
		if err != nil {
			return Order{}, nil, err
		}
		if order.Items, err = tx.InsertItems(ctx, order.ID, in.Items); err != nil {
			return Order{}, nil, err
		}
		movements, err := s.debit(ctx, tx.Stock(), order, order.Items)
		if err != nil {
			return Order{}, nil, err
		}
		return order, movements, nil
	})
	if err != nil {
		s.releaseKey(ctx, in.IdempotencyKey)
		return Order{}, err
	}
	return order, nil
}

// Update replaces the customer and items of an active order. New counts are
// checked against free stock before the old items are returned, so an order
// cannot reuse its own reservation; on success the old items are returned and
// the new ones debited.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Order, error) {
	customer, err := validateCustomer(in.Customer)
	if err != nil {
		return Order{}, err
	}
	if err := validateItems(in.Items); err != nil {
		return Order{}, err
	}
	return s.transition(ctx, ActionUpdate, id, func(ctx context.Context, tx TxRepository) (Order, []inventory.Movement, error) {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return Order{}, nil, err
		}
		if !order.Status.CanEdit() {
			return Order{}, nil, &TransitionError{OrderID: id, From: order.Status, Action: ActionUpdate}
		}
		if in.WarehouseID != 0 && in.WarehouseID != order.WarehouseID {
			return Order{}, nil, ErrWarehouseFixed
		}
		stock := tx.Stock()
		touched := append(productIDs(order.Items), inputProductIDs(in.Items)...)
		if _, err := s.ledger.Lock(ctx, stock, order.WarehouseID, touched); err != nil {
			return Order{}, nil, err
		}
		if err := s.ledger.CheckAvailability(ctx, stock, order.WarehouseID, toLines(in.Items)); err != nil {
			return Order{}, nil, err
		}
		returned, err := s.release(ctx, stock, order, order.Items, "update")
		if err != nil {
			return Order{}, nil, err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return Order{}, nil, err
		}
		if err := tx.UpdateCustomer(ctx, id, customer); err != nil {
			return Order{}, nil, err
		}
		order.Customer = customer
		if order.Items, err = tx.InsertItems(ctx, id, in.Items); err != nil {
			return Order{}, nil, err
		}
		debited, err := s.debit(ctx, stock, order, order.Items)
		if err != nil {
			return Order{}, nil, err
		}
		return order, append(returned, debited...), nil
	})
}

// Complete marks an active order as handed over. Stock is not touched.
func (s *Service) Complete(ctx context.Context, id int64) (Order, error) {
	return s.transition(ctx, ActionComplete, id, func(ctx context.Context, tx TxRepository) (Order, []inventory.Movement, error) {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return Order{}, nil, err
		}
		if !order.Status.CanComplete() {
			return Order{}, nil, &TransitionError{OrderID: id, From: order.Status, Action: ActionComplete}
		}
		completedAt := s.now()
		if err := tx.UpdateStatus(ctx, id, StatusCompleted, &completedAt); err != nil {
			return Order{}, nil, err
		}
		order.Status = StatusCompleted
		order.CompletedAt = &completedAt
		return order, nil, nil
	})
}

// Cancel returns the reserved stock of an active order.
func (s *Service) Cancel(ctx context.Context, id int64) (Order, error) {
	return s.transition(ctx, ActionCancel, id, func(ctx context.Context, tx TxRepository) (Order, []inventory.Movement, error) {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return Order{}, nil, err
		}
		if !order.Status.CanCancel() {
			return Order{}, nil, &TransitionError{OrderID: id, From: order.Status, Action: ActionCancel}
		}
		stock := tx.Stock()
		if _, err := s.ledger.Lock(ctx, stock, order.WarehouseID, productIDs(order.Items)); err != nil {
			return Order{}, nil, err
		}
		movements, err := s.release(ctx, stock, order, order.Items, "cancel")
		if err != nil {
			return Order{}, nil, err
		}
		if err := tx.UpdateStatus(ctx, id, StatusCanceled, nil); err != nil {
			return Order{}, nil, err
		}
		order.Status = StatusCanceled
		return order, movements, nil
	})
}

// Reopen reactivates a canceled order when its items are still in stock.
func (s *Service) Reopen(ctx context.Context, id int64) (Order, error) {
	return s.transition(ctx, ActionReopen, id, func(ctx context.Context, tx TxRepository) (Order, []inventory.Movement, error) {
		order, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return Order{}, nil, err
		}
		if !order.Status.CanReopen() {
			return Order{}, nil, &TransitionError{OrderID: id, From: order.Status, Action: ActionReopen}
		}
		stock := tx.Stock()
		if err := s.ledger.CheckAvailability(ctx, stock, order.WarehouseID, itemLines(order.Items)); err != nil {
			return Order{}, nil, err
		}
		movements, err := s.debit(ctx, stock, order, order.Items)
		if err != nil {
			return Order{}, nil, err
		}
		if err := tx.UpdateStatus(ctx, id, StatusActive, nil); err != nil {
			return Order{}, nil, err
		}
		order.Status = StatusActive
		order.CompletedAt = nil
		return order, movements, nil
	})
}

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	if id <= 0 {
		return Order{}, ErrOrderNotFound
	}
	return s.repo.Get(ctx, id)
}

// List returns one page of orders.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, shared.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.Pagination{}, shared.NewValidationError("status", "must be one of active completed canceled")
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

type transitionFunc func(ctx context.Context, tx TxRepository) (Order, []inventory.Movement, error)

func (s *Service) transition(ctx context.Context, action Action, id int64, fn transitionFunc) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders."+string(action), trace.WithAttributes(
		attribute.String("order.action", string(action)),
		attribute.Int64("order.id", id),
	))
	defer span.End()

	var (
		order     Order
		movements []inventory.Movement
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, m, err := fn(ctx, tx)
		if err != nil {
			return err
		}
		order, movements = o, m
		return nil
	})
	s.metrics.ObserveTransition(string(action), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFailure(action, id, err)
		return Order{}, err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.status", string(order.Status)))
	span.SetStatus(codes.Ok, "")

	s.notifier.StockChanged(ctx, movements)
	s.publish(ctx, action, order)
	return order, nil
}

func (s *Service) debit(ctx context.Context, tx inventory.TxRepository, order Order, items []Item) ([]inventory.Movement, error) {
	out := make([]inventory.Movement, 0, len(items))
	for _, item := range items {
		m, err := s.recorder.Apply(ctx, tx, inventory.Entry{
			ProductID:   item.ProductID,
			WarehouseID: order.WarehouseID,
			Quantity:    -item.Count,
			Type:        inventory.MovementOrderDebit,
			Description: fmt.Sprintf("order #%d: stock debit", order.ID),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Service) release(ctx context.Context, tx inventory.TxRepository, order Order, items []Item, reason string) ([]inventory.Movement, error) {
	out := make([]inventory.Movement, 0, len(items))
	for _, item := range items {
		m, err := s.recorder.Apply(ctx, tx, inventory.Entry{
			ProductID:   item.ProductID,
			WarehouseID: order.WarehouseID,
			Quantity:    item.Count,
			Type:        inventory.MovementReturn,
			Description: fmt.Sprintf("order #%d: stock returned on %s", order.ID, reason),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, action Action, order Order) {
	if s.notifier == nil {
		return
	}
	evt, err := broker.NewEvent(eventType(action), fmt.Sprintf("%d", order.ID), order, s.now())
	if err != nil {
		s.logger.Warn("build order event", slog.Int64("order_id", order.ID), slog.Any("error", err))
		return
	}
	s.notifier.Publish(ctx, evt)
}

func eventType(action Action) string {
	switch action {
	case ActionCreate:
		return EventOrderCreated
	case ActionUpdate:
		return EventOrderUpdated
	case ActionComplete:
		return EventOrderCompleted
	case ActionCancel:
		return EventOrderCanceled
	default:
		return EventOrderReopened
	}
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), idempotencyScope, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) logFailure(action Action, id int64, err error) {
	var short *inventory.InsufficientStockError
	switch {
	case errors.As(err, &short):
		s.logger.Info("order rejected: insufficient stock",
			slog.String("action", string(action)),
			slog.Int64("order_id", id),
			slog.Int64("product_id", short.ProductID),
			slog.Int64("warehouse_id", short.WarehouseID),
			slog.Int64("required", short.Required),
			slog.Int64("available", short.Available),
		)
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidTransition),
		errors.Is(err, shared.ErrReferentialIntegrity),
		errors.Is(err, shared.ErrTxConflict):
		s.logger.Info("order rejected", slog.String("action", string(action)), slog.Int64("order_id", id), slog.Any("error", err))
	default:
		s.logger.Error("order transition failed", slog.String("action", string(action)), slog.Int64("order_id", id), slog.Any("error", err))
	}
}

func toLines(items []ItemInput) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Count: item.Count})
	}
	return lines
}

func itemLines(items []Item) []inventory.Line {
	lines := make([]inventory.Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Count: item.Count})
	}
	return lines
}

func productIDs(items []Item) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}

func inputProductIDs(items []ItemInput) []int64 {
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
