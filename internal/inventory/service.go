package inventory

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/shared"
)

const idempotencyScope = "inventory.movement"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
}

// IdempotencyPort claims client request keys.
type IdempotencyPort interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

// ServiceOptions groups optional collaborators.
type ServiceOptions struct {
	Idempotency IdempotencyPort
	Notifier    *Notifier
	Metrics     *observability.EngineMetrics
	Tracer      trace.Tracer
	Logger      *slog.Logger
}

// Service ingests arrivals, sales and returns.
type Service struct {
	repo        RepositoryPort
	recorder    *Recorder
	idempotency IdempotencyPort
	notifier    *Notifier
	metrics     *observability.EngineMetrics
	tracer      trace.Tracer
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, recorder *Recorder, opts ServiceOptions) *Service {
	if recorder == nil {
		recorder = NewRecorder(nil)
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("inventory")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		recorder:    recorder,
		idempotency: opts.Idempotency,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		logger:      opts.Logger,
	}
}

// PostMovement applies an arrival, sale or return and records it. Arrivals and
// returns add stock; a sale larger than free stock fails with
// InsufficientStockError and writes nothing.
func (s *Service) PostMovement(ctx context.Context, input MovementInput) (Movement, error) {
	kind, err := ParseIngestType(input.Type)
	if err != nil {
		return Movement{}, err
	}
	if input.ProductID <= 0 || input.WarehouseID <= 0 {
		return Movement{}, ErrMissingReference
	}
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}

	ctx, span := s.tracer.Start(ctx, "inventory.PostMovement", trace.WithAttributes(
		attribute.Int64("product.id", input.ProductID),
		attribute.Int64("warehouse.id", input.WarehouseID),
		attribute.Int64("movement.quantity", input.Quantity),
		attribute.String("movement.type", string(kind)),
	))
	defer span.End()

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Claim(ctx, idempotencyScope, input.IdempotencyKey); err != nil {
			return Movement{}, err
		}
	}

	entry := Entry{
		ProductID:   input.ProductID,
		WarehouseID: input.WarehouseID,
		Quantity:    input.Quantity,
		Type:        kind,
		Description: input.Description,
	}
	if !kind.Increases() {
		entry.Quantity = -input.Quantity
	}
	if entry.Description == "" {
		entry.Description = defaultDescription(kind)
	}

	var recorded Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := s.recorder.Apply(ctx, tx, entry)
		if err != nil {
			return err
		}
		recorded = m
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, input.IdempotencyKey)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logFailure(input, kind, err)
		return Movement{}, err
	}
	span.SetStatus(codes.Ok, "")
	s.notifier.StockChanged(ctx, []Movement{recorded})
	return recorded, nil
}

// ListMovements returns one page of movements.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, shared.Pagination, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, shared.Pagination{}, ErrUnknownMovementType
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	movements, total, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(context.WithoutCancel(ctx), idempotencyScope, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) logFailure(input MovementInput, kind MovementType, err error) {
	var short *InsufficientStockError
	switch {
	case errors.As(err, &short):
		s.metrics.ObserveRejection(string(kind))
		s.logger.Info("movement rejected: insufficient stock",
			slog.Int64("product_id", short.ProductID),
			slog.Int64("warehouse_id", short.WarehouseID),
			slog.Int64("required", short.Required),
			slog.Int64("available", short.Available),
		)
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrReferentialIntegrity), errors.Is(err, shared.ErrTxConflict):
		s.logger.Info("movement rejected", slog.String("type", string(kind)), slog.Any("error", err))
	default:
		s.logger.Error("movement failed",
			slog.Int64("product_id", input.ProductID),
			slog.Int64("warehouse_id", input.WarehouseID),
			slog.String("type", string(kind)),
			slog.Any("error", err),
		)
	}
}

func defaultDescription(kind MovementType) string {
	switch kind {
	case MovementArrival:
		return "goods arrival"
	case MovementSale:
		return "direct sale"
	case MovementReturn:
		return "customer return"
	default:
		return string(kind)
	}
}
