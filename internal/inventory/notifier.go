package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/depot/internal/observability"
	"github.com/odyssey-erp/depot/internal/platform/broker"
)

// EventStockMovement is published for every committed movement.
const EventStockMovement = "stock.movement"

// CachePort invalidates read models derived from stock.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Notifier fans committed stock changes out to the read cache, the event
// stream and metrics. Failures are logged; the stock change already happened.
type Notifier struct {
	cache     CachePort
	publisher broker.Publisher
	metrics   *observability.EngineMetrics
	logger    *slog.Logger
}

// NewNotifier constructs a Notifier. Any dependency may be nil.
func NewNotifier(cache CachePort, publisher broker.Publisher, metrics *observability.EngineMetrics, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{cache: cache, publisher: publisher, metrics: metrics, logger: logger}
}

// StockChanged reports movements written by a committed transaction.
func (n *Notifier) StockChanged(ctx context.Context, movements []Movement) {
	if n == nil || len(movements) == 0 {
		return
	}
	for _, m := range movements {
		n.metrics.ObserveMovement(string(m.Type))
	}
	if n.cache != nil {
		if err := n.cache.Bump(ctx); err != nil {
			n.logger.Warn("stock cache bump failed", slog.Any("error", err))
		}
	}
	if n.publisher == nil {
		return
	}
	events := make([]broker.Event, 0, len(movements))
	for _, m := range movements {
		evt, err := broker.NewEvent(EventStockMovement, fmt.Sprintf("%d:%d", m.WarehouseID, m.ProductID), m, m.Timestamp)
		if err != nil {
			n.logger.Warn("build stock event", slog.Any("error", err))
			continue
		}
		events = append(events, evt)
	}
	n.Publish(ctx, events...)
}

// Publish sends events with a bounded timeout, logging failures.
func (n *Notifier) Publish(ctx context.Context, events ...broker.Event) {
	if n == nil || n.publisher == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := n.publisher.Publish(ctx, events...); err != nil {
		n.logger.Warn("publish events failed", slog.Int("count", len(events)), slog.Any("error", err))
	}
}
