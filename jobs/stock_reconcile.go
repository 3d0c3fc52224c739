package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/odyssey-erp/depot/internal/jobs"
)

// Discrepancy is a stock entry whose quantity disagrees with its movements or
// has gone negative.
type Discrepancy struct {
	ProductID   int64
	WarehouseID int64
	Stock       int64
	History     int64
}

// Kind classifies the discrepancy for metrics.
func (d Discrepancy) Kind() string {
	if d.Stock < 0 {
		return "negative"
	}
	return "drift"
}

// DiscrepancySource lists inconsistent stock entries.
type DiscrepancySource interface {
	Discrepancies(ctx context.Context, warehouseID int64) (checked int, found []Discrepancy, err error)
}

// PostgresDiscrepancies reads discrepancies from the stocks and movements tables.
type PostgresDiscrepancies struct {
	Pool *pgxpool.Pool
}

// Discrepancies implements DiscrepancySource. A zero warehouseID checks every warehouse.
func (p PostgresDiscrepancies) Discrepancies(ctx context.Context, warehouseID int64) (int, []Discrepancy, error) {
	if p.Pool == nil {
		return 0, nil, errors.New("stock reconcile: pool not configured")
	}
	rows, err := p.Pool.Query(ctx, `SELECT s.product_id, s.warehouse_id, s.stock, COALESCE(m.total, 0)
FROM stocks s
LEFT JOIN (
    SELECT product_id, warehouse_id, SUM(quantity) AS total
    FROM movements
    GROUP BY product_id, warehouse_id
) m ON m.product_id = s.product_id AND m.warehouse_id = s.warehouse_id
WHERE $1::bigint = 0 OR s.warehouse_id = $1
ORDER BY s.warehouse_id, s.product_id`, warehouseID)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	checked := 0
	var found []Discrepancy
	for rows.Next() {
		var d Discrepancy
		if err := rows.Scan(&d.ProductID, &d.WarehouseID, &d.Stock, &d.History); err != nil {
			return 0, nil, err
		}
		checked++
		if d.Stock < 0 || d.Stock != d.History {
			found = append(found, d)
		}
	}
	return checked, found, rows.Err()
}

// StockReconcileJob verifies that every stock entry equals the sum of its
// movements and is not negative. It reports; it never repairs.
type StockReconcileJob struct {
	Source  DiscrepancySource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockReconcileJob initialises the reconcile handler.
func NewStockReconcileJob(source DiscrepancySource, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockReconcileJob {
	return &StockReconcileJob{Source: source, Logger: logger, Metrics: metrics}
}

// Handle executes one reconcile run.
func (j *StockReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload StockReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run reconciles and returns the discrepancies found.
func (j *StockReconcileJob) Run(ctx context.Context, payload StockReconcilePayload) (result []Discrepancy, resultErr error) {
	tracker := j.Metrics.Track(TaskStockReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()
	start := time.Now()
	logger := j.logger().With(slog.String("job", TaskStockReconcile), slog.Int64("warehouse_id", payload.WarehouseID))

	checked, found, err := j.Source.Discrepancies(ctx, payload.WarehouseID)
	if err != nil {
		logger.Error("stock reconcile failed", slog.Any("error", err))
		return nil, err
	}
	counts := map[string]int{}
	for _, d := range found {
		counts[d.Kind()]++
		logger.Warn("stock discrepancy detected",
			slog.Int64("product_id", d.ProductID),
			slog.Int64("warehouse_id", d.WarehouseID),
			slog.Int64("stock", d.Stock),
			slog.Int64("movement_sum", d.History),
			slog.String("kind", d.Kind()),
		)
	}
	for kind, n := range counts {
		j.Metrics.AddDiscrepancies(kind, n)
	}
	logger.Info("stock reconcile completed",
		slog.Int("checked", checked),
		slog.Int("discrepancies", len(found)),
		slog.Duration("duration", time.Since(start)),
	)
	return found, nil
}

func (j *StockReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
