package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/depot/internal/platform/db"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Repository persists stock and movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the stock operations available inside a transaction.
type TxRepository interface {
	LockStocks(ctx context.Context, warehouseID int64, productIDs []int64) (map[int64]int64, error)
	DecrementStock(ctx context.Context, warehouseID, productID, qty int64) (remaining int64, ok bool, err error)
	IncrementStock(ctx context.Context, warehouseID, productID, qty int64) (int64, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the stock operations to an open transaction so other
// repositories can share one unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListMovements returns one page of movements, newest first, and the total count.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errors.New("inventory repository not initialised")
	}
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProductID > 0 {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.WarehouseID > 0 {
		add("warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("timestamp >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("timestamp <= $%d", filter.To)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM movements"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT id, product_id, warehouse_id, quantity, type, description, timestamp
FROM movements%s
ORDER BY timestamp DESC, id DESC
LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.Quantity, &kind, &m.Description, &m.Timestamp); err != nil {
			return nil, 0, err
		}
		m.Type = MovementType(kind)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

func (r *txRepository) LockStocks(ctx context.Context, warehouseID int64, productIDs []int64) (map[int64]int64, error) {
	levels := make(map[int64]int64, len(productIDs))
	if len(productIDs) == 0 {
		return levels, nil
	}
	rows, err := r.tx.Query(ctx, `SELECT product_id, stock FROM stocks
WHERE warehouse_id = $1 AND product_id = ANY($2)
ORDER BY product_id
FOR UPDATE`, warehouseID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var productID, stock int64
		if err := rows.Scan(&productID, &stock); err != nil {
			return nil, err
		}
		levels[productID] = stock
	}
	return levels, rows.Err()
}

func (r *txRepository) DecrementStock(ctx context.Context, warehouseID, productID, qty int64) (int64, bool, error) {
	var remaining int64
	err := r.tx.QueryRow(ctx, `UPDATE stocks SET stock = stock - $3
WHERE warehouse_id = $1 AND product_id = $2 AND stock >= $3
RETURNING stock`, warehouseID, productID, qty).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	var current int64
	err = r.tx.QueryRow(ctx, `SELECT stock FROM stocks WHERE warehouse_id = $1 AND product_id = $2`, warehouseID, productID).Scan(&current)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	return current, false, nil
}

func (r *txRepository) IncrementStock(ctx context.Context, warehouseID, productID, qty int64) (int64, error) {
	var stock int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stocks (product_id, warehouse_id, stock)
VALUES ($1, $2, $3)
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET stock = stocks.stock + EXCLUDED.stock
RETURNING stock`, productID, warehouseID, qty).Scan(&stock)
	if err != nil {
		return 0, db.MapError(err)
	}
	return stock, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO movements (product_id, warehouse_id, quantity, type, description, timestamp)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, m.ProductID, m.WarehouseID, m.Quantity, string(m.Type), m.Description, timestampOrNow(m.Timestamp)).Scan(&m.ID)
	if err != nil {
		return Movement{}, db.MapError(err)
	}
	return m, nil
}

func timestampOrNow(t time.Time) any {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
