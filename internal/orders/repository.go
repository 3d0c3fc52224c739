package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/platform/db"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Repository persists orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes order operations inside a transaction together with
// the stock operations of the same unit of work.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	Insert(ctx context.Context, order Order) (Order, error)
	InsertItems(ctx context.Context, orderID int64, items []ItemInput) ([]Item, error)
	DeleteItems(ctx context.Context, orderID int64) error
	UpdateCustomer(ctx context.Context, id int64, customer string) error
	UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error
	Stock() inventory.TxRepository
}

type txRepo struct {
	tx    pgx.Tx
	stock inventory.TxRepository
}

// WithTx runs fn inside one read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errNoRepository
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, stock: inventory.NewTxRepository(tx)})
	})
}

const orderColumns = `id, customer, warehouse_id, status, created_at, completed_at`

// Get loads an order with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	if r == nil || r.pool == nil {
		return Order{}, errNoRepository
	}
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	items, err := loadItems(ctx, r.pool, []int64{id})
	if err != nil {
		return Order{}, err
	}
	order.Items = items[id]
	return order, nil
}

// List returns one page of orders, newest first, and the total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errNoRepository
	}
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if c := strings.TrimSpace(filter.Customer); c != "" {
		add("customer ILIKE $%d", "%"+escapeLike(c)+"%")
	}
	if filter.WarehouseID > 0 {
		add("warehouse_id = $%d", filter.WarehouseID)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM orders"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)
	args = append(args, page.PerPage, page.Offset())
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM orders%s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, orderColumns, clause, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Order{}
	ids := []int64{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return list, total, nil
	}
	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range list {
		list[i].Items = items[list[i].ID]
	}
	return list, total, nil
}

func (t *txRepo) Stock() inventory.TxRepository {
	return t.stock
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	items, err := loadItems(ctx, t.tx, []int64{id})
	if err != nil {
		return Order{}, err
	}
	order.Items = items[id]
	return order, nil
}

func (t *txRepo) Insert(ctx context.Context, order Order) (Order, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (customer, warehouse_id, status, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`, order.Customer, order.WarehouseID, string(order.Status), order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return Order{}, db.MapError(err)
	}
	return order, nil
}

func (t *txRepo) InsertItems(ctx context.Context, orderID int64, items []ItemInput) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, in := range items {
		item := Item{OrderID: orderID, ProductID: in.ProductID, Count: in.Count}
		err := t.tx.QueryRow(ctx, `INSERT INTO order_items (order_id, product_id, count)
VALUES ($1, $2, $3)
RETURNING id`, orderID, in.ProductID, in.Count).Scan(&item.ID)
		if err != nil {
			return nil, db.MapError(err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (t *txRepo) DeleteItems(ctx context.Context, orderID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID)
	return err
}

func (t *txRepo) UpdateCustomer(ctx context.Context, id int64, customer string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET customer = $2 WHERE id = $1`, id, customer)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, completedAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, completed_at = $3 WHERE id = $1`, id, string(status), completedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		order  Order
		status string
	)
	err := row.Scan(&order.ID, &order.Customer, &order.WarehouseID, &status, &order.CreatedAt, &order.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	if err != nil {
		return Order{}, err
	}
	order.Status = Status(status)
	return order, nil
}

func loadItems(ctx context.Context, q querier, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, count FROM order_items
WHERE order_id = ANY($1)
ORDER BY order_id, id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Count); err != nil {
			return nil, err
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
