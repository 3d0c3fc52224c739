package products

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/shared"
)

type Repository interface {
	ListWithStock(ctx context.Context, page, perPage int) ([]ProductWithStock, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	// Missing returns the ids among ids that have no product, ascending.
	Missing(ctx context.Context, ids []int64) ([]int64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) ListWithStock(ctx context.Context, page, perPage int) ([]ProductWithStock, int, error) {
	if r.pool == nil {
		return nil, 0, errNoRepository
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := shared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT id, name, price::text, created_at FROM products ORDER BY id LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	list := []ProductWithStock{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		index[product.ID] = len(list)
		ids = append(ids, product.ID)
		list = append(list, ProductWithStock{Product: product, Stocks: []WarehouseStock{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return list, total, nil
	}

	rows, err = r.pool.Query(ctx, `SELECT s.product_id, s.warehouse_id, w.name, s.stock
FROM stocks s
JOIN warehouses w ON w.id = s.warehouse_id
WHERE s.product_id = ANY($1)
ORDER BY s.product_id, s.warehouse_id`, ids)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			productID int64
			ws        WarehouseStock
		)
		if err := rows.Scan(&productID, &ws.WarehouseID, &ws.WarehouseName, &ws.Stock); err != nil {
			return nil, 0, err
		}
		i := index[productID]
		list[i].Stocks = append(list[i].Stocks, ws)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	if r.pool == nil {
		return Product{}, errNoRepository
	}
	product, err := scanProduct(r.pool.QueryRow(ctx, `SELECT id, name, price::text, created_at FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return product, err
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	if r.pool == nil {
		return Product{}, errNoRepository
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, price) VALUES ($1, $2::numeric) RETURNING id, created_at`, p.Name, p.Price.StringFixed(2)).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

func (r *repository) Missing(ctx context.Context, ids []int64) ([]int64, error) {
	if r.pool == nil {
		return nil, errNoRepository
	}
	rows, err := r.pool.Query(ctx, `SELECT id FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	found := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
			found[id] = true
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.CreatedAt); err != nil {
		return Product{}, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return Product{}, err
	}
	p.Price = parsed
	return p, nil
}
