package warehouses

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/depot/internal/shared"
)

type Repository interface {
	List(ctx context.Context, page, perPage int) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, page, perPage int) ([]Warehouse, int, error) {
	if r.pool == nil {
		return nil, 0, errNoRepository
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM warehouses`).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := shared.NewPagination(page, perPage, total)
	rows, err := r.pool.Query(ctx, `SELECT id, name, created_at FROM warehouses ORDER BY id LIMIT $1 OFFSET $2`, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []Warehouse{}
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.CreatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, w)
	}
	return list, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	if r.pool == nil {
		return Warehouse{}, errNoRepository
	}
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at FROM warehouses WHERE id = $1`, id).Scan(&w.ID, &w.Name, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrNotFound
	}
	return w, err
}

func (r *repository) Create(ctx context.Context, w Warehouse) (Warehouse, error) {
	if r.pool == nil {
		return Warehouse{}, errNoRepository
	}
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (name) VALUES ($1) RETURNING id, created_at`, w.Name).Scan(&w.ID, &w.CreatedAt)
	return w, err
}
