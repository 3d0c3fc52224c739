// Package dbtest opens a migrated PostgreSQL database for integration tests.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/odyssey-erp/depot/internal/platform/db"
)

// EnvKey names the DSN variable integration tests read.
const EnvKey = "TEST_DATABASE_URL"

// Open returns a pool to a freshly truncated database, skipping the test when
// no database is configured. A .env file at the module root is honoured.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()
	loadDotEnv()
	dsn := os.Getenv(EnvKey)
	if dsn == "" {
		t.Skipf("%s not set; skipping PostgreSQL integration test", EnvKey)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 20})
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE movements, order_items, orders, stocks, products, warehouses, idempotency_keys RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate test database: %v", err)
	}
	return pool
}

// SeedPair inserts a warehouse and a product and returns their ids.
func SeedPair(t *testing.T, pool *pgxpool.Pool, warehouse, product string) (warehouseID, productID int64) {
	t.Helper()
	ctx := context.Background()
	if err := pool.QueryRow(ctx, `INSERT INTO warehouses (name) VALUES ($1) RETURNING id`, warehouse).Scan(&warehouseID); err != nil {
		t.Fatalf("seed warehouse: %v", err)
	}
	productID = SeedProduct(t, pool, product)
	return warehouseID, productID
}

// SeedProduct inserts a product priced at 1.00.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, name string) int64 {
	t.Helper()
	var id int64
	if err := pool.QueryRow(context.Background(), `INSERT INTO products (name, price) VALUES ($1, 1.00) RETURNING id`, name).Scan(&id); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return id
}

func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			_ = godotenv.Load(candidate)
			return
		}
		dir = filepath.Dir(dir)
	}
}
