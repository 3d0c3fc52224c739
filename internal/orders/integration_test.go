package orders_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/orders"
	"github.com/odyssey-erp/depot/internal/platform/db/dbtest"
	"github.com/odyssey-erp/depot/internal/shared"
)

type pgFixture struct {
	pool      *pgxpool.Pool
	svc       *orders.Service
	warehouse int64
	laptop    int64
	phone     int64
}

func newPgFixture(t *testing.T, stock int64) pgFixture {
	t.Helper()
	pool := dbtest.Open(t)
	wh, p1 := dbtest.SeedPair(t, pool, "Main", "Laptop")
	p2 := dbtest.SeedProduct(t, pool, "Phone")
	recorder := inventory.NewRecorder(nil)
	movements := inventory.NewService(inventory.NewRepository(pool), recorder, inventory.ServiceOptions{})
	for _, pid := range []int64{p1, p2} {
		_, err := movements.PostMovement(context.Background(), inventory.MovementInput{ProductID: pid, WarehouseID: wh, Quantity: stock, Type: "arrival"})
		require.NoError(t, err)
	}
	return pgFixture{
		pool:      pool,
		svc:       orders.NewService(orders.NewRepository(pool), recorder, orders.ServiceOptions{}),
		warehouse: wh,
		laptop:    p1,
		phone:     p2,
	}
}

func (f pgFixture) level(t *testing.T, productID int64) (stock, history int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT stock FROM stocks WHERE warehouse_id=$1 AND product_id=$2`, f.warehouse, productID).Scan(&stock))
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0) FROM movements WHERE warehouse_id=$1 AND product_id=$2`, f.warehouse, productID).Scan(&history))
	return stock, history
}

func TestPostgresOrderLifecycle(t *testing.T) {
	f := newPgFixture(t, 10)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, orders.CreateInput{
		Customer:    "Acme Retail",
		WarehouseID: f.warehouse,
		Items:       []orders.ItemInput{{ProductID: f.laptop, Count: 3}, {ProductID: f.phone, Count: 2}},
	})
	require.NoError(t, err)
	stock, _ := f.level(t, f.laptop)
	assert.Equal(t, int64(7), stock)

	got, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, orders.StatusActive, got.Status)

	_, err = f.svc.Update(ctx, order.ID, orders.UpdateInput{Customer: "Acme", Items: []orders.ItemInput{{ProductID: f.phone, Count: 4}}})
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, order.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	_, err = f.svc.Reopen(ctx, order.ID)
	require.NoError(t, err)
	done, err := f.svc.Complete(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	for pid, want := range map[int64]int64{f.laptop: 10, f.phone: 6} {
		stock, history := f.level(t, pid)
		assert.Equal(t, want, stock)
		assert.Equal(t, stock, history)
	}

	list, page, err := f.svc.List(ctx, orders.ListFilter{Customer: "acm", Status: orders.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Items, 1)
}

func TestPostgresFailedCreateLeavesNothing(t *testing.T) {
	f := newPgFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, orders.CreateInput{
		Customer:    "Acme",
		WarehouseID: f.warehouse,
		Items:       []orders.ItemInput{{ProductID: f.laptop, Count: 1}, {ProductID: f.phone, Count: 3}},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	var count int
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	assert.Zero(t, count)
	stock, history := f.level(t, f.laptop)
	assert.Equal(t, int64(2), stock)
	assert.Equal(t, stock, history)
}

func TestPostgresItemCountBeyondInt32(t *testing.T) {
	const large = int64(3_000_000_000)
	f := newPgFixture(t, large)
	ctx := context.Background()

	order, err := f.svc.Create(ctx, orders.CreateInput{
		Customer:    "Bulk",
		WarehouseID: f.warehouse,
		Items:       []orders.ItemInput{{ProductID: f.laptop, Count: large}},
	})
	require.NoError(t, err)
	got, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, large, got.Items[0].Count)
	stock, _ := f.level(t, f.laptop)
	assert.Zero(t, stock)
}

// The in-memory fakes serialise whole transactions, so only this test races
// real row locks. It runs when TEST_DATABASE_URL is set.
func TestPostgresConcurrentOrdersKeepStockConsistent(t *testing.T) {
	f := newPgFixture(t, 15)
	ctx := context.Background()

	const workers = 30
	errs := make([]error, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		items := []orders.ItemInput{{ProductID: f.laptop, Count: 1}, {ProductID: f.phone, Count: 1}}
		if i%2 == 1 {
			items[0], items[1] = items[1], items[0]
		}
		g.Go(func() error {
			order, err := f.svc.Create(ctx, orders.CreateInput{Customer: "rush", WarehouseID: f.warehouse, Items: items})
			if err == nil && i%3 == 0 {
				_, err = f.svc.Cancel(ctx, order.ID)
			}
			errs[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, err := range errs {
		if err != nil {
			require.True(t, errors.Is(err, shared.ErrInsufficientStock), "unexpected error: %v", err)
		}
	}
	var active int64
	require.NoError(t, f.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status = 'active'`).Scan(&active))
	for _, pid := range []int64{f.laptop, f.phone} {
		stock, history := f.level(t, pid)
		assert.GreaterOrEqual(t, stock, int64(0))
		assert.Equal(t, stock, history)
		assert.Equal(t, 15-active, stock)
	}
}
