package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/platform/db/dbtest"
	"github.com/odyssey-erp/depot/internal/shared"
)

// Races the conditional decrement under real row locks. Runs when
// TEST_DATABASE_URL is set.
func TestPostgresConcurrentSalesStopAtZero(t *testing.T) {
	pool := dbtest.Open(t)
	warehouseID, productID := dbtest.SeedPair(t, pool, "Main", "Laptop")
	svc := inventory.NewService(inventory.NewRepository(pool), inventory.NewRecorder(nil), inventory.ServiceOptions{})
	ctx := context.Background()

	const stock, requests = 10, 40
	_, err := svc.PostMovement(ctx, inventory.MovementInput{ProductID: productID, WarehouseID: warehouseID, Quantity: stock, Type: "arrival"})
	require.NoError(t, err)

	errs := make([]error, requests)
	var g errgroup.Group
	for i := 0; i < requests; i++ {
		g.Go(func() error {
			_, errs[i] = svc.PostMovement(ctx, inventory.MovementInput{ProductID: productID, WarehouseID: warehouseID, Quantity: 1, Type: "sale"})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, shared.ErrInsufficientStock), "unexpected error: %v", err)
	}
	require.Equal(t, stock, ok)

	var left, sum int64
	require.NoError(t, pool.QueryRow(ctx, `SELECT stock FROM stocks WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).Scan(&left))
	require.NoError(t, pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity),0) FROM movements WHERE product_id=$1 AND warehouse_id=$2`, productID, warehouseID).Scan(&sum))
	require.Zero(t, left)
	require.Equal(t, left, sum)
}

func TestPostgresUnknownProductIsReferentialIntegrity(t *testing.T) {
	pool := dbtest.Open(t)
	warehouseID, _ := dbtest.SeedPair(t, pool, "Main", "Phone")
	svc := inventory.NewService(inventory.NewRepository(pool), inventory.NewRecorder(nil), inventory.ServiceOptions{})

	_, err := svc.PostMovement(context.Background(), inventory.MovementInput{ProductID: 999, WarehouseID: warehouseID, Quantity: 1, Type: "arrival"})
	require.ErrorIs(t, err, shared.ErrReferentialIntegrity)
}

func TestPostgresListMovementsFilters(t *testing.T) {
	pool := dbtest.Open(t)
	warehouseID, productID := dbtest.SeedPair(t, pool, "Main", "Tablet")
	repo := inventory.NewRepository(pool)
	svc := inventory.NewService(repo, inventory.NewRecorder(nil), inventory.ServiceOptions{})
	ctx := context.Background()

	for _, kind := range []string{"arrival", "arrival", "sale", "return"} {
		_, err := svc.PostMovement(ctx, inventory.MovementInput{ProductID: productID, WarehouseID: warehouseID, Quantity: 2, Type: kind})
		require.NoError(t, err)
	}
	movements, page, err := svc.ListMovements(ctx, inventory.MovementFilter{WarehouseID: warehouseID, Type: inventory.MovementArrival})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Len(t, movements, 2)
	for _, m := range movements {
		require.Equal(t, inventory.MovementArrival, m.Type)
	}
}
