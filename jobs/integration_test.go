package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/depot/internal/platform/db/dbtest"
)

func TestPostgresDiscrepanciesFindsDrift(t *testing.T) {
	pool := dbtest.Open(t)
	warehouseID, productID := dbtest.SeedPair(t, pool, "Main", "Laptop")
	other := dbtest.SeedProduct(t, pool, "Phone")
	ctx := context.Background()

	_, err := pool.Exec(ctx, `INSERT INTO stocks (product_id, warehouse_id, stock) VALUES ($1, $3, 10), ($2, $3, 4)`, productID, other, warehouseID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO movements (product_id, warehouse_id, quantity, type) VALUES ($1, $3, 10, 'arrival'), ($2, $3, 5, 'arrival')`, productID, other, warehouseID)
	require.NoError(t, err)

	checked, found, err := PostgresDiscrepancies{Pool: pool}.Discrepancies(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 2, checked)
	require.Len(t, found, 1)
	require.Equal(t, other, found[0].ProductID)
	require.Equal(t, int64(4), found[0].Stock)
	require.Equal(t, int64(5), found[0].History)

	checked, _, err = PostgresDiscrepancies{Pool: pool}.Discrepancies(ctx, warehouseID+1)
	require.NoError(t, err)
	require.Zero(t, checked)
}
