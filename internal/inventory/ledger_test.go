package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/inventory/inventorytest"
	"github.com/odyssey-erp/depot/internal/shared"
)

func TestCheckAvailabilitySumsDuplicateProducts(t *testing.T) {
	store := inventorytest.NewStore()
	store.Seed(1, 1, 5)
	store.Seed(1, 2, 1)
	ledger := inventory.NewLedger()

	err := store.Atomic(func(tx *inventorytest.Tx) error {
		return ledger.CheckAvailability(context.Background(), tx, 1, []inventory.Line{
			{ProductID: 1, Count: 3},
			{ProductID: 2, Count: 1},
			{ProductID: 1, Count: 3},
		})
	})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(1), short.ProductID)
	require.Equal(t, int64(6), short.Required)
	require.Equal(t, int64(5), short.Available)
}

func TestCheckAvailabilityDoesNotMutate(t *testing.T) {
	store := inventorytest.NewStore()
	store.Seed(1, 1, 5)
	ledger := inventory.NewLedger()

	err := store.Atomic(func(tx *inventorytest.Tx) error {
		return ledger.CheckAvailability(context.Background(), tx, 1, []inventory.Line{{ProductID: 1, Count: 5}})
	})
	require.NoError(t, err)
	stock, _ := store.Stock(1, 1)
	require.Equal(t, int64(5), stock)
}

func TestCheckAvailabilityReportsMissingEntryAsZero(t *testing.T) {
	store := inventorytest.NewStore()
	ledger := inventory.NewLedger()
	err := store.Atomic(func(tx *inventorytest.Tx) error {
		return ledger.CheckAvailability(context.Background(), tx, 3, []inventory.Line{{ProductID: 7, Count: 1}})
	})
	var short *inventory.InsufficientStockError
	require.ErrorAs(t, err, &short)
	require.Equal(t, int64(3), short.WarehouseID)
	require.Zero(t, short.Available)
}

func TestReduceAndIncreaseRejectNonPositive(t *testing.T) {
	store := inventorytest.NewStore()
	ledger := inventory.NewLedger()
	err := store.Atomic(func(tx *inventorytest.Tx) error {
		_, err := ledger.Reduce(context.Background(), tx, 1, 1, 0)
		return err
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	err = store.Atomic(func(tx *inventorytest.Tx) error {
		_, err := ledger.Increase(context.Background(), tx, 1, 1, -1)
		return err
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

// The fake store runs one transaction at a time, so this checks the
// accounting only. TestPostgresConcurrentSalesStopAtZero races real row locks.
func TestConcurrentReducesNeverOversell(t *testing.T) {
	const (
		stock    = 25
		requests = 60
	)
	store := inventorytest.NewStore()
	store.Seed(1, 1, stock)
	recorder := inventory.NewRecorder(nil)
	repo := inventorytest.Repository{Store: store}

	results := make(chan error, requests)
	var g errgroup.Group
	for i := 0; i < requests; i++ {
		g.Go(func() error {
			results <- repo.WithTx(context.Background(), func(ctx context.Context, tx inventory.TxRepository) error {
				_, err := recorder.Apply(ctx, tx, inventory.Entry{ProductID: 1, WarehouseID: 1, Quantity: -1, Type: inventory.MovementSale})
				return err
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())
	close(results)

	var ok, short int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrInsufficientStock):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, stock, ok)
	require.Equal(t, requests-stock, short)
	left, _ := store.Stock(1, 1)
	require.Zero(t, left)
	require.Len(t, store.Movements(), 1+stock)
}

func TestRecorderRejectsZeroAndUnknownType(t *testing.T) {
	store := inventorytest.NewStore()
	recorder := inventory.NewRecorder(nil)
	err := store.Atomic(func(tx *inventorytest.Tx) error {
		_, err := recorder.Record(context.Background(), tx, inventory.Movement{ProductID: 1, WarehouseID: 1, Quantity: 0, Type: inventory.MovementArrival})
		return err
	})
	require.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	err = store.Atomic(func(tx *inventorytest.Tx) error {
		_, err := recorder.Apply(context.Background(), tx, inventory.Entry{ProductID: 1, WarehouseID: 1, Quantity: 2, Type: "gift"})
		return err
	})
	require.ErrorIs(t, err, inventory.ErrUnknownMovementType)
	require.Empty(t, store.Movements())
}

func TestParseIngestType(t *testing.T) {
	for _, raw := range []string{"arrival", "SALE", " return "} {
		_, err := inventory.ParseIngestType(raw)
		require.NoError(t, err, raw)
	}
	_, err := inventory.ParseIngestType("order_debit")
	require.ErrorIs(t, err, inventory.ErrUnknownMovementType)
	require.True(t, inventory.MovementReturn.Increases())
	require.False(t, inventory.MovementSale.Increases())
	require.False(t, inventory.MovementOrderDebit.Increases())
}
