package inventory

import (
	"context"
	"sort"
)

// Ledger owns the per product and warehouse stock counters. It never writes
// movements; every mutation must be paired with Recorder.Record in the same
// transaction, which Recorder.Apply does.
type Ledger struct{}

// NewLedger constructs a Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Lock takes row locks on the stock entries of productIDs in product order
// and returns their current quantities. Missing entries are reported as zero.
// Callers lock every row they will touch before mutating any of them.
func (l *Ledger) Lock(ctx context.Context, tx TxRepository, warehouseID int64, productIDs []int64) (map[int64]int64, error) {
	ids := uniqueSorted(productIDs)
	levels, err := tx.LockStocks(ctx, warehouseID, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := levels[id]; !ok {
			levels[id] = 0
		}
	}
	return levels, nil
}

// CheckAvailability verifies the warehouse holds enough free stock for lines.
// Counts for the same product are summed. Rows are locked so the result stays
// valid until the transaction ends. Nothing is mutated.
func (l *Ledger) CheckAvailability(ctx context.Context, tx TxRepository, warehouseID int64, lines []Line) error {
	required, ids, err := aggregate(lines)
	if err != nil {
		return err
	}
	levels, err := l.Lock(ctx, tx, warehouseID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if available := levels[id]; available < required[id] {
			return &InsufficientStockError{ProductID: id, WarehouseID: warehouseID, Required: required[id], Available: available}
		}
	}
	return nil
}

// Reduce decrements stock by qty only when qty does not exceed the current
// quantity; otherwise state is left unchanged and InsufficientStockError is
// returned. It returns the remaining quantity.
func (l *Ledger) Reduce(ctx context.Context, tx TxRepository, warehouseID, productID, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	remaining, ok, err := tx.DecrementStock(ctx, warehouseID, productID, qty)
	if err != nil {
		return 0, err
	}
	if !ok {
		return remaining, &InsufficientStockError{ProductID: productID, WarehouseID: warehouseID, Required: qty, Available: remaining}
	}
	return remaining, nil
}

// Increase adds qty to the stock entry, creating it when missing.
func (l *Ledger) Increase(ctx context.Context, tx TxRepository, warehouseID, productID, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	return tx.IncrementStock(ctx, warehouseID, productID, qty)
}

func aggregate(lines []Line) (map[int64]int64, []int64, error) {
	required := make(map[int64]int64, len(lines))
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, nil, ErrMissingReference
		}
		if line.Count <= 0 {
			return nil, nil, ErrInvalidQuantity
		}
		required[line.ProductID] += line.Count
	}
	ids := make([]int64, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return required, ids, nil
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
