package inventory

import (
	"context"
	"fmt"
	"time"
)

// Recorder appends movements and applies the matching ledger change inside
// the caller's transaction.
type Recorder struct {
	ledger *Ledger
	now    func() time.Time
}

// NewRecorder constructs a Recorder on top of ledger.
func NewRecorder(ledger *Ledger) *Recorder {
	if ledger == nil {
		ledger = NewLedger()
	}
	return &Recorder{ledger: ledger, now: func() time.Time { return time.Now().UTC() }}
}

// Ledger exposes the ledger the recorder mutates.
func (r *Recorder) Ledger() *Ledger {
	return r.ledger
}

// Record appends m without touching stock. A reference to an unknown product
// or warehouse fails with shared.ErrReferentialIntegrity.
func (r *Recorder) Record(ctx context.Context, tx TxRepository, m Movement) (Movement, error) {
	if m.ProductID <= 0 || m.WarehouseID <= 0 {
		return Movement{}, ErrMissingReference
	}
	if m.Quantity == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !m.Type.IsValid() {
		return Movement{}, fmt.Errorf("%w: %q", ErrUnknownMovementType, m.Type)
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = r.now()
	}
	return tx.InsertMovement(ctx, m)
}

// Apply changes stock by the signed quantity of e and records the movement.
// A negative quantity that exceeds free stock fails with
// InsufficientStockError before anything is written.
func (r *Recorder) Apply(ctx context.Context, tx TxRepository, e Entry) (Movement, error) {
	if e.Quantity == 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if !e.Type.IsValid() {
		return Movement{}, fmt.Errorf("%w: %q", ErrUnknownMovementType, e.Type)
	}
	var err error
	if e.Quantity > 0 {
		_, err = r.ledger.Increase(ctx, tx, e.WarehouseID, e.ProductID, e.Quantity)
	} else {
		_, err = r.ledger.Reduce(ctx, tx, e.WarehouseID, e.ProductID, -e.Quantity)
	}
	if err != nil {
		return Movement{}, err
	}
	return r.Record(ctx, tx, Movement{
		ProductID:   e.ProductID,
		WarehouseID: e.WarehouseID,
		Quantity:    e.Quantity,
		Type:        e.Type,
		Description: e.Description,
	})
}
