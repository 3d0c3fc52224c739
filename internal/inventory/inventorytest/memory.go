// Package inventorytest provides an in-memory stock store for tests.
package inventorytest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/shared"
)

type pair struct {
	warehouseID int64
	productID   int64
}

type state struct {
	stocks    map[pair]int64
	movements []inventory.Movement
	nextID    int64
}

func (s state) clone() state {
	out := state{stocks: make(map[pair]int64, len(s.stocks)), nextID: s.nextID}
	for k, v := range s.stocks {
		out.stocks[k] = v
	}
	out.movements = append([]inventory.Movement(nil), s.movements...)
	return out
}

// Store keeps stock and movements in memory. Transactions are serialised and
// work on a copy of the state that is swapped in only on success.
type Store struct {
	mu         sync.Mutex
	state      state
	products   map[int64]struct{}
	warehouses map[int64]struct{}
}

// NewStore constructs an empty Store. When products or warehouses are
// registered, writes referencing unknown ids fail with
// shared.ErrReferentialIntegrity.
func NewStore() *Store {
	return &Store{
		state:      state{stocks: make(map[pair]int64)},
		products:   make(map[int64]struct{}),
		warehouses: make(map[int64]struct{}),
	}
}

// Register declares known product and warehouse ids.
func (s *Store) Register(warehouseIDs, productIDs []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range warehouseIDs {
		s.warehouses[id] = struct{}{}
	}
	for _, id := range productIDs {
		s.products[id] = struct{}{}
	}
}

// Seed sets a stock level directly, recording a matching arrival.
func (s *Store) Seed(warehouseID, productID, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.stocks[pair{warehouseID, productID}] += qty
	s.state.nextID++
	s.state.movements = append(s.state.movements, inventory.Movement{
		ID:          s.state.nextID,
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    qty,
		Type:        inventory.MovementArrival,
		Description: "seed",
		Timestamp:   time.Now().UTC(),
	})
}

// Stock returns the current quantity and whether the entry exists.
func (s *Store) Stock(warehouseID, productID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state.stocks[pair{warehouseID, productID}]
	return v, ok
}

// Movements returns a copy of every recorded movement in insertion order.
func (s *Store) Movements() []inventory.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]inventory.Movement(nil), s.state.movements...)
}

// Atomic runs fn against a private copy of the state and publishes it only
// when fn succeeds.
func (s *Store) Atomic(fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &Tx{store: s, state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Tx implements inventory.TxRepository over a Store transaction.
type Tx struct {
	store *Store
	state state
}

var _ inventory.TxRepository = (*Tx)(nil)

func (t *Tx) checkRefs(warehouseID, productID int64) error {
	if len(t.store.warehouses) > 0 {
		if _, ok := t.store.warehouses[warehouseID]; !ok {
			return fmt.Errorf("%w: warehouse %d", shared.ErrReferentialIntegrity, warehouseID)
		}
	}
	if len(t.store.products) > 0 {
		if _, ok := t.store.products[productID]; !ok {
			return fmt.Errorf("%w: product %d", shared.ErrReferentialIntegrity, productID)
		}
	}
	return nil
}

// LockStocks implements inventory.TxRepository.
func (t *Tx) LockStocks(_ context.Context, warehouseID int64, productIDs []int64) (map[int64]int64, error) {
	ids := append([]int64(nil), productIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make(map[int64]int64, len(ids))
	for _, id := range ids {
		if v, ok := t.state.stocks[pair{warehouseID, id}]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// DecrementStock implements inventory.TxRepository.
func (t *Tx) DecrementStock(_ context.Context, warehouseID, productID, qty int64) (int64, bool, error) {
	key := pair{warehouseID, productID}
	current, ok := t.state.stocks[key]
	if !ok || current < qty {
		return current, false, nil
	}
	t.state.stocks[key] = current - qty
	return current - qty, true, nil
}

// IncrementStock implements inventory.TxRepository.
func (t *Tx) IncrementStock(_ context.Context, warehouseID, productID, qty int64) (int64, error) {
	if err := t.checkRefs(warehouseID, productID); err != nil {
		return 0, err
	}
	key := pair{warehouseID, productID}
	t.state.stocks[key] += qty
	return t.state.stocks[key], nil
}

// InsertMovement implements inventory.TxRepository.
func (t *Tx) InsertMovement(_ context.Context, m inventory.Movement) (inventory.Movement, error) {
	if err := t.checkRefs(m.WarehouseID, m.ProductID); err != nil {
		return inventory.Movement{}, err
	}
	t.state.nextID++
	m.ID = t.state.nextID
	t.state.movements = append(t.state.movements, m)
	return m, nil
}

// Repository adapts Store to inventory.RepositoryPort.
type Repository struct {
	Store *Store
}

// WithTx implements inventory.RepositoryPort.
func (r Repository) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return r.Store.Atomic(func(tx *Tx) error { return fn(ctx, tx) })
}

// ListMovements implements inventory.RepositoryPort, newest first.
func (r Repository) ListMovements(_ context.Context, filter inventory.MovementFilter) ([]inventory.Movement, int, error) {
	all := r.Store.Movements()
	matched := make([]inventory.Movement, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if filter.ProductID > 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID > 0 && m.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if !filter.From.IsZero() && m.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && m.Timestamp.After(filter.To) {
			continue
		}
		matched = append(matched, m)
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start := page.Offset()
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.PerPage
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], len(matched), nil
}
