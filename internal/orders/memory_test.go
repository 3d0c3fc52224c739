package orders_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/odyssey-erp/depot/internal/inventory"
	"github.com/odyssey-erp/depot/internal/inventory/inventorytest"
	"github.com/odyssey-erp/depot/internal/orders"
	"github.com/odyssey-erp/depot/internal/shared"
)

// memoryRepo keeps orders next to an inventorytest.Store. Both are rolled
// back together when a transaction fails.
type memoryRepo struct {
	mu        sync.Mutex
	store     *inventorytest.Store
	orders    map[int64]orders.Order
	nextOrder int64
	nextItem  int64
}

func newMemoryRepo(store *inventorytest.Store) *memoryRepo {
	return &memoryRepo{store: store, orders: make(map[int64]orders.Order)}
}

type memorySnapshot struct {
	orders    map[int64]orders.Order
	nextOrder int64
	nextItem  int64
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.Item(nil), o.Items...)
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		o.CompletedAt = &at
	}
	return o
}

func (r *memoryRepo) snapshot() memorySnapshot {
	out := memorySnapshot{orders: make(map[int64]orders.Order, len(r.orders)), nextOrder: r.nextOrder, nextItem: r.nextItem}
	for id, o := range r.orders {
		out.orders[id] = cloneOrder(o)
	}
	return out
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, orders.TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := r.snapshot()
	err := r.store.Atomic(func(stx *inventorytest.Tx) error {
		return fn(ctx, &memoryTx{repo: r, stock: stx})
	})
	if err != nil {
		r.orders, r.nextOrder, r.nextItem = saved.orders, saved.nextOrder, saved.nextItem
	}
	return err
}

func (r *memoryRepo) Get(_ context.Context, id int64) (orders.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *memoryRepo) List(_ context.Context, filter orders.ListFilter) ([]orders.Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := []orders.Order{}
	for _, o := range r.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Customer != "" && !strings.Contains(strings.ToLower(o.Customer), strings.ToLower(filter.Customer)) {
			continue
		}
		if filter.WarehouseID > 0 && o.WarehouseID != filter.WarehouseID {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	page := shared.NewPagination(filter.Page, filter.PerPage, len(matched))
	start := min(page.Offset(), len(matched))
	end := min(start+page.PerPage, len(matched))
	return matched[start:end], len(matched), nil
}

type memoryTx struct {
	repo  *memoryRepo
	stock *inventorytest.Tx
}

func (t *memoryTx) Stock() inventory.TxRepository {
	return t.stock
}

func (t *memoryTx) GetForUpdate(_ context.Context, id int64) (orders.Order, error) {
	o, ok := t.repo.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (t *memoryTx) Insert(_ context.Context, o orders.Order) (orders.Order, error) {
	t.repo.nextOrder++
	o.ID = t.repo.nextOrder
	o.Items = nil
	t.repo.orders[o.ID] = o
	return o, nil
}

func (t *memoryTx) InsertItems(_ context.Context, orderID int64, items []orders.ItemInput) ([]orders.Item, error) {
	o, ok := t.repo.orders[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	out := make([]orders.Item, 0, len(items))
	for _, in := range items {
		t.repo.nextItem++
		out = append(out, orders.Item{ID: t.repo.nextItem, OrderID: orderID, ProductID: in.ProductID, Count: in.Count})
	}
	o.Items = append(o.Items, out...)
	t.repo.orders[orderID] = o
	return out, nil
}

func (t *memoryTx) DeleteItems(_ context.Context, orderID int64) error {
	o := t.repo.orders[orderID]
	o.Items = nil
	t.repo.orders[orderID] = o
	return nil
}

func (t *memoryTx) UpdateCustomer(_ context.Context, id int64, customer string) error {
	o, ok := t.repo.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Customer = customer
	t.repo.orders[id] = o
	return nil
}

func (t *memoryTx) UpdateStatus(_ context.Context, id int64, status orders.Status, completedAt *time.Time) error {
	o, ok := t.repo.orders[id]
	if !ok {
		return orders.ErrOrderNotFound
	}
	o.Status = status
	o.CompletedAt = completedAt
	t.repo.orders[id] = o
	return nil
}
