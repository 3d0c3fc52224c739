// Package masterdata groups the warehouse and product catalogues.
package masterdata

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/depot/internal/masterdata/products"
	"github.com/odyssey-erp/depot/internal/masterdata/warehouses"
)

// Resolver confirms that ids referenced by a request exist before any
// transaction is opened.
type Resolver struct {
	warehouses warehouses.Repository
	products   products.Repository
}

// NewResolver constructs a Resolver.
func NewResolver(w warehouses.Repository, p products.Repository) *Resolver {
	return &Resolver{warehouses: w, products: p}
}

// ResolveReferences reports the first unknown reference as a not found error.
// A zero warehouseID skips the warehouse check.
func (r *Resolver) ResolveReferences(ctx context.Context, warehouseID int64, productIDs []int64) error {
	if warehouseID != 0 {
		if _, err := r.warehouses.Get(ctx, warehouseID); err != nil {
			return fmt.Errorf("resolve warehouse %d: %w", warehouseID, err)
		}
	}
	if len(productIDs) == 0 {
		return nil
	}
	missing, err := r.products.Missing(ctx, productIDs)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("resolve product %d: %w", missing[0], products.ErrNotFound)
	}
	return nil
}
