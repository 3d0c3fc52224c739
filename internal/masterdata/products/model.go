package products

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/shared"
)

// Product represents a sellable item. It is immutable after creation.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// WarehouseStock is the free stock of a product at one warehouse.
type WarehouseStock struct {
	WarehouseID   int64  `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name"`
	Stock         int64  `json:"stock"`
}

// ProductWithStock is a product with its stock in every warehouse that holds an entry.
type ProductWithStock struct {
	Product
	Stocks []WarehouseStock `json:"stocks"`
}

// ErrNotFound is returned for unknown product ids.
var ErrNotFound = fmt.Errorf("product %w", shared.ErrNotFound)

var errNoRepository = errors.New("products: repository not initialised")
