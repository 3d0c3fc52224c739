package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/depot/internal/shared"
)

// MovementType names the cause of a stock change.
type MovementType string

const (
	// MovementArrival is goods received into a warehouse.
	MovementArrival MovementType = "arrival"
	// MovementSale is goods sold directly, outside of an order.
	MovementSale MovementType = "sale"
	// MovementReturn is goods coming back, either from a customer or a released order.
	MovementReturn MovementType = "return"
	// MovementOrderDebit is stock reserved by an active order.
	MovementOrderDebit MovementType = "order_debit"
)

// IsValid reports whether t is a known movement type.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementArrival, MovementSale, MovementReturn, MovementOrderDebit:
		return true
	default:
		return false
	}
}

// Increases reports whether movements of this type add stock.
func (t MovementType) Increases() bool {
	return t == MovementArrival || t == MovementReturn
}

// ParseIngestType resolves the movement types accepted from outside the
// order engine. Order debits are only written by the engine itself.
func ParseIngestType(raw string) (MovementType, error) {
	switch t := MovementType(strings.ToLower(strings.TrimSpace(raw))); t {
	case MovementArrival, MovementSale, MovementReturn:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMovementType, raw)
	}
}

// StockEntry is the free-to-sell quantity of a product at a warehouse.
type StockEntry struct {
	ProductID   int64 `json:"product_id"`
	WarehouseID int64 `json:"warehouse_id"`
	Quantity    int64 `json:"stock"`
}

// Movement is an immutable record of a stock change. Quantity is signed:
// negative values decrement stock.
type Movement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	WarehouseID int64        `json:"warehouse_id"`
	Quantity    int64        `json:"quantity"`
	Type        MovementType `json:"type"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Line is a requested quantity of one product.
type Line struct {
	ProductID int64
	Count     int64
}

// Entry describes a ledger mutation together with the movement explaining it.
type Entry struct {
	ProductID   int64
	WarehouseID int64
	Quantity    int64
	Type        MovementType
	Description string
}

// MovementInput is the ingestion request for arrivals, sales and returns.
type MovementInput struct {
	ProductID      int64
	WarehouseID    int64
	Quantity       int64
	Type           string
	Description    string
	IdempotencyKey string
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID   int64
	WarehouseID int64
	Type        MovementType
	From        time.Time
	To          time.Time
	Page        int
	PerPage     int
}

// Domain errors for stock handling.
var (
	ErrUnknownMovementType = fmt.Errorf("inventory: unknown movement type: %w", shared.ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("inventory: quantity must be positive: %w", shared.ErrValidation)
	ErrMissingReference    = fmt.Errorf("inventory: product and warehouse required: %w", shared.ErrValidation)
)

// InsufficientStockError reports the first product whose free stock does not
// cover the request.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Required    int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for product %d in warehouse %d: required %d, available %d",
		e.ProductID, e.WarehouseID, e.Required, e.Available)
}

// Unwrap lets errors.Is match shared.ErrInsufficientStock.
func (e *InsufficientStockError) Unwrap() error {
	return shared.ErrInsufficientStock
}

// ProblemFields exposes the shortfall to HTTP clients.
func (e *InsufficientStockError) ProblemFields() map[string]any {
	return map[string]any{
		"product_id":   e.ProductID,
		"warehouse_id": e.WarehouseID,
		"required":     e.Required,
		"available":    e.Available,
	}
}
