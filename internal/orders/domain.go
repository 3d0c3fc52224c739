// Package orders implements the order lifecycle and its stock reservations.
package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/depot/internal/shared"
)

// Status represents the lifecycle of an order.
type Status string

const (
	StatusActive    Status = "active"    // stock reserved
	StatusCompleted Status = "completed" // handed over, terminal
	StatusCanceled  Status = "canceled"  // stock released, may be reopened
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCanceled:
		return true
	default:
		return false
	}
}

// CanEdit checks if the order items and customer may change.
func (s Status) CanEdit() bool {
	return s == StatusActive
}

// CanComplete checks if the order can be completed.
func (s Status) CanComplete() bool {
	return s == StatusActive
}

// CanCancel checks if the order can be canceled.
func (s Status) CanCancel() bool {
	return s == StatusActive
}

// CanReopen checks if the order can be reactivated.
func (s Status) CanReopen() bool {
	return s == StatusCanceled
}

// Action names an order lifecycle operation.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionReopen   Action = "reopen"
)

// Order is a customer order served from one warehouse.
type Order struct {
	ID          int64      `json:"id"`
	Customer    string     `json:"customer"`
	WarehouseID int64      `json:"warehouse_id"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Items       []Item     `json:"items"`
}

// Item is one order line.
type Item struct {
	ID        int64 `json:"id"`
	OrderID   int64 `json:"order_id"`
	ProductID int64 `json:"product_id"`
	Count     int64 `json:"count"`
}

// ItemInput is a requested order line.
type ItemInput struct {
	ProductID int64
	Count     int64
}

// CreateInput carries a new order.
type CreateInput struct {
	Customer       string
	WarehouseID    int64
	Items          []ItemInput
	IdempotencyKey string
}

// UpdateInput replaces the customer and items of an active order. A non-zero
// WarehouseID must match the order's warehouse.
type UpdateInput struct {
	Customer    string
	WarehouseID int64
	Items       []ItemInput
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status      Status
	Customer    string
	WarehouseID int64
	Page        int
	PerPage     int
}

const maxCustomerLength = 255

// Domain errors for orders.
var (
	// ErrOrderNotFound indicates the requested order was not found.
	ErrOrderNotFound = fmt.Errorf("orders: order %w", shared.ErrNotFound)
	// ErrWarehouseFixed rejects moving an order to another warehouse.
	ErrWarehouseFixed = fmt.Errorf("orders: warehouse cannot change after creation: %w", shared.ErrValidation)
	errNoRepository   = errors.New("orders: repository not initialised")
)

// TransitionError reports an action the order's current status does not allow.
type TransitionError struct {
	OrderID int64
	From    Status
	Action  Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("orders: cannot %s order %d in status %s", e.Action, e.OrderID, e.From)
}

// Unwrap lets errors.Is match shared.ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return shared.ErrInvalidTransition
}

func validateCustomer(customer string) (string, error) {
	customer = strings.TrimSpace(customer)
	if customer == "" {
		return "", shared.NewValidationError("customer", "is required")
	}
	if len([]rune(customer)) > maxCustomerLength {
		return "", shared.NewValidationError("customer", fmt.Sprintf("must be at most %d characters", maxCustomerLength))
	}
	return customer, nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return shared.NewValidationError("items", "must contain at least one item")
	}
	for i, item := range items {
		if item.ProductID <= 0 {
			return shared.NewValidationError(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if item.Count <= 0 {
			return shared.NewValidationError(fmt.Sprintf("items[%d].count", i), "must be at least 1")
		}
	}
	return nil
}
