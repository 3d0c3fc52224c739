package warehouses

import (
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/depot/internal/shared"
)

// Warehouse represents a stock location. It is immutable after creation.
type Warehouse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNotFound is returned for unknown warehouse ids.
var ErrNotFound = fmt.Errorf("warehouse %w", shared.ErrNotFound)

var errNoRepository = errors.New("warehouses: repository not initialised")
