package products

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/depot/internal/shared"
)

// maxPrice is the first value that no longer fits NUMERIC(12,2).
var maxPrice = decimal.New(1, 10)

func (s *Service) validate(p Product) (Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return p, shared.NewValidationError("name", "is required")
	}
	if len([]rune(p.Name)) > 255 {
		return p, shared.NewValidationError("name", "must be at most 255 characters")
	}
	switch {
	case p.Price.IsNegative():
		return p, shared.NewValidationError("price", "must not be negative")
	case !p.Price.Equal(p.Price.Round(2)):
		return p, shared.NewValidationError("price", "must have at most 2 decimal places")
	case p.Price.GreaterThanOrEqual(maxPrice):
		return p, shared.NewValidationError("price", "is too large")
	}
	return p, nil
}
