package warehouses

import (
	"strings"

	"github.com/odyssey-erp/depot/internal/shared"
)

const maxNameLength = 255

func (s *Service) validate(w Warehouse) (Warehouse, error) {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return w, shared.NewValidationError("name", "is required")
	}
	if len([]rune(w.Name)) > maxNameLength {
		return w, shared.NewValidationError("name", "must be at most 255 characters")
	}
	return w, nil
}
