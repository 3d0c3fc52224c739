package shared

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed or missing input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition occurs when an order is not in the state an action requires.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInsufficientStock occurs when free stock does not cover a requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrReferentialIntegrity indicates a write referenced an unknown product or warehouse.
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	// ErrTxConflict signals a rolled back transaction (deadlock or serialization failure); callers may retry.
	ErrTxConflict = errors.New("transaction conflict")
)

// ValidationError carries field level messages for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+" "+e.Fields[field])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
