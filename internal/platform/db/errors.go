package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/depot/internal/shared"
)

// PostgreSQL error codes the repositories care about.
const (
	CodeForeignKeyViolation  = "23503"
	CodeUniqueViolation      = "23505"
	CodeCheckViolation       = "23514"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// MapError translates storage errors into the shared taxonomy. Errors that
// already belong to it, and unknown errors, are returned untouched.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case CodeForeignKeyViolation:
		return fmt.Errorf("%w: %s", shared.ErrReferentialIntegrity, pgErr.ConstraintName)
	case CodeCheckViolation:
		return fmt.Errorf("%w: %s", shared.ErrValidation, pgErr.ConstraintName)
	case CodeSerializationFailure, CodeDeadlockDetected:
		return fmt.Errorf("%w: %s", shared.ErrTxConflict, pgErr.Message)
	default:
		return err
	}
}
