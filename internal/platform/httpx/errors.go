// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/depot/internal/shared"
)

// ProblemFielder is implemented by errors that expose extra problem members,
// such as the product and quantities behind an insufficient stock rejection.
type ProblemFielder interface {
	ProblemFields() map[string]any
}

// RespondError maps domain errors to HTTP responses using RFC7807. Errors
// outside the shared taxonomy are logged and reported without detail.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validation *shared.ValidationError
	switch {
	case errors.As(err, &validation):
		problem := NewProblem(http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		problem.Errors = validation.Fields
		Write(w, problem)
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrReferentialIntegrity):
		Problem(w, http.StatusUnprocessableEntity, "Unknown Reference", err.Error())
	case errors.Is(err, shared.ErrInsufficientStock):
		problem := NewProblem(http.StatusConflict, "Insufficient Stock", err.Error())
		var fielder ProblemFielder
		if errors.As(err, &fielder) {
			problem.Extensions = fielder.ProblemFields()
		}
		Write(w, problem)
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	case errors.Is(err, shared.ErrTxConflict):
		w.Header().Set("Retry-After", "1")
		Problem(w, http.StatusConflict, "Conflict", "concurrent update detected, retry the request")
	default:
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
