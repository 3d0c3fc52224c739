package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/odyssey-erp/depot/internal/shared"
)

// EngineMetrics counts stock and order state changes.
type EngineMetrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	movements   *prometheus.CounterVec
}

// NewEngineMetrics registers the collectors against registerer.
func NewEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_order_transitions_total",
		Help: "Order lifecycle operations by action and outcome.",
	}, []string{"action", "outcome"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_stock_rejections_total",
		Help: "Operations rejected because free stock did not cover the request.",
	}, []string{"operation"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "depot_stock_movements_total",
		Help: "Recorded stock movements by type.",
	}, []string{"type"})
	registerer.MustRegister(transitions, rejections, movements)
	return &EngineMetrics{transitions: transitions, rejections: rejections, movements: movements}
}

// ObserveTransition records the outcome of an order action.
func (m *EngineMetrics) ObserveTransition(action string, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, Outcome(err)).Inc()
	if errors.Is(err, shared.ErrInsufficientStock) {
		m.rejections.WithLabelValues(action).Inc()
	}
}

// ObserveMovement counts a committed movement.
func (m *EngineMetrics) ObserveMovement(movementType string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(movementType).Inc()
}

// ObserveRejection counts an insufficient stock rejection outside the order engine.
func (m *EngineMetrics) ObserveRejection(operation string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(operation).Inc()
}

// Outcome buckets an error into a low cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, shared.ErrValidation):
		return "invalid"
	case errors.Is(err, shared.ErrNotFound):
		return "not_found"
	case errors.Is(err, shared.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, shared.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, shared.ErrTxConflict):
		return "conflict"
	default:
		return "error"
	}
}
