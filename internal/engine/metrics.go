package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"techfixer/internal/repo"
)

var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "techfixer",
	Subsystem: "engine",
	Name:      "operations_total",
	Help:      "Engine operations by name and outcome.",
}, []string{"operation", "outcome"})

// observe counts one finished operation.
func observe(operation string, err error) {
	operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repo.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_field"
	case errors.Is(err, ErrTerminalState):
		return "terminal_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	default:
		return "error"
	}
}
