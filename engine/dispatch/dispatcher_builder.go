package dispatch

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// DispatcherBuilderOption is a functional option for configuring a dispatcher.
type DispatcherBuilderOption func(d *dispatcher)

// WithLogger sets the logger used by the dispatcher.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - DispatcherBuilderOption: option function to apply
func WithLogger(logger logr.Logger) DispatcherBuilderOption {
	return func(d *dispatcher) {
		d.logger = logger.WithName("dispatch")
	}
}

// WithMetrics sets the collectors updated by the dispatcher.
//
// Parameters:
//   - m: the collectors
//
// Returns:
//   - DispatcherBuilderOption: option function to apply
func WithMetrics(m *metrics.Metrics) DispatcherBuilderOption {
	return func(d *dispatcher) {
		d.metrics = m
	}
}
