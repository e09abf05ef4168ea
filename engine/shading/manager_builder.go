package shading

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// ManagerBuilderOption is a functional option for configuring a shading manager.
type ManagerBuilderOption func(m *manager)

// WithLogger sets the logger used by the manager.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithLogger(logger logr.Logger) ManagerBuilderOption {
	return func(m *manager) {
		m.logger = logger.WithName("shading")
	}
}

// WithMetrics sets the collectors updated by the manager.
//
// Parameters:
//   - mt: the collectors
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithMetrics(mt *metrics.Metrics) ManagerBuilderOption {
	return func(m *manager) {
		m.metrics = mt
	}
}
