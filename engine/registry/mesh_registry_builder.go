package registry

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// MeshRegistryBuilderOption is a functional option for configuring a mesh registry.
type MeshRegistryBuilderOption func(r *meshRegistry)

// WithMeshLogger sets the logger used by the mesh registry.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - MeshRegistryBuilderOption: option function to apply
func WithMeshLogger(logger logr.Logger) MeshRegistryBuilderOption {
	return func(r *meshRegistry) {
		r.logger = logger.WithName("mesh-registry")
	}
}

// WithMeshMetrics sets the collectors updated by the mesh registry.
//
// Parameters:
//   - m: the collectors
//
// Returns:
//   - MeshRegistryBuilderOption: option function to apply
func WithMeshMetrics(m *metrics.Metrics) MeshRegistryBuilderOption {
	return func(r *meshRegistry) {
		r.metrics = m
	}
}

// WithMeshAddedHook registers a hook invoked after every successful Subscribe.
//
// Parameters:
//   - hook: the hook
//
// Returns:
//   - MeshRegistryBuilderOption: option function to apply
func WithMeshAddedHook(hook MeshAddedHook) MeshRegistryBuilderOption {
	return func(r *meshRegistry) {
		if hook != nil {
			r.hooks = append(r.hooks, hook)
		}
	}
}
