package registry

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// LightRegistryBuilderOption is a functional option for configuring a light registry.
type LightRegistryBuilderOption func(r *lightRegistry)

// WithLightLogger sets the logger used by the light registry.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - LightRegistryBuilderOption: option function to apply
func WithLightLogger(logger logr.Logger) LightRegistryBuilderOption {
	return func(r *lightRegistry) {
		r.logger = logger.WithName("light-registry")
	}
}

// WithLightMetrics sets the collectors updated by the light registry.
//
// Parameters:
//   - m: the collectors
//
// Returns:
//   - LightRegistryBuilderOption: option function to apply
func WithLightMetrics(m *metrics.Metrics) LightRegistryBuilderOption {
	return func(r *lightRegistry) {
		r.metrics = m
	}
}

// WithPointLightRadius sets the attenuation radius given to point lights. Non-positive values are ignored.
//
// Parameters:
//   - radius: the radius in scene units
//
// Returns:
//   - LightRegistryBuilderOption: option function to apply
func WithPointLightRadius(radius float32) LightRegistryBuilderOption {
	return func(r *lightRegistry) {
		if radius > 0 {
			r.pointRadius = radius
		}
	}
}
