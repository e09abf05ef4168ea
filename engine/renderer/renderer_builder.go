package renderer

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/go-logr/logr"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithInitialSize sets the size of the frame target created by NewRenderer.
//
// Parameters:
//   - width: the width in pixels
//   - height: the height in pixels
//
// Returns:
//   - RendererBuilderOption: a function that applies the size option to a renderer
func WithInitialSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		if width > 0 && height > 0 {
			r.initialWidth, r.initialHeight = width, height
		}
	}
}

// WithLogger sets the logger used by the renderer.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(logger logr.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.logger = logger.WithName("renderer")
	}
}

// WithMetrics sets the collectors updated by the renderer.
//
// Parameters:
//   - m: the collectors
//
// Returns:
//   - RendererBuilderOption: a function that applies the metrics option to a renderer
func WithMetrics(m *metrics.Metrics) RendererBuilderOption {
	return func(r *renderer) {
		r.metrics = m
	}
}
