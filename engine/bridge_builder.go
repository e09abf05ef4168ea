package engine

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/config"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

// BridgeBuilderOption is a functional option for configuring a Bridge.
// Use the With* functions to create options that are applied directly to the bridge instance.
type BridgeBuilderOption func(*bridge)

// WithConfig replaces the default configuration.
//
// Parameters:
//   - cfg: the configuration, usually from config.Load
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithConfig(cfg config.Config) BridgeBuilderOption {
	return func(b *bridge) {
		b.cfg = cfg
	}
}

// WithLogger sets the root logger handed to every component.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithLogger(logger logr.Logger) BridgeBuilderOption {
	return func(b *bridge) {
		b.logger = logger.WithName("bridge")
	}
}

// WithRegisterer publishes the bridge collectors on reg.
//
// Parameters:
//   - reg: the Prometheus registerer
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithRegisterer(reg prometheus.Registerer) BridgeBuilderOption {
	return func(b *bridge) {
		b.registerer = reg
	}
}

// WithRenderer sets a renderer created by the caller rather than allowing the bridge to create
// one from the configuration. The caller keeps ownership and closes it.
//
// Parameters:
//   - r: a ready renderer
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) BridgeBuilderOption {
	return func(b *bridge) {
		b.renderer = r
	}
}

// WithViewport sets the panel size source used by Setup, such as a preview window.
//
// Parameters:
//   - v: the viewport
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithViewport(v host.Viewport) BridgeBuilderOption {
	return func(b *bridge) {
		b.viewport = v
	}
}

// WithProfiling enables or disables performance profiling output for Setup.
//
// Parameters:
//   - enabled: if true, logs frame stats once per second
//
// Returns:
//   - BridgeBuilderOption: option function to apply
func WithProfiling(enabled bool) BridgeBuilderOption {
	return func(b *bridge) {
		b.profilingEnabled = enabled
	}
}
