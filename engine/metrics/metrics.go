// Package metrics holds the Prometheus collectors shared by the bridge components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oxy_bridge"

// Metrics groups every collector exported by the bridge. A zero registerer yields
// unregistered collectors, which keeps call sites free of nil checks.
type Metrics struct {
	TextureHits      prometheus.Counter
	TextureMisses    prometheus.Counter
	TextureEvictions prometheus.Counter
	TexturesResident prometheus.Gauge

	TrackedEntities *prometheus.GaugeVec

	ShadingRelations prometheus.Gauge
	MeshBindings     prometheus.Gauge

	SceneEvents    *prometheus.CounterVec
	DispatchErrors *prometheus.CounterVec
	LiveTokens     prometheus.Gauge

	FrameResizes prometheus.Counter
	GPUWaits     prometheus.Counter
}

// New creates the collectors and registers them on reg when it is non-nil.
//
// Parameters:
//   - reg: the registerer to publish on, may be nil
//
// Returns:
//   - *Metrics: the collectors
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TextureHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "texture_cache",
			Name:      "hits_total",
			Help:      "Texture acquisitions served by an already resident entry",
		}),
		TextureMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "texture_cache",
			Name:      "misses_total",
			Help:      "Texture acquisitions that required a load from the texture pool",
		}),
		TextureEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "texture_cache",
			Name:      "evictions_total",
			Help:      "Textures unloaded after their last holder released them",
		}),
		TexturesResident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "texture_cache",
			Name:      "resident",
			Help:      "Number of textures currently resident in the cache",
		}),
		TrackedEntities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "tracked_entities",
			Help:      "Number of host entities tracked per registry kind",
		}, []string{"kind"}),
		ShadingRelations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "shading",
			Name:      "relations",
			Help:      "Number of surface shader relations",
		}),
		MeshBindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "shading",
			Name:      "mesh_bindings",
			Help:      "Number of meshes bound to a shading group",
		}),
		SceneEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "scene_events_total",
			Help:      "Structural scene events routed by the dispatcher",
		}, []string{"event"}),
		DispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "errors_total",
			Help:      "Scene events whose handler returned an error",
		}, []string{"event"}),
		LiveTokens: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "live_tokens",
			Help:      "Change callbacks currently registered on the host",
		}),
		FrameResizes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "renderer",
			Name:      "frame_resizes_total",
			Help:      "Frame graph resizes triggered by viewport changes",
		}),
		GPUWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "renderer",
			Name:      "gpu_waits_total",
			Help:      "Synchronization points taken before structural mutations",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TextureHits,
			m.TextureMisses,
			m.TextureEvictions,
			m.TexturesResident,
			m.TrackedEntities,
			m.ShadingRelations,
			m.MeshBindings,
			m.SceneEvents,
			m.DispatchErrors,
			m.LiveTokens,
			m.FrameResizes,
			m.GPUWaits,
		)
	}
	return m
}

// Discard returns collectors that are not registered anywhere.
func Discard() *Metrics {
	return New(nil)
}
