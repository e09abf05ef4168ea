// Package engine wires the bridge components together and drives them once per frame.
package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/config"
	"github.com/Carmen-Shannon/oxy-bridge/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/profiler"
	"github.com/Carmen-Shannon/oxy-bridge/engine/registry"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/Carmen-Shannon/oxy-bridge/engine/shading"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

// bridge implements the Bridge interface.
type bridge struct {
	mu *sync.Mutex

	host     host.Host
	viewport host.Viewport

	cfg        config.Config
	logger     logr.Logger
	registerer prometheus.Registerer
	metrics    *metrics.Metrics

	renderer   renderer.Renderer
	ownsRender bool

	textures  texture.Cache
	materials material.Pool
	graph     scenegraph.SceneGraph
	subs      dispatch.Subscriptions
	lights    registry.LightRegistry
	meshes    registry.MeshRegistry
	shading   shading.Manager
	dispatch  dispatch.Dispatcher

	profiler         *profiler.Profiler
	profilingEnabled bool

	closed bool
}

// Bridge mirrors a host scene into the renderer's scene graph.
// It owns every bridge component and tears them down in dependency order.
type Bridge interface {
	// Start subscribes the existing host scene and begins listening for scene events.
	//
	// Returns:
	//   - error: error if the dispatcher cannot register with the host
	Start() error

	// Setup runs the per-frame work: resizes the frame graph when the panel size changed and
	// rebuilds meshes whose geometry changed since the last frame.
	//
	// Parameters:
	//   - panel: the host panel rendered into, empty for the configured panel
	//
	// Returns:
	//   - error: error if the panel is unknown or the resize fails
	Setup(panel string) error

	// Close stops dispatch and releases every component.
	//
	// Returns:
	//   - error: the joined teardown failures
	Close() error

	Config() config.Config
	Metrics() *metrics.Metrics
	Renderer() renderer.Renderer
	Textures() texture.Cache
	Materials() material.Pool
	SceneGraph() scenegraph.SceneGraph
	Lights() registry.LightRegistry
	Meshes() registry.MeshRegistry
	Shading() shading.Manager
	Dispatcher() dispatch.Dispatcher
}

var _ Bridge = &bridge{}

// NewBridge creates every bridge component for a host.
// The host doubles as the viewport when it implements host.Viewport and no viewport option is given.
//
// Parameters:
//   - h: the host to mirror
//   - options: functional options for bridge configuration
//
// Returns:
//   - Bridge: the wired bridge, not yet started
//   - error: error if the renderer or the texture cache cannot be created
func NewBridge(h host.Host, options ...BridgeBuilderOption) (Bridge, error) {
	if h == nil {
		panic("engine: NewBridge requires a host")
	}
	b := &bridge{
		mu:     &sync.Mutex{},
		host:   h,
		cfg:    config.Default(),
		logger: logr.Discard(),
	}
	for _, opt := range options {
		opt(b)
	}
	if b.viewport == nil {
		if v, ok := h.(host.Viewport); ok {
			b.viewport = v
		}
	}
	b.metrics = metrics.New(b.registerer)
	if b.profilingEnabled {
		b.profiler = profiler.NewProfiler(b.logger, 0)
	}

	if b.renderer == nil {
		backend, err := b.cfg.Backend()
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		r, err := renderer.NewRenderer(backend,
			renderer.WithLogger(b.logger),
			renderer.WithMetrics(b.metrics),
			renderer.WithInitialSize(b.cfg.Renderer.Width, b.cfg.Renderer.Height),
			renderer.WithForceSoftwareRenderer(b.cfg.Renderer.ForceFallbackAdapter),
		)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		b.renderer = r
		b.ownsRender = true
	}

	cacheOpts := []texture.CacheBuilderOption{
		texture.WithCacheLogger(b.logger),
		texture.WithCacheMetrics(b.metrics),
		texture.WithLoadFlags(b.cfg.LoadFlags()),
		texture.WithDecodeWorkers(b.cfg.Texture.Workers),
	}
	if b.cfg.DefaultTexture != "" {
		cacheOpts = append(cacheOpts, texture.WithDefaultTexture(b.cfg.DefaultTexture))
	}
	textures, err := texture.NewCache(b.renderer.TexturePool(), cacheOpts...)
	if err != nil {
		if b.ownsRender {
			b.renderer.Close()
		}
		return nil, fmt.Errorf("engine: %w", err)
	}
	b.textures = textures

	dm := b.cfg.DefaultMaterial
	b.materials = material.NewPool(
		material.WithPoolLogger(b.logger),
		material.WithDefaultMaterial(dm.Color, dm.Metallic, dm.Roughness),
	)
	b.graph = scenegraph.NewSceneGraph(scenegraph.WithLogger(b.logger))

	b.subs = dispatch.NewSubscriptions(h,
		dispatch.WithSubscriptionsLogger(b.logger),
		dispatch.WithSubscriptionsMetrics(b.metrics),
	)
	b.lights = registry.NewLightRegistry(h, b.subs, b.renderer, b.graph,
		registry.WithLightLogger(b.logger),
		registry.WithLightMetrics(b.metrics),
		registry.WithPointLightRadius(b.cfg.PointLightRadius),
	)
	b.meshes = registry.NewMeshRegistry(h, b.subs, b.renderer, b.graph, b.materials.Default(),
		registry.WithMeshLogger(b.logger),
		registry.WithMeshMetrics(b.metrics),
	)
	b.shading = shading.NewManager(h, b.subs, b.renderer, b.materials, b.textures, b.meshes,
		shading.WithLogger(b.logger),
		shading.WithMetrics(b.metrics),
	)
	b.dispatch = dispatch.NewDispatcher(h, b.subs, b.lights, b.meshes, b.shading,
		dispatch.WithLogger(b.logger),
		dispatch.WithMetrics(b.metrics),
	)
	return b, nil
}

func (b *bridge) Start() error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("engine: start: bridge is closed")
	}
	return b.dispatch.Start()
}

func (b *bridge) Setup(panel string) error {
	if b.viewport == nil {
		return fmt.Errorf("engine: setup: no viewport configured")
	}
	panel = common.Coalesce(panel, b.cfg.Panel)

	width, height, err := b.viewport.PanelSize(panel)
	if err != nil {
		return fmt.Errorf("engine: setup: %w", err)
	}
	if w, h := b.renderer.Dimensions(); w != width || h != height {
		if err := b.renderer.Resize(width, height); err != nil {
			return fmt.Errorf("engine: setup: %w", err)
		}
		b.logger.V(1).Info("panel resized", "panel", panel, "width", width, "height", height)
	}

	b.meshes.Update()

	if b.profiler != nil {
		b.profiler.Tick()
	}
	return nil
}

func (b *bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.dispatch.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := b.lights.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.meshes.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.shading.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := b.textures.Close(); err != nil {
		errs = append(errs, err)
	}
	if b.ownsRender {
		b.renderer.Close()
	}
	b.materials.Close()

	err := errors.Join(errs...)
	if err != nil {
		b.logger.Error(err, "bridge closed with errors")
	} else {
		b.logger.Info("bridge closed")
	}
	return err
}

func (b *bridge) Config() config.Config {
	return b.cfg
}

func (b *bridge) Metrics() *metrics.Metrics {
	return b.metrics
}

func (b *bridge) Renderer() renderer.Renderer {
	return b.renderer
}

func (b *bridge) Textures() texture.Cache {
	return b.textures
}

func (b *bridge) Materials() material.Pool {
	return b.materials
}

func (b *bridge) SceneGraph() scenegraph.SceneGraph {
	return b.graph
}

func (b *bridge) Lights() registry.LightRegistry {
	return b.lights
}

func (b *bridge) Meshes() registry.MeshRegistry {
	return b.meshes
}

func (b *bridge) Shading() shading.Manager {
	return b.shading
}

func (b *bridge) Dispatcher() dispatch.Dispatcher {
	return b.dispatch
}
