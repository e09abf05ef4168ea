// Package renderer is the boundary between the bridge and the GPU. The bridge only needs a
// synchronization point before structural mutations, a resizable frame target and a texture
// pool; the draw loop itself lives outside this module.
package renderer

import (
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr"
)

// Device is the GPU synchronization point taken before any mutation that in-flight GPU work
// could observe: destroying a material, releasing a texture, rebinding a mesh or creating a
// light.
type Device interface {
	// WaitForAllPreviousWork blocks until all previously submitted GPU work has completed.
	//
	// Returns:
	//   - error: error wrapping common.ErrResourceUnavailable if the device is not ready
	WaitForAllPreviousWork() error

	// Ready reports whether the device is initialized and can accept work.
	Ready() bool
}

// FrameGraph is the output target of the renderer.
type FrameGraph interface {
	// Dimensions returns the current frame size in pixels.
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	Dimensions() (int, int)

	// Resize recreates the frame target at a new size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: error if the size is not positive or the backend fails
	Resize(width, height int) error
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend

	width, height int
	closed        bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	initialWidth         int
	initialHeight        int

	logger  logr.Logger
	metrics *metrics.Metrics
}

// Renderer defines the interface for the rendering system as seen by the bridge.
//
// The Renderer owns a backend for a specific GPU API and exposes its device synchronization,
// its frame target and its texture pool. All methods are safe for concurrent use.
type Renderer interface {
	Device
	FrameGraph

	// BackendType returns the backend the renderer was created with.
	BackendType() RendererBackendType

	// TexturePool returns the pool that owns GPU texture memory.
	TexturePool() texture.TexturePool

	// Close releases the backend. The renderer must not be used afterwards.
	Close()
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
//   - error: error wrapping common.ErrResourceUnavailable if no GPU device can be acquired
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		backendType:   backendType,
		initialWidth:  1280,
		initialHeight: 720,
		logger:        logr.Discard(),
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.Discard()
	}

	switch backendType {
	case BackendTypeNull:
		r.backend = newNullRendererBackend()
	case BackendTypeWGPU:
		b, err := newWGPURendererBackend(r.forceFallbackAdapter)
		if err != nil {
			return nil, fmt.Errorf("renderer: %w: %w", common.ErrResourceUnavailable, err)
		}
		r.backend = b
	default:
		return nil, fmt.Errorf("renderer: backend %s: %w", backendType, common.ErrUnsupportedVariant)
	}

	if err := r.backend.ConfigureTarget(r.initialWidth, r.initialHeight); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("renderer: configure %dx%d target: %w", r.initialWidth, r.initialHeight, err)
	}
	r.width, r.height = r.initialWidth, r.initialHeight
	r.logger.Info("renderer ready", "backend", backendType, "width", r.width, "height", r.height)
	return r, nil
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed && r.backend.Ready()
}

func (r *renderer) WaitForAllPreviousWork() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || !r.backend.Ready() {
		return fmt.Errorf("renderer: wait for GPU work: %w", common.ErrResourceUnavailable)
	}
	if err := r.backend.WaitIdle(); err != nil {
		return fmt.Errorf("renderer: wait for GPU work: %w: %w", common.ErrResourceUnavailable, err)
	}
	r.metrics.GPUWaits.Inc()
	return nil
}

func (r *renderer) Dimensions() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width <= 0 || height <= 0 {
		return fmt.Errorf("renderer: invalid frame size %dx%d", width, height)
	}
	if r.closed {
		return fmt.Errorf("renderer: resize: %w", common.ErrResourceUnavailable)
	}
	if err := r.backend.ConfigureTarget(width, height); err != nil {
		return fmt.Errorf("renderer: resize to %dx%d: %w", width, height, err)
	}
	r.width, r.height = width, height
	r.metrics.FrameResizes.Inc()
	r.logger.V(1).Info("frame graph resized", "width", width, "height", height)
	return nil
}

func (r *renderer) TexturePool() texture.TexturePool {
	return r.backend
}

func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.backend.Release()
	r.logger.Info("renderer closed")
}
