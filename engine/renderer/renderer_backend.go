package renderer

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeNull selects a backend without a GPU. Textures live in a texture.MemoryPool and
	// synchronization points return immediately.
	BackendTypeNull
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeNull:
		return "null"
	default:
		return fmt.Sprintf("RendererBackendType(%d)", int(t))
	}
}

// ParseBackendType converts a backend name ("wgpu", "null") into a RendererBackendType.
//
// Parameters:
//   - name: the backend name, case-insensitive
//
// Returns:
//   - RendererBackendType: the parsed backend
//   - error: error if the name is not a known backend
func ParseBackendType(name string) (RendererBackendType, error) {
	switch strings.ToLower(name) {
	case "wgpu", "webgpu":
		return BackendTypeWGPU, nil
	case "null", "none", "":
		return BackendTypeNull, nil
	default:
		return 0, fmt.Errorf("unknown renderer backend %q", name)
	}
}

// RendererBackend is the per-API half of the Renderer. The renderer front end adds locking,
// bookkeeping and metrics on top of it.
type RendererBackend interface {
	texture.TexturePool

	// Ready reports whether the device can accept work.
	Ready() bool

	// WaitIdle blocks until every previously submitted GPU command has completed.
	//
	// Returns:
	//   - error: an error if the device is lost
	WaitIdle() error

	// ConfigureTarget (re)creates the frame color target at the given size.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: an error if the target could not be created
	ConfigureTarget(width, height int) error

	// Release frees every GPU object owned by the backend.
	Release()
}
