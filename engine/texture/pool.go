// Package texture owns GPU texture lifetimes for the bridge. The Cache deduplicates loads by
// content key and reference-counts holders; the TexturePool is the backend that actually
// allocates and frees texture memory.
package texture

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bridge/common"
)

// Handle identifies a texture allocated by a TexturePool. The zero Handle is invalid.
type Handle struct {
	id uint64
}

// HandleOf wraps a pool-assigned texture identifier.
func HandleOf(id uint64) Handle {
	return Handle{id: id}
}

// ID returns the pool-assigned identifier.
func (h Handle) ID() uint64 {
	return h.id
}

// Valid reports whether the handle refers to an allocated texture.
func (h Handle) Valid() bool {
	return h.id != 0
}

func (h Handle) String() string {
	return fmt.Sprintf("texture#%d", h.id)
}

// LoadFlags tune how a texture is uploaded.
type LoadFlags uint8

const (
	// FlagSRGB stores the texture in an sRGB format so sampling returns linear values.
	FlagSRGB LoadFlags = 1 << iota
	// FlagGenerateMips uploads a full mip chain instead of the base level only.
	FlagGenerateMips
)

// Has reports whether every bit of flag is set in f.
func (f LoadFlags) Has(flag LoadFlags) bool {
	return f&flag == flag
}

// TexturePool allocates and frees GPU textures. It is the exclusive owner of texture memory;
// the Cache is the only component that calls Unload.
type TexturePool interface {
	// LoadFromFile decodes an image file and uploads it.
	//
	// Parameters:
	//   - path: the image file path
	//   - flags: upload flags
	//
	// Returns:
	//   - Handle: the allocated texture
	//   - error: error if the file cannot be decoded or the backend cannot allocate
	LoadFromFile(path string, flags LoadFlags) (Handle, error)

	// Decode reads an image file into staging data without allocating a texture. It applies
	// the same file policy as LoadFromFile and is safe to call from several goroutines.
	//
	// Parameters:
	//   - path: the image file path
	//
	// Returns:
	//   - common.TextureStagingData: the decoded RGBA pixels
	//   - error: error if LoadFromFile would reject the file
	Decode(path string) (common.TextureStagingData, error)

	// LoadFromStaging uploads already decoded RGBA pixels.
	//
	// Parameters:
	//   - label: a debug label for the texture
	//   - data: the decoded pixels
	//   - flags: upload flags
	//
	// Returns:
	//   - Handle: the allocated texture
	//   - error: error if the backend cannot allocate
	LoadFromStaging(label string, data common.TextureStagingData, flags LoadFlags) (Handle, error)

	// Unload frees a texture.
	//
	// Parameters:
	//   - h: the texture to free
	//
	// Returns:
	//   - error: error if the handle is unknown to the pool
	Unload(h Handle) error
}
