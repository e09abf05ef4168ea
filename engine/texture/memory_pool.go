package texture

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
)

type memoryTexture struct {
	label         string
	width, height uint32
	mipLevels     uint32
	flags         LoadFlags
}

// memoryPool is the implementation of the MemoryPool interface.
type memoryPool struct {
	mu *sync.Mutex

	nextID   uint64
	textures map[Handle]memoryTexture
	loads    int
	unloads  int

	strictFiles bool
}

// MemoryPool is a TexturePool without a GPU behind it. Image headers are still read from disk
// so the recorded dimensions are real; missing files become 1x1 placeholders unless strict
// file checking is enabled.
type MemoryPool interface {
	TexturePool

	// Resident returns the number of textures currently allocated.
	Resident() int

	// Loads returns the total number of successful loads.
	Loads() int

	// Unloads returns the total number of successful unloads.
	Unloads() int

	// Dimensions returns the size of an allocated texture.
	//
	// Parameters:
	//   - h: the texture
	//
	// Returns:
	//   - uint32: width in pixels
	//   - uint32: height in pixels
	//   - bool: false if the handle is not allocated
	Dimensions(h Handle) (uint32, uint32, bool)
}

var _ MemoryPool = &memoryPool{}

// NewMemoryPool creates an empty in-memory texture pool.
//
// Parameters:
//   - options: functional options to configure the pool
//
// Returns:
//   - MemoryPool: the new pool
func NewMemoryPool(options ...MemoryPoolBuilderOption) MemoryPool {
	p := &memoryPool{
		mu:       &sync.Mutex{},
		nextID:   1,
		textures: make(map[Handle]memoryTexture),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *memoryPool) LoadFromFile(path string, flags LoadFlags) (Handle, error) {
	width, height, err := common.DecodeTextureConfig(path)
	if err != nil {
		if p.strictFiles || !errors.Is(err, fs.ErrNotExist) {
			return Handle{}, fmt.Errorf("memory pool: %w: %w", common.ErrResourceUnavailable, err)
		}
		width, height = 1, 1
	}
	return p.allocate(path, width, height, flags), nil
}

func (p *memoryPool) Decode(path string) (common.TextureStagingData, error) {
	data, err := common.DecodeTextureFile(path)
	if err != nil {
		if p.strictFiles || !errors.Is(err, fs.ErrNotExist) {
			return common.TextureStagingData{}, fmt.Errorf("memory pool: %w: %w", common.ErrResourceUnavailable, err)
		}
		return placeholderTexture(), nil
	}
	return data, nil
}

func (p *memoryPool) LoadFromStaging(label string, data common.TextureStagingData, flags LoadFlags) (Handle, error) {
	if data.Width == 0 || data.Height == 0 {
		return Handle{}, fmt.Errorf("memory pool: texture %q has zero size: %w", label, common.ErrResourceUnavailable)
	}
	if want := int(data.Width) * int(data.Height) * 4; len(data.Pixels) != want {
		return Handle{}, fmt.Errorf("memory pool: texture %q has %d bytes, want %d: %w", label, len(data.Pixels), want, common.ErrResourceUnavailable)
	}
	return p.allocate(label, data.Width, data.Height, flags), nil
}

func (p *memoryPool) Unload(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.textures[h]; !ok {
		return fmt.Errorf("memory pool: unload %s: %w", h, common.ErrNotFound)
	}
	delete(p.textures, h)
	p.unloads++
	return nil
}

func (p *memoryPool) Resident() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.textures)
}

func (p *memoryPool) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

func (p *memoryPool) Unloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unloads
}

func (p *memoryPool) Dimensions(h Handle) (uint32, uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tex, ok := p.textures[h]
	if !ok {
		return 0, 0, false
	}
	return tex.width, tex.height, true
}

func (p *memoryPool) allocate(label string, width, height uint32, flags LoadFlags) Handle {
	mips := uint32(1)
	if flags.Has(FlagGenerateMips) {
		mips = common.MipLevelCount(width, height)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	h := HandleOf(p.nextID)
	p.nextID++
	p.textures[h] = memoryTexture{label: label, width: width, height: height, mipLevels: mips, flags: flags}
	p.loads++
	return h
}

// placeholderTexture is the 1x1 opaque white texture standing in for a missing file.
func placeholderTexture() common.TextureStagingData {
	return common.TextureStagingData{Pixels: []byte{255, 255, 255, 255}, Width: 1, Height: 1}
}
