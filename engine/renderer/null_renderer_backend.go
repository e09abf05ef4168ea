package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
)

// nullRendererBackendImpl backs the renderer without a GPU.
type nullRendererBackendImpl struct {
	texture.MemoryPool

	mu       *sync.Mutex
	released bool
}

var _ RendererBackend = &nullRendererBackendImpl{}

func newNullRendererBackend() RendererBackend {
	return &nullRendererBackendImpl{
		MemoryPool: texture.NewMemoryPool(),
		mu:         &sync.Mutex{},
	}
}

func (b *nullRendererBackendImpl) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.released
}

func (b *nullRendererBackendImpl) WaitIdle() error {
	return nil
}

func (b *nullRendererBackendImpl) ConfigureTarget(width, height int) error {
	return nil
}

func (b *nullRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released = true
}
