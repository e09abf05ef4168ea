// Package material holds the material pool: the exclusive owner of every render material the
// bridge allocates, including the reserved DEFAULT material.
package material

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/go-logr/logr"
)

// ErrDefaultMaterial is returned when the DEFAULT material is passed to Destroy.
var ErrDefaultMaterial = errors.New("default material cannot be destroyed")

// Handle identifies a material allocated by a Pool. The zero Handle is invalid.
type Handle struct {
	id uint64
}

// ID returns the pool-assigned identifier.
func (h Handle) ID() uint64 {
	return h.id
}

// Valid reports whether the handle was issued by a pool.
func (h Handle) Valid() bool {
	return h.id != 0
}

func (h Handle) String() string {
	return fmt.Sprintf("material#%d", h.id)
}

// pool is the implementation of the Pool interface.
type pool struct {
	mu *sync.Mutex

	nextID      uint64
	materials   map[Handle]Material
	defaultH    Handle
	defaultOpts []MaterialBuilderOption

	logger logr.Logger
}

// Pool allocates materials and hands out Handles to them. A DEFAULT material is created with
// the pool and lives until Close.
type Pool interface {
	// Create allocates a new material.
	//
	// Parameters:
	//   - options: functional options for the new material
	//
	// Returns:
	//   - Handle: the new material's handle
	Create(options ...MaterialBuilderOption) Handle

	// Get resolves a handle.
	//
	// Parameters:
	//   - h: the material handle
	//
	// Returns:
	//   - Material: the material
	//   - bool: false if h is not allocated
	Get(h Handle) (Material, bool)

	// Destroy frees a material. Texture bindings must have been released by the caller.
	//
	// Parameters:
	//   - h: the material handle
	//
	// Returns:
	//   - error: ErrDefaultMaterial for the DEFAULT handle, common.ErrNotFound for unknown handles
	Destroy(h Handle) error

	// Default returns the reserved DEFAULT material handle.
	Default() Handle

	// Len returns the number of allocated materials, DEFAULT included.
	Len() int

	// Close frees every material, DEFAULT included. The pool must not be used afterwards.
	Close()
}

var _ Pool = &pool{}

// NewPool creates a material pool and its DEFAULT material (white, metallic 1, roughness 1
// unless overridden with WithDefaultMaterial).
//
// Parameters:
//   - options: functional options to configure the pool
//
// Returns:
//   - Pool: the new pool
func NewPool(options ...PoolBuilderOption) Pool {
	p := &pool{
		mu:        &sync.Mutex{},
		nextID:    1,
		materials: make(map[Handle]Material),
		defaultOpts: []MaterialBuilderOption{
			WithBaseColor([3]float32{1, 1, 1}),
			WithMetallic(1),
			WithRoughness(1),
		},
		logger: logr.Discard(),
	}
	for _, opt := range options {
		opt(p)
	}

	p.defaultH = p.Create(append([]MaterialBuilderOption{WithName("DEFAULT")}, p.defaultOpts...)...)
	return p
}

func (p *pool) Create(options ...MaterialBuilderOption) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := Handle{id: p.nextID}
	p.nextID++
	p.materials[h] = NewMaterial(options...)
	p.logger.V(1).Info("material created", "material", h)
	return h
}

func (p *pool) Get(h Handle) (Material, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.materials[h]
	return m, ok
}

func (p *pool) Destroy(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h == p.defaultH {
		return fmt.Errorf("material pool: destroy %s: %w", h, ErrDefaultMaterial)
	}
	m, ok := p.materials[h]
	if !ok {
		return fmt.Errorf("material pool: destroy %s: %w", h, common.ErrNotFound)
	}
	for _, slot := range common.TextureSlots {
		if m.HasTexture(slot) {
			p.logger.Info("material destroyed with a bound texture", "material", h, "slot", slot)
		}
	}
	delete(p.materials, h)
	p.logger.V(1).Info("material destroyed", "material", h)
	return nil
}

func (p *pool) Default() Handle {
	return p.defaultH
}

func (p *pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.materials)
}

func (p *pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.materials)
}
