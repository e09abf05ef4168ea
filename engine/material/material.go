package material

import (
	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
)

// TextureBinding is a texture bound to a material slot. Key is the texture cache key the
// handle was acquired with; it is what must be released when the slot is cleared.
type TextureBinding struct {
	Key    string
	Handle texture.Handle
}

// material is the implementation of the Material interface.
type material struct {
	name      string
	baseColor [3]float32
	metallic  float32
	roughness float32
	textures  [len(common.TextureSlots)]*TextureBinding
}

// Material defines the interface for a pool-allocated render material: surface constants plus
// one texture binding per common.TextureSlot.
//
// A Material never owns its textures. Bindings are shared references obtained from the texture
// cache and must be released through it by whoever clears them.
type Material interface {
	// Name retrieves the material identifier.
	//
	// Returns:
	//   - string: the name of the material
	Name() string

	// BaseColor retrieves the albedo RGB color of the material.
	//
	// Returns:
	//   - [3]float32: the base color
	BaseColor() [3]float32

	// Metallic retrieves the metallic factor of the material.
	// A value of 0.0 represents a dielectric surface, 1.0 represents a fully metallic surface.
	//
	// Returns:
	//   - float32: the metallic factor
	Metallic() float32

	// Roughness retrieves the roughness factor of the material.
	// A value of 0.0 represents a perfectly smooth surface, 1.0 represents a fully rough surface.
	//
	// Returns:
	//   - float32: the roughness factor
	Roughness() float32

	// SetBaseColor sets the albedo RGB color.
	//
	// Parameters:
	//   - color: the base color
	SetBaseColor(color [3]float32)

	// SetMetallic sets the metallic factor.
	//
	// Parameters:
	//   - metallic: the metallic factor
	SetMetallic(metallic float32)

	// SetRoughness sets the roughness factor.
	//
	// Parameters:
	//   - roughness: the roughness factor
	SetRoughness(roughness float32)

	// HasTexture reports whether a texture is bound to slot.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - bool: true if a texture is bound
	HasTexture(slot common.TextureSlot) bool

	// Texture retrieves the texture bound to slot.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - TextureBinding: the binding
	//   - bool: false if the slot is empty
	Texture(slot common.TextureSlot) (TextureBinding, bool)

	// SetTexture binds a texture to slot, replacing any previous binding.
	//
	// Parameters:
	//   - slot: the texture slot
	//   - binding: the texture to bind
	//
	// Returns:
	//   - TextureBinding: the binding that was replaced
	//   - bool: false if the slot was empty
	SetTexture(slot common.TextureSlot, binding TextureBinding) (TextureBinding, bool)

	// ClearTexture empties slot.
	//
	// Parameters:
	//   - slot: the texture slot
	//
	// Returns:
	//   - TextureBinding: the binding that was removed
	//   - bool: false if the slot was already empty
	ClearTexture(slot common.TextureSlot) (TextureBinding, bool)
}

var _ Material = &material{}

// NewMaterial creates a new Material instance configured with the provided options.
//
// Parameters:
//   - options: variadic list of MaterialBuilderOption functions to configure the material
//
// Returns:
//   - Material: a new Material instance
func NewMaterial(options ...MaterialBuilderOption) Material {
	m := &material{
		baseColor: [3]float32{1, 1, 1},
		metallic:  0.0,
		roughness: 1.0,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *material) Name() string {
	return m.name
}

func (m *material) BaseColor() [3]float32 {
	return m.baseColor
}

func (m *material) Metallic() float32 {
	return m.metallic
}

func (m *material) Roughness() float32 {
	return m.roughness
}

func (m *material) SetBaseColor(color [3]float32) {
	m.baseColor = color
}

func (m *material) SetMetallic(metallic float32) {
	m.metallic = metallic
}

func (m *material) SetRoughness(roughness float32) {
	m.roughness = roughness
}

func (m *material) HasTexture(slot common.TextureSlot) bool {
	_, ok := m.Texture(slot)
	return ok
}

func (m *material) Texture(slot common.TextureSlot) (TextureBinding, bool) {
	if !validSlot(slot) || m.textures[slot] == nil {
		return TextureBinding{}, false
	}
	return *m.textures[slot], true
}

func (m *material) SetTexture(slot common.TextureSlot, binding TextureBinding) (TextureBinding, bool) {
	if !validSlot(slot) {
		return TextureBinding{}, false
	}
	prev, had := m.Texture(slot)
	m.textures[slot] = &binding
	return prev, had
}

func (m *material) ClearTexture(slot common.TextureSlot) (TextureBinding, bool) {
	prev, had := m.Texture(slot)
	if had {
		m.textures[slot] = nil
	}
	return prev, had
}

func validSlot(slot common.TextureSlot) bool {
	return slot >= 0 && int(slot) < len(common.TextureSlots)
}
