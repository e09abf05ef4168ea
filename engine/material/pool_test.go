package material

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolDefaultMaterial(t *testing.T) {
	p := NewPool(WithPoolLogger(testr.New(t)))

	def := p.Default()
	require.True(t, def.Valid())
	assert.Equal(t, 1, p.Len())

	m, ok := p.Get(def)
	require.True(t, ok)
	assert.Equal(t, "DEFAULT", m.Name())
	assert.Equal(t, [3]float32{1, 1, 1}, m.BaseColor())
	assert.Equal(t, float32(1), m.Metallic())
	assert.Equal(t, float32(1), m.Roughness())

	require.ErrorIs(t, p.Destroy(def), ErrDefaultMaterial)
	assert.Equal(t, 1, p.Len())
}

func TestPoolDefaultMaterialOverride(t *testing.T) {
	p := NewPool(WithDefaultMaterial([3]float32{0.5, 0.5, 0.5}, 0, 0.25))
	m, ok := p.Get(p.Default())
	require.True(t, ok)
	assert.Equal(t, [3]float32{0.5, 0.5, 0.5}, m.BaseColor())
	assert.Equal(t, float32(0.25), m.Roughness())
}

func TestPoolCreateDestroy(t *testing.T) {
	p := NewPool()

	h := p.Create(WithName("brick"), WithMetallic(0.2))
	assert.NotEqual(t, p.Default(), h)
	assert.Equal(t, 2, p.Len())

	m, ok := p.Get(h)
	require.True(t, ok)
	assert.Equal(t, "brick", m.Name())
	assert.Equal(t, float32(0.2), m.Metallic())

	require.NoError(t, p.Destroy(h))
	_, ok = p.Get(h)
	assert.False(t, ok)
	require.ErrorIs(t, p.Destroy(h), common.ErrNotFound)

	p.Close()
	assert.Equal(t, 0, p.Len())
}

func TestMaterialTextureSlots(t *testing.T) {
	m := NewMaterial()
	for _, slot := range common.TextureSlots {
		assert.False(t, m.HasTexture(slot))
	}

	first := TextureBinding{Key: "a.png", Handle: texture.HandleOf(1)}
	_, had := m.SetTexture(common.TextureSlotNormal, first)
	assert.False(t, had)
	assert.True(t, m.HasTexture(common.TextureSlotNormal))

	prev, had := m.SetTexture(common.TextureSlotNormal, TextureBinding{Key: "b.png", Handle: texture.HandleOf(2)})
	assert.True(t, had)
	assert.Equal(t, first, prev)

	got, ok := m.Texture(common.TextureSlotNormal)
	require.True(t, ok)
	assert.Equal(t, "b.png", got.Key)

	cleared, had := m.ClearTexture(common.TextureSlotNormal)
	assert.True(t, had)
	assert.Equal(t, "b.png", cleared.Key)
	_, had = m.ClearTexture(common.TextureSlotNormal)
	assert.False(t, had)

	_, had = m.SetTexture(common.TextureSlot(42), first)
	assert.False(t, had)
	assert.False(t, m.HasTexture(common.TextureSlot(42)))
}
