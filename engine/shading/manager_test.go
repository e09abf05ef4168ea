package shading

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hostSubscriber struct {
	h host.Host
}

func (s hostSubscriber) Subscribe(entity host.Handle, handler host.ChangeHandler) (host.CallbackToken, error) {
	return s.h.RegisterChangeCallback(entity, handler)
}

func (s hostSubscriber) Cancel(token host.CallbackToken) error {
	return s.h.Deregister(token)
}

type countingDevice struct {
	waits int
	err   error
}

func (d *countingDevice) WaitForAllPreviousWork() error {
	d.waits++
	return d.err
}

func (d *countingDevice) Ready() bool { return true }

type modelMap map[host.Handle]scenegraph.MeshNode

func (m modelMap) Model(mesh host.Handle) (scenegraph.MeshNode, bool) {
	n, ok := m[mesh]
	return n, ok
}

type fixture struct {
	host      host.MemoryHost
	device    *countingDevice
	graph     scenegraph.SceneGraph
	materials material.Pool
	pool      texture.MemoryPool
	cache     texture.Cache
	models    modelMap
	m         *metrics.Metrics
	mgr       Manager
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		host:      host.NewMemoryHost(),
		device:    &countingDevice{},
		graph:     scenegraph.NewSceneGraph(),
		materials: material.NewPool(),
		pool:      texture.NewMemoryPool(texture.WithStrictFiles(true)),
		models:    modelMap{},
		m:         metrics.Discard(),
		dir:       t.TempDir(),
	}
	cache, err := texture.NewCache(f.pool, texture.WithCacheLogger(testr.New(t)), texture.WithDecodeWorkers(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	f.cache = cache
	f.mgr = NewManager(f.host, hostSubscriber{h: f.host}, f.device, f.materials, f.cache, f.models,
		WithLogger(testr.New(t)), WithMetrics(f.m))
	return f
}

// addMesh creates a host mesh together with the scene node a mesh registry would have made.
func (f *fixture) addMesh(t *testing.T, subMeshes int) host.Handle {
	t.Helper()
	xf := f.host.AddTransform(host.IdentityTransform())
	mesh, err := f.host.AddMesh(xf, host.MeshData{Name: "mesh", SubMeshes: subMeshes})
	require.NoError(t, err)
	node, err := f.graph.CreateMesh(nil, "mesh", subMeshes, f.materials.Default())
	require.NoError(t, err)
	f.models[mesh] = node
	return mesh
}

func (f *fixture) texture(t *testing.T, name string) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	path := filepath.Join(f.dir, name)
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, png.Encode(out, img))
	return path
}

func assertModelMaterial(t *testing.T, node scenegraph.MeshNode, want material.Handle) {
	t.Helper()
	for _, p := range node.Model().Primitives() {
		assert.Equal(t, want, p.Material, "primitive %d", p.Index)
	}
}

func TestConnectShaderThenMesh(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert, Color: [3]float32{1, 0, 0}, Roughness: 0.5})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 2)

	h, err := f.mgr.ConnectShaderToGroup(shader, group, true)
	require.NoError(t, err)
	assert.NotEqual(t, f.mgr.Default(), h)

	require.NoError(t, f.mgr.ConnectMeshToGroup(mesh, group, nil))
	assert.Equal(t, h, f.mgr.ResolveMaterial(mesh))
	assertModelMaterial(t, f.models[mesh], h)

	mat, ok := f.materials.Get(h)
	require.True(t, ok)
	assert.Equal(t, [3]float32{1, 0, 0}, mat.BaseColor())
	assert.Equal(t, float32(0.5), mat.Roughness())

	assert.True(t, f.mgr.DisconnectMeshFromGroup(mesh, group, true))
	assert.Equal(t, f.mgr.Default(), f.mgr.ResolveMaterial(mesh))
	assertModelMaterial(t, f.models[mesh], f.mgr.Default())
	assert.False(t, f.mgr.DisconnectMeshFromGroup(mesh, group, true))
}

func TestConnectShaderTwiceReturnsSameMaterial(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypePhong})
	g1 := f.host.AddShadingGroup()
	g2 := f.host.AddShadingGroup()

	a, err := f.mgr.ConnectShaderToGroup(shader, g1, true)
	require.NoError(t, err)
	b, err := f.mgr.ConnectShaderToGroup(shader, g2, true)
	require.NoError(t, err)
	c, err := f.mgr.ConnectShaderToGroup(shader, g2, true)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a, c)
	rel, err := f.mgr.FindRelationByShader(shader)
	require.NoError(t, err)
	assert.Equal(t, []host.Handle{g1, g2}, rel.Groups)
	assert.Equal(t, 1, f.mgr.Len())
	assert.Equal(t, 2, f.materials.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.m.ShadingRelations))
}

func TestConnectShaderRebindsBoundMeshes(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 1)

	require.NoError(t, f.mgr.ConnectMeshToGroup(mesh, group, nil))
	assert.Equal(t, f.mgr.Default(), f.mgr.ResolveMaterial(mesh))

	h, err := f.mgr.ConnectShaderToGroup(shader, group, false)
	require.NoError(t, err)
	assertModelMaterial(t, f.models[mesh], f.mgr.Default())
	assert.Equal(t, h, f.mgr.ResolveMaterial(mesh))

	_, err = f.mgr.ConnectShaderToGroup(shader, group, true)
	require.NoError(t, err)
	assertModelMaterial(t, f.models[mesh], h)
}

func TestGroupMovesBetweenShaders(t *testing.T) {
	f := newFixture(t)
	s1 := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	s2 := f.host.AddShader(host.ShaderData{Type: host.ShaderTypePhong})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 1)

	_, err := f.mgr.CreateMaterial(mesh, group, s1)
	require.NoError(t, err)
	h2, err := f.mgr.ConnectShaderToGroup(s2, group, true)
	require.NoError(t, err)

	r1, err := f.mgr.FindRelationByShader(s1)
	require.NoError(t, err)
	assert.Empty(t, r1.Groups)
	r, err := f.mgr.FindRelationByGroup(group)
	require.NoError(t, err)
	assert.Equal(t, s2, r.Shader)
	assertModelMaterial(t, f.models[mesh], h2)
}

func TestDisconnectShaderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 1)
	h, err := f.mgr.CreateMaterial(mesh, group, shader)
	require.NoError(t, err)

	f.mgr.DisconnectShaderFromGroup(shader, group)
	f.mgr.DisconnectShaderFromGroup(shader, group)
	f.mgr.DisconnectShaderFromGroup(host.HandleOf(4242), group)

	_, err = f.mgr.FindRelationByGroup(group)
	require.ErrorIs(t, err, common.ErrNotFound)
	// The mesh keeps its material until it is rebound.
	assertModelMaterial(t, f.models[mesh], h)
	assert.Equal(t, f.mgr.Default(), f.mgr.ResolveMaterial(mesh))
}

func TestRemoveShader(t *testing.T) {
	f := newFixture(t)
	albedo := f.texture(t, "albedo.png")
	shader := f.host.AddShader(host.ShaderData{
		Type:     host.ShaderTypeLambert,
		Textures: map[common.TextureSlot]string{common.TextureSlotAlbedo: albedo},
	})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 3)
	h, err := f.mgr.CreateMaterial(mesh, group, shader)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Holders(albedo))
	assert.Equal(t, 1, f.host.CallbacksOn(shader))

	waits := f.device.waits
	require.NoError(t, f.mgr.RemoveShader(shader))
	assert.Greater(t, f.device.waits, waits)

	_, err = f.mgr.FindRelationByShader(shader)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.mgr.FindRelationByMaterial(h)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, f.mgr.Default(), f.mgr.ResolveMaterial(mesh))
	assertModelMaterial(t, f.models[mesh], f.mgr.Default())
	_, bound := f.mgr.Binding(mesh)
	assert.False(t, bound)

	assert.Zero(t, f.cache.Len())
	assert.Zero(t, f.pool.Resident())
	assert.Zero(t, f.host.CallbacksOn(shader))
	_, ok := f.materials.Get(h)
	assert.False(t, ok)
	assert.Equal(t, 1, f.materials.Len())

	require.ErrorIs(t, f.mgr.RemoveShader(shader), common.ErrNotFound)
}

func TestRemoveShaderDefaultsMeshesOfDisconnectedGroups(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 2)
	h, err := f.mgr.CreateMaterial(mesh, group, shader)
	require.NoError(t, err)

	f.mgr.DisconnectShaderFromGroup(shader, group)
	assertModelMaterial(t, f.models[mesh], h)

	require.NoError(t, f.mgr.RemoveShader(shader))
	_, ok := f.materials.Get(h)
	assert.False(t, ok)
	assert.Equal(t, f.mgr.Default(), f.models[mesh].Model().Material())
	assertModelMaterial(t, f.models[mesh], f.mgr.Default())
	// The mesh stays bound to its group.
	bound, ok := f.mgr.Binding(mesh)
	require.True(t, ok)
	assert.Equal(t, group, bound)
}

func TestRemoveShaderSkipsMeshesRebound(t *testing.T) {
	f := newFixture(t)
	s1 := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	s2 := f.host.AddShader(host.ShaderData{Type: host.ShaderTypePhong})
	g1 := f.host.AddShadingGroup()
	g2 := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 1)
	_, err := f.mgr.CreateMaterial(mesh, g1, s1)
	require.NoError(t, err)
	h2, err := f.mgr.CreateMaterial(mesh, g2, s2)
	require.NoError(t, err)

	require.NoError(t, f.mgr.RemoveShader(s1))
	assertModelMaterial(t, f.models[mesh], h2)
}

func TestRemoveShaderAbortsOnDeviceFailure(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := f.host.AddShadingGroup()
	mesh := f.addMesh(t, 1)
	h, err := f.mgr.CreateMaterial(mesh, group, shader)
	require.NoError(t, err)

	f.device.err = common.ErrResourceUnavailable
	require.ErrorIs(t, f.mgr.RemoveShader(shader), common.ErrResourceUnavailable)

	rel, err := f.mgr.FindRelationByShader(shader)
	require.NoError(t, err)
	assert.Equal(t, h, rel.Material)
	assertModelMaterial(t, f.models[mesh], h)
}

func TestShaderTextureChangeGoesThroughCache(t *testing.T) {
	f := newFixture(t)
	first := f.texture(t, "first.png")
	second := f.texture(t, "second.png")
	shader := f.host.AddShader(host.ShaderData{
		Type: host.ShaderTypePhong,
		Textures: map[common.TextureSlot]string{
			common.TextureSlotAlbedo: first,
			common.TextureSlotNormal: first,
		},
	})
	group := f.host.AddShadingGroup()
	h, err := f.mgr.ConnectShaderToGroup(shader, group, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.cache.Holders(first))
	assert.Equal(t, 1, f.pool.Loads())

	require.NoError(t, f.host.SetShader(shader, host.ShaderData{
		Type:     host.ShaderTypePhong,
		Color:    [3]float32{0, 0, 1},
		Textures: map[common.TextureSlot]string{common.TextureSlotAlbedo: second},
	}))

	mat, _ := f.materials.Get(h)
	assert.Equal(t, [3]float32{0, 0, 1}, mat.BaseColor())
	binding, ok := mat.Texture(common.TextureSlotAlbedo)
	require.True(t, ok)
	assert.Equal(t, second, binding.Key)
	assert.False(t, mat.HasTexture(common.TextureSlotNormal))
	assert.Zero(t, f.cache.Holders(first))
	assert.Equal(t, 1, f.cache.Holders(second))
}

func TestShaderTextureFailureLeavesMaterialUntouched(t *testing.T) {
	f := newFixture(t)
	good := f.texture(t, "good.png")
	shader := f.host.AddShader(host.ShaderData{
		Type:     host.ShaderTypeLambert,
		Textures: map[common.TextureSlot]string{common.TextureSlotAlbedo: good},
	})
	group := f.host.AddShadingGroup()
	h, err := f.mgr.ConnectShaderToGroup(shader, group, true)
	require.NoError(t, err)

	require.NoError(t, f.host.SetShader(shader, host.ShaderData{
		Type:     host.ShaderTypeLambert,
		Textures: map[common.TextureSlot]string{common.TextureSlotAlbedo: filepath.Join(f.dir, "missing.png")},
	}))
	require.ErrorIs(t, f.mgr.SyncShader(shader), common.ErrResourceUnavailable)

	mat, _ := f.materials.Get(h)
	binding, ok := mat.Texture(common.TextureSlotAlbedo)
	require.True(t, ok)
	assert.Equal(t, good, binding.Key)
	assert.Equal(t, 1, f.cache.Holders(good))
}

func TestUnsupportedShaderIsIgnored(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeUnsupported, Color: [3]float32{0.2, 0.2, 0.2}})
	group := f.host.AddShadingGroup()

	h, err := f.mgr.ConnectShaderToGroup(shader, group, true)
	require.NoError(t, err)
	mat, _ := f.materials.Get(h)
	assert.Equal(t, [3]float32{1, 1, 1}, mat.BaseColor())
	require.NoError(t, f.mgr.SyncShader(shader))
}

func TestConnectShaderValidatesKinds(t *testing.T) {
	f := newFixture(t)
	shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := f.host.AddShadingGroup()

	_, err := f.mgr.ConnectShaderToGroup(group, shader, true)
	require.ErrorIs(t, err, common.ErrWrongEntityKind)
	_, err = f.mgr.ConnectShaderToGroup(shader, host.HandleOf(999), true)
	require.ErrorIs(t, err, common.ErrWrongEntityKind)
	assert.Zero(t, f.mgr.Len())
	assert.Equal(t, 1, f.materials.Len())
}

func TestManagerClose(t *testing.T) {
	f := newFixture(t)
	mesh := f.addMesh(t, 1)
	for range 3 {
		shader := f.host.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
		group := f.host.AddShadingGroup()
		_, err := f.mgr.CreateMaterial(mesh, group, shader)
		require.NoError(t, err)
	}
	unshaded := f.addMesh(t, 1)
	require.NoError(t, f.mgr.ConnectMeshToGroup(unshaded, f.host.AddShadingGroup(), nil))

	require.NoError(t, f.mgr.Close())
	assert.Zero(t, f.mgr.Len())
	assert.Zero(t, f.mgr.Bindings())
	assert.Equal(t, 1, f.materials.Len())
	assert.Zero(t, f.host.Callbacks())
	assert.Equal(t, float64(0), testutil.ToFloat64(f.m.MeshBindings))
	assertModelMaterial(t, f.models[mesh], f.mgr.Default())
}
