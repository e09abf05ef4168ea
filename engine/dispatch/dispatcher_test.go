package dispatch

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/registry"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/Carmen-Shannon/oxy-bridge/engine/shading"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	host      host.MemoryHost
	m         *metrics.Metrics
	graph     scenegraph.SceneGraph
	materials material.Pool
	subs      Subscriptions
	lights    registry.LightRegistry
	meshes    registry.MeshRegistry
	shading   shading.Manager
	d         Dispatcher
}

func newFixture(t *testing.T, h host.MemoryHost) *fixture {
	t.Helper()
	logger := testr.New(t)
	f := &fixture{
		host:      h,
		m:         metrics.Discard(),
		graph:     scenegraph.NewSceneGraph(),
		materials: material.NewPool(),
	}
	r, err := renderer.NewRenderer(renderer.BackendTypeNull, renderer.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(r.Close)
	cache, err := texture.NewCache(r.TexturePool(), texture.WithDecodeWorkers(1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	f.subs = NewSubscriptions(h, WithSubscriptionsLogger(logger), WithSubscriptionsMetrics(f.m))
	f.lights = registry.NewLightRegistry(h, f.subs, r, f.graph, registry.WithLightLogger(logger))
	f.meshes = registry.NewMeshRegistry(h, f.subs, r, f.graph, f.materials.Default(), registry.WithMeshLogger(logger))
	f.shading = shading.NewManager(h, f.subs, r, f.materials, cache, f.meshes, shading.WithLogger(logger))
	f.d = NewDispatcher(h, f.subs, f.lights, f.meshes, f.shading, WithLogger(logger), WithMetrics(f.m))
	return f
}

func (f *fixture) meshMaterial(t *testing.T, mesh host.Handle) material.Handle {
	t.Helper()
	node, ok := f.meshes.Model(mesh)
	require.True(t, ok)
	return node.Model().Material()
}

func TestStartSubscribesExistingScene(t *testing.T) {
	h := host.NewMemoryHost()
	xf := h.AddTransform(host.IdentityTransform())
	light, err := h.AddLight(xf, host.LightData{Kind: host.LightKindPoint, Intensity: 1})
	require.NoError(t, err)
	_, err = h.AddLight(xf, host.LightData{Kind: host.LightKindAmbient, Intensity: 1})
	require.NoError(t, err)
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 2})
	require.NoError(t, err)
	shader := h.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := h.AddShadingGroup()
	require.NoError(t, h.ConnectShader(shader, group))
	require.NoError(t, h.AssignGroup(mesh, group))

	f := newFixture(t, h)
	require.NoError(t, f.d.Start())
	require.NoError(t, f.d.Start())

	assert.True(t, f.lights.Tracked(light))
	assert.Equal(t, 1, f.lights.Len())
	assert.True(t, f.meshes.Tracked(mesh))

	rel, err := f.shading.FindRelationByShader(shader)
	require.NoError(t, err)
	assert.Equal(t, rel.Material, f.meshMaterial(t, mesh))
	assert.Equal(t, 1, h.SceneCallbacks())
	// light: transform + light, mesh: transform + geometry, shader: attributes
	assert.Equal(t, 5, f.d.LiveTokens())
	assert.Equal(t, float64(5), testutil.ToFloat64(f.m.LiveTokens))
}

func TestLightLifecycle(t *testing.T) {
	h := host.NewMemoryHost()
	f := newFixture(t, h)
	require.NoError(t, f.d.Start())

	xf := h.AddTransform(host.IdentityTransform())
	light, err := h.AddLight(xf, host.LightData{Kind: host.LightKindSpot, Intensity: 1, ConeAngle: 1})
	require.NoError(t, err)
	require.True(t, f.lights.Tracked(light))

	moved := host.IdentityTransform()
	moved.Translation = [3]float64{3, 0, 0}
	require.NoError(t, h.SetTransform(xf, moved))
	node, _ := f.lights.Light(light)
	assert.Equal(t, [3]float32{3, 0, 0}, node.Position())

	require.NoError(t, h.Remove(xf))
	assert.False(t, f.lights.Tracked(light))
	assert.Zero(t, f.graph.Len())
	assert.Zero(t, h.Callbacks())
	assert.Zero(t, f.d.LiveTokens())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.m.SceneEvents.WithLabelValues("nodeAdded")))
}

func TestUnsupportedLightIsReported(t *testing.T) {
	h := host.NewMemoryHost()
	f := newFixture(t, h)
	require.NoError(t, f.d.Start())

	xf := h.AddTransform(host.IdentityTransform())
	ambient, err := h.AddLight(xf, host.LightData{Kind: host.LightKindAmbient})
	require.NoError(t, err)
	assert.False(t, f.lights.Tracked(ambient))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.m.DispatchErrors.WithLabelValues("nodeAdded")))

	require.ErrorIs(t, f.d.Dispatch(host.SceneEvent{Kind: host.SceneEventNodeAdded, Node: ambient}), common.ErrUnsupportedVariant)

	// Removing the untracked light is tolerated.
	require.NoError(t, h.Remove(ambient))
	assert.Zero(t, testutil.ToFloat64(f.m.DispatchErrors.WithLabelValues("nodeRemoved")))
}

func TestShadingLifecycle(t *testing.T) {
	h := host.NewMemoryHost()
	f := newFixture(t, h)
	require.NoError(t, f.d.Start())

	xf := h.AddTransform(host.IdentityTransform())
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, err)
	shader := h.AddShader(host.ShaderData{Type: host.ShaderTypePhong})
	g1 := h.AddShadingGroup()
	g2 := h.AddShadingGroup()

	require.NoError(t, h.AssignGroup(mesh, g1))
	assert.Equal(t, f.shading.Default(), f.meshMaterial(t, mesh))
	bound, ok := f.shading.Binding(mesh)
	require.True(t, ok)
	assert.Equal(t, g1, bound)

	require.NoError(t, h.ConnectShader(shader, g1))
	rel, err := f.shading.FindRelationByShader(shader)
	require.NoError(t, err)
	assert.Equal(t, rel.Material, f.meshMaterial(t, mesh))

	require.NoError(t, h.AssignGroup(mesh, g2))
	assert.Equal(t, f.shading.Default(), f.meshMaterial(t, mesh))

	require.NoError(t, h.AssignGroup(mesh, g1))
	assert.Equal(t, rel.Material, f.meshMaterial(t, mesh))

	require.NoError(t, h.Remove(shader))
	_, err = f.shading.FindRelationByShader(shader)
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, f.shading.Default(), f.meshMaterial(t, mesh))
	assert.Equal(t, 1, f.materials.Len())
}

func TestRemoveShaderAfterDisconnectDefaultsMesh(t *testing.T) {
	h := host.NewMemoryHost()
	f := newFixture(t, h)
	require.NoError(t, f.d.Start())

	xf := h.AddTransform(host.IdentityTransform())
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, err)
	shader := h.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := h.AddShadingGroup()
	require.NoError(t, h.ConnectShader(shader, group))
	require.NoError(t, h.AssignGroup(mesh, group))
	rel, err := f.shading.FindRelationByShader(shader)
	require.NoError(t, err)
	require.Equal(t, rel.Material, f.meshMaterial(t, mesh))

	require.NoError(t, h.DisconnectShader(shader, group))
	assert.Equal(t, rel.Material, f.meshMaterial(t, mesh))

	require.NoError(t, h.Remove(shader))
	_, alive := f.materials.Get(rel.Material)
	assert.False(t, alive)
	assert.Equal(t, f.shading.Default(), f.meshMaterial(t, mesh))
}

func TestRemoveShadingGroupDefaultsMeshes(t *testing.T) {
	h := host.NewMemoryHost()
	f := newFixture(t, h)
	require.NoError(t, f.d.Start())

	xf := h.AddTransform(host.IdentityTransform())
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, err)
	shader := h.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := h.AddShadingGroup()
	require.NoError(t, h.ConnectShader(shader, group))
	require.NoError(t, h.AssignGroup(mesh, group))

	require.NoError(t, h.Remove(group))
	_, err = f.shading.FindRelationByGroup(group)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, bound := f.shading.Binding(mesh)
	assert.False(t, bound)
	assert.Equal(t, f.shading.Default(), f.meshMaterial(t, mesh))

	_, err = f.shading.FindRelationByShader(shader)
	require.NoError(t, err)
}

func TestMeshRemovalDropsBinding(t *testing.T) {
	h := host.NewMemoryHost()
	f := newFixture(t, h)
	require.NoError(t, f.d.Start())

	xf := h.AddTransform(host.IdentityTransform())
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, err)
	group := h.AddShadingGroup()
	require.NoError(t, h.AssignGroup(mesh, group))
	require.Equal(t, 1, f.shading.Bindings())

	require.NoError(t, h.Remove(mesh))
	assert.Zero(t, f.shading.Bindings())
	assert.False(t, f.meshes.Tracked(mesh))
	assert.Zero(t, h.CallbacksOn(mesh))
}

func TestStopDeregistersEverything(t *testing.T) {
	h := host.NewMemoryHost()
	xf := h.AddTransform(host.IdentityTransform())
	light, err := h.AddLight(xf, host.LightData{Kind: host.LightKindDirectional, Intensity: 1})
	require.NoError(t, err)

	f := newFixture(t, h)
	require.NoError(t, f.d.Start())
	require.NotZero(t, h.Callbacks())

	require.NoError(t, f.d.Stop())
	require.NoError(t, f.d.Stop())
	assert.Zero(t, h.Callbacks())
	assert.Zero(t, h.SceneCallbacks())
	assert.Zero(t, f.d.LiveTokens())

	// Registries still own their records and cancel the revoked tokens without error.
	assert.True(t, f.lights.Tracked(light))
	require.NoError(t, f.lights.Close())

	_, err = h.AddLight(xf, host.LightData{Kind: host.LightKindPoint, Intensity: 1})
	require.NoError(t, err)
	assert.Zero(t, f.lights.Len())
}
