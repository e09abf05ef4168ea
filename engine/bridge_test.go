package engine

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/config"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headlessConfig() config.Config {
	cfg := config.Default()
	cfg.Renderer.Backend = "null"
	cfg.PointLightRadius = 12
	return cfg
}

func newTestBridge(t *testing.T, h host.MemoryHost, options ...BridgeBuilderOption) Bridge {
	t.Helper()
	opts := append([]BridgeBuilderOption{WithConfig(headlessConfig()), WithLogger(testr.New(t))}, options...)
	b, err := NewBridge(h, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSetupResizesOnlyOnChange(t *testing.T) {
	h := host.NewMemoryHost(host.WithPanel(config.DefaultPanel, 800, 600))
	b := newTestBridge(t, h)

	require.NoError(t, b.Setup(""))
	w, ht := b.Renderer().Dimensions()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, ht)
	assert.Equal(t, float64(1), testutil.ToFloat64(b.Metrics().FrameResizes))

	require.NoError(t, b.Setup(config.DefaultPanel))
	assert.Equal(t, float64(1), testutil.ToFloat64(b.Metrics().FrameResizes))

	h.SetPanelSize(config.DefaultPanel, 1024, 768)
	require.NoError(t, b.Setup(""))
	w, ht = b.Renderer().Dimensions()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, ht)
	assert.Equal(t, float64(2), testutil.ToFloat64(b.Metrics().FrameResizes))

	err := b.Setup("persp")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestSetupRebuildsChangedMeshes(t *testing.T) {
	h := host.NewMemoryHost(host.WithPanel(config.DefaultPanel, 1280, 720))
	b := newTestBridge(t, h)
	require.NoError(t, b.Start())

	xf := h.AddTransform(host.IdentityTransform())
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, err)
	require.NoError(t, h.SetMesh(mesh, host.MeshData{Name: "cube", SubMeshes: 3}))

	node, ok := b.Meshes().Model(mesh)
	require.True(t, ok)
	assert.Equal(t, 1, node.Model().PrimitiveCount())

	require.NoError(t, b.Setup(""))
	assert.Equal(t, 3, node.Model().PrimitiveCount())
	assert.Equal(t, b.Materials().Default(), node.Model().Material())
}

func TestBridgeMirrorsScene(t *testing.T) {
	h := host.NewMemoryHost(host.WithPanel(config.DefaultPanel, 1280, 720))
	xf := h.AddTransform(host.IdentityTransform())
	light, err := h.AddLight(xf, host.LightData{Kind: host.LightKindPoint, Color: [3]float32{1, 1, 1}, Intensity: 2})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	b := newTestBridge(t, h, WithRegisterer(reg), WithProfiling(true))
	require.NoError(t, b.Start())

	node, ok := b.Lights().Light(light)
	require.True(t, ok)
	assert.Equal(t, float32(12), node.Range())
	assert.Equal(t, 1, b.SceneGraph().Len())

	count, err := testutil.GatherAndCount(reg, "oxy_bridge_registry_tracked_entities")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, b.Setup(""))
}

func TestCloseTearsDownEverything(t *testing.T) {
	h := host.NewMemoryHost(host.WithPanel(config.DefaultPanel, 1280, 720))
	xf := h.AddTransform(host.IdentityTransform())
	_, err := h.AddLight(xf, host.LightData{Kind: host.LightKindDirectional, Intensity: 1})
	require.NoError(t, err)
	mesh, err := h.AddMesh(xf, host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, err)
	shader := h.AddShader(host.ShaderData{Type: host.ShaderTypeLambert})
	group := h.AddShadingGroup()
	require.NoError(t, h.ConnectShader(shader, group))
	require.NoError(t, h.AssignGroup(mesh, group))

	b, err := NewBridge(h, WithConfig(headlessConfig()), WithLogger(testr.New(t)))
	require.NoError(t, err)
	require.NoError(t, b.Start())
	require.NotZero(t, h.Callbacks())
	require.Equal(t, 1, b.Shading().Len())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Zero(t, h.Callbacks())
	assert.Zero(t, h.SceneCallbacks())
	assert.Zero(t, b.Lights().Len())
	assert.Zero(t, b.Meshes().Len())
	assert.Zero(t, b.Shading().Len())
	assert.Zero(t, b.SceneGraph().Len())
	assert.False(t, b.Renderer().Ready())
	assert.Error(t, b.Start())
}

func TestNewBridgeRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.Backend = "vulkan"
	_, err := NewBridge(host.NewMemoryHost(), WithConfig(cfg))
	assert.Error(t, err)
}
