package registry

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type meshFixture struct {
	host      host.MemoryHost
	sub       *hostSubscriber
	device    *fakeDevice
	graph     scenegraph.SceneGraph
	materials material.Pool
	m         *metrics.Metrics
	reg       MeshRegistry
}

func newMeshFixture(t *testing.T, options ...MeshRegistryBuilderOption) *meshFixture {
	t.Helper()
	f := &meshFixture{
		host:      host.NewMemoryHost(),
		device:    &fakeDevice{},
		graph:     scenegraph.NewSceneGraph(),
		materials: material.NewPool(),
		m:         metrics.Discard(),
	}
	f.sub = &hostSubscriber{h: f.host, failFor: map[host.Handle]bool{}}
	options = append([]MeshRegistryBuilderOption{WithMeshLogger(testr.New(t)), WithMeshMetrics(f.m)}, options...)
	f.reg = NewMeshRegistry(f.host, f.sub, f.device, f.graph, f.materials.Default(), options...)
	return f
}

func (f *meshFixture) addMesh(t *testing.T, parent host.TransformData, md host.MeshData) (host.Handle, host.Handle) {
	t.Helper()
	xf := f.host.AddTransform(parent)
	mesh, err := f.host.AddMesh(xf, md)
	require.NoError(t, err)
	return xf, mesh
}

func TestMeshSubscribeCreatesModel(t *testing.T) {
	f := newMeshFixture(t)
	_, mesh := f.addMesh(t, translated(0, 1, 0), host.MeshData{Name: "cube", SubMeshes: 3})

	require.NoError(t, f.reg.Subscribe(mesh))

	node, ok := f.reg.Model(mesh)
	require.True(t, ok)
	mdl := node.Model()
	assert.Equal(t, "cube", mdl.Name())
	require.Equal(t, 3, mdl.PrimitiveCount())
	for _, p := range mdl.Primitives() {
		assert.Equal(t, f.materials.Default(), p.Material)
	}
	assert.Equal(t, [3]float32{0, 1, 0}, node.Position())
	assert.Equal(t, 2, f.host.Callbacks())
	assert.Equal(t, float64(1), testutil.ToFloat64(f.m.TrackedEntities.WithLabelValues("mesh")))
}

func TestMeshSubscribeValidation(t *testing.T) {
	f := newMeshFixture(t)
	xf, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})
	light, err := f.host.AddLight(xf, host.LightData{Kind: host.LightKindPoint})
	require.NoError(t, err)

	require.ErrorIs(t, f.reg.Subscribe(light), common.ErrWrongEntityKind)
	assert.Zero(t, f.graph.Len())

	require.NoError(t, f.reg.Subscribe(mesh))
	require.ErrorIs(t, f.reg.Subscribe(mesh), common.ErrAlreadyTracked)
	assert.Equal(t, 1, f.reg.Len())
}

func TestMeshAddedHooks(t *testing.T) {
	var seen []host.Handle
	f := newMeshFixture(t, WithMeshAddedHook(func(mesh host.Handle) error {
		seen = append(seen, mesh)
		return nil
	}))
	// The hook may call back into the registry.
	f.reg.OnMeshAdded(func(mesh host.Handle) error {
		_, ok := f.reg.Model(mesh)
		if !ok {
			return errors.New("model not visible from hook")
		}
		return errors.New("hook failures are logged")
	})
	_, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})

	require.NoError(t, f.reg.Subscribe(mesh))
	assert.Equal(t, []host.Handle{mesh}, seen)

	require.Error(t, f.reg.Subscribe(mesh))
	assert.Len(t, seen, 1)
}

func TestMeshGeometryChangeRebuildsOnUpdate(t *testing.T) {
	f := newMeshFixture(t)
	_, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 2})
	require.NoError(t, f.reg.Subscribe(mesh))
	node, _ := f.reg.Model(mesh)

	bound := f.materials.Create(material.WithName("red"))
	node.Model().SetMaterial(bound)

	require.NoError(t, f.host.SetMesh(mesh, host.MeshData{Name: "cube", SubMeshes: 4}))
	assert.Equal(t, 2, node.Model().PrimitiveCount())

	waits := f.device.Waits()
	assert.Equal(t, 1, f.reg.Update())
	assert.Equal(t, waits+1, f.device.Waits())
	require.Equal(t, 4, node.Model().PrimitiveCount())
	for _, p := range node.Model().Primitives() {
		assert.Equal(t, bound, p.Material)
	}

	assert.Zero(t, f.reg.Update())

	// Same primitive count: nothing to rebuild.
	require.NoError(t, f.host.SetMesh(mesh, host.MeshData{Name: "cube", SubMeshes: 4}))
	assert.Zero(t, f.reg.Update())
}

func TestMeshUpdateRetriesAfterDeviceFailure(t *testing.T) {
	f := newMeshFixture(t)
	_, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, f.reg.Subscribe(mesh))
	node, _ := f.reg.Model(mesh)

	require.NoError(t, f.host.SetMesh(mesh, host.MeshData{Name: "cube", SubMeshes: 2}))
	f.device.err = common.ErrResourceUnavailable
	assert.Zero(t, f.reg.Update())
	assert.Equal(t, 1, node.Model().PrimitiveCount())

	f.device.err = nil
	assert.Equal(t, 1, f.reg.Update())
	assert.Equal(t, 2, node.Model().PrimitiveCount())
}

func TestMeshTransformChange(t *testing.T) {
	f := newMeshFixture(t)
	xf, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, f.reg.Subscribe(mesh))

	scaled := host.IdentityTransform()
	scaled.Scale = [3]float64{2, 3, 4}
	require.NoError(t, f.host.SetTransform(xf, scaled))

	node, _ := f.reg.Model(mesh)
	assert.Equal(t, [3]float32{2, 3, 4}, node.Scale())
}

func TestMeshUnsubscribe(t *testing.T) {
	f := newMeshFixture(t)
	_, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, f.reg.Subscribe(mesh))
	require.NoError(t, f.host.SetMesh(mesh, host.MeshData{Name: "cube", SubMeshes: 5}))

	require.NoError(t, f.reg.Unsubscribe(mesh))
	assert.Zero(t, f.host.Callbacks())
	assert.Zero(t, f.graph.Len())
	assert.Zero(t, f.reg.Update())
	_, ok := f.reg.Model(mesh)
	assert.False(t, ok)

	require.ErrorIs(t, f.reg.Unsubscribe(mesh), common.ErrNotFound)
}

func TestMeshResubscribeCreatesFreshModel(t *testing.T) {
	f := newMeshFixture(t)
	xf, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})
	require.NoError(t, f.reg.Subscribe(mesh))
	first, _ := f.reg.Model(mesh)
	first.Model().SetMaterial(f.materials.Create(material.WithName("red")))
	require.NoError(t, f.host.SetMesh(mesh, host.MeshData{Name: "cube", SubMeshes: 3}))

	require.NoError(t, f.reg.Unsubscribe(mesh))
	require.NoError(t, f.reg.Subscribe(mesh))

	second, ok := f.reg.Model(mesh)
	require.True(t, ok)
	assert.NotEqual(t, first.ID(), second.ID())
	require.Equal(t, 3, second.Model().PrimitiveCount())
	for _, p := range second.Model().Primitives() {
		assert.Equal(t, f.materials.Default(), p.Material)
	}
	assert.Equal(t, 1, f.reg.Len())
	assert.Equal(t, 1, f.graph.Len())
	assert.Equal(t, 2, f.host.Callbacks())
	assert.Zero(t, f.reg.Update())

	require.NoError(t, f.host.SetTransform(xf, translated(0, 0, 2)))
	assert.Equal(t, [3]float32{0, 0, 2}, second.Position())
	assert.Equal(t, [3]float32{0, 0, 0}, first.Position())
}

func TestMeshRegistryClose(t *testing.T) {
	f := newMeshFixture(t)
	for range 2 {
		_, mesh := f.addMesh(t, host.IdentityTransform(), host.MeshData{Name: "cube", SubMeshes: 1})
		require.NoError(t, f.reg.Subscribe(mesh))
	}

	require.NoError(t, f.reg.Close())
	assert.Zero(t, f.reg.Len())
	assert.Zero(t, f.host.Callbacks())
	assert.Equal(t, float64(0), testutil.ToFloat64(f.m.TrackedEntities.WithLabelValues("mesh")))
}
