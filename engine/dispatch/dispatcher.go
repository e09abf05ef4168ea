package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/registry"
	"github.com/Carmen-Shannon/oxy-bridge/engine/shading"
	"github.com/go-logr/logr"
)

// dispatcher is the implementation of the Dispatcher interface.
type dispatcher struct {
	mu *sync.Mutex

	host    host.Host
	subs    Subscriptions
	lights  registry.LightRegistry
	meshes  registry.MeshRegistry
	shading shading.Manager

	sceneToken host.CallbackToken
	started    bool

	logger  logr.Logger
	metrics *metrics.Metrics
}

// Dispatcher routes host scene events to the component owning the affected entity.
type Dispatcher interface {
	// Start registers the scene callback and subscribes every light and mesh already in the host.
	//
	// Returns:
	//   - error: error if the host rejects the scene callback
	Start() error

	// Stop deregisters the scene callback and every live change callback.
	//
	// Returns:
	//   - error: the joined deregistration failures
	Stop() error

	// Dispatch routes a single scene event. Events for entities no component tracks are ignored.
	//
	// Parameters:
	//   - ev: the scene event
	//
	// Returns:
	//   - error: the failure of the component handling the event
	Dispatch(ev host.SceneEvent) error

	// OnMeshAdded binds a newly subscribed mesh to its shading group and the group's shader.
	//
	// Parameters:
	//   - mesh: the host mesh
	//
	// Returns:
	//   - error: host or shading failure
	OnMeshAdded(mesh host.Handle) error

	// LiveTokens returns the number of registered change callbacks.
	LiveTokens() int
}

var _ Dispatcher = &dispatcher{}

// NewDispatcher creates a dispatcher and registers its mesh-added hook on meshes.
//
// Parameters:
//   - h: the host to receive scene events from
//   - subs: the token set the components register their callbacks through
//   - lights: the light registry
//   - meshes: the mesh registry
//   - manager: the shading manager
//   - options: functional options to configure the dispatcher
//
// Returns:
//   - Dispatcher: the new dispatcher
func NewDispatcher(h host.Host, subs Subscriptions, lights registry.LightRegistry, meshes registry.MeshRegistry, manager shading.Manager, options ...DispatcherBuilderOption) Dispatcher {
	if h == nil || subs == nil || lights == nil || meshes == nil || manager == nil {
		panic("dispatch: NewDispatcher requires a host, subscriptions, registries and a shading manager")
	}
	d := &dispatcher{
		mu:      &sync.Mutex{},
		host:    h,
		subs:    subs,
		lights:  lights,
		meshes:  meshes,
		shading: manager,
		logger:  logr.Discard(),
		metrics: metrics.Discard(),
	}
	for _, opt := range options {
		opt(d)
	}
	meshes.OnMeshAdded(d.OnMeshAdded)
	return d
}

func (d *dispatcher) Start() error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return nil
	}
	token, err := d.host.RegisterSceneCallback(d.handleSceneEvent)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("dispatch: register scene callback: %w", err)
	}
	d.sceneToken = token
	d.started = true
	d.mu.Unlock()

	lights := d.host.Entities(host.EntityKindLight)
	meshes := d.host.Entities(host.EntityKindMesh)
	for _, light := range lights {
		if err := d.lights.Subscribe(light); err != nil {
			d.logger.Error(err, "failed to subscribe existing light", "entity", light)
		}
	}
	for _, mesh := range meshes {
		if err := d.meshes.Subscribe(mesh); err != nil {
			d.logger.Error(err, "failed to subscribe existing mesh", "entity", mesh)
		}
	}
	d.logger.Info("dispatcher started", "lights", d.lights.Len(), "meshes", d.meshes.Len(), "liveTokens", d.subs.Live())
	return nil
}

func (d *dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	var errs []error
	if err := d.host.Deregister(d.sceneToken); err != nil {
		errs = append(errs, fmt.Errorf("dispatch: deregister scene callback: %w", err))
	}
	if err := d.subs.CancelAll(); err != nil {
		errs = append(errs, err)
	}
	d.sceneToken = host.CallbackToken{}
	d.started = false
	d.logger.Info("dispatcher stopped")
	return errors.Join(errs...)
}

func (d *dispatcher) Dispatch(ev host.SceneEvent) error {
	event := ev.Kind.String()
	d.metrics.SceneEvents.WithLabelValues(event).Inc()

	var err error
	switch ev.Kind {
	case host.SceneEventNodeAdded:
		err = d.nodeAdded(ev.Node)
	case host.SceneEventNodeRemoved:
		err = d.nodeRemoved(ev.Node)
	case host.SceneEventConnectionMade:
		err = d.connectionMade(ev.Node, ev.Other)
	case host.SceneEventConnectionBroken:
		d.connectionBroken(ev.Node, ev.Other)
	}
	if err != nil {
		d.metrics.DispatchErrors.WithLabelValues(event).Inc()
		d.logger.Error(err, "scene event failed", "event", event, "node", ev.Node, "other", ev.Other)
		return err
	}
	return nil
}

func (d *dispatcher) OnMeshAdded(mesh host.Handle) error {
	groups, err := d.host.ShadingGroups(mesh)
	if err != nil {
		return fmt.Errorf("dispatch: shading groups of %s: %w", mesh, err)
	}
	if len(groups) == 0 {
		return nil
	}
	group := groups[0]
	shader, ok := d.host.SurfaceShader(group)
	if !ok {
		return d.shading.ConnectMeshToGroup(mesh, group, nil)
	}
	_, err = d.shading.CreateMaterial(mesh, group, shader)
	return err
}

func (d *dispatcher) LiveTokens() int {
	return d.subs.Live()
}

// handleSceneEvent is the host scene callback. The host cannot receive errors; Dispatch logs them.
func (d *dispatcher) handleSceneEvent(ev host.SceneEvent) {
	_ = d.Dispatch(ev)
}

func (d *dispatcher) nodeAdded(node host.Handle) error {
	switch d.host.Kind(node) {
	case host.EntityKindLight:
		return d.lights.Subscribe(node)
	case host.EntityKindMesh:
		return d.meshes.Subscribe(node)
	}
	return nil
}

func (d *dispatcher) nodeRemoved(node host.Handle) error {
	switch d.host.Kind(node) {
	case host.EntityKindLight:
		if !d.lights.Tracked(node) {
			d.logger.V(1).Info("ignoring removal of untracked light", "entity", node)
			return nil
		}
		return d.lights.Unsubscribe(node)
	case host.EntityKindMesh:
		if group, ok := d.shading.Binding(node); ok {
			d.shading.DisconnectMeshFromGroup(node, group, false)
		}
		if !d.meshes.Tracked(node) {
			d.logger.V(1).Info("ignoring removal of untracked mesh", "entity", node)
			return nil
		}
		return d.meshes.Unsubscribe(node)
	case host.EntityKindSurfaceShader:
		if _, err := d.shading.FindRelationByShader(node); err != nil {
			return nil
		}
		return d.shading.RemoveShader(node)
	case host.EntityKindShadingGroup:
		if rel, err := d.shading.FindRelationByGroup(node); err == nil {
			d.shading.DisconnectShaderFromGroup(rel.Shader, node)
		}
		for _, mesh := range d.shading.MeshesInGroup(node) {
			d.shading.DisconnectMeshFromGroup(mesh, node, true)
		}
	}
	return nil
}

func (d *dispatcher) connectionMade(node, other host.Handle) error {
	if d.host.Kind(other) != host.EntityKindShadingGroup {
		return nil
	}
	switch d.host.Kind(node) {
	case host.EntityKindSurfaceShader:
		_, err := d.shading.ConnectShaderToGroup(node, other, true)
		return err
	case host.EntityKindMesh:
		return d.shading.ConnectMeshToGroup(node, other, nil)
	}
	return nil
}

func (d *dispatcher) connectionBroken(node, other host.Handle) {
	switch d.host.Kind(node) {
	case host.EntityKindSurfaceShader:
		d.shading.DisconnectShaderFromGroup(node, other)
	case host.EntityKindMesh:
		d.shading.DisconnectMeshFromGroup(node, other, true)
	}
}
