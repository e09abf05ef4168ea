package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/Carmen-Shannon/oxy-bridge/engine/transform"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// MeshAddedHook is invoked after a mesh was subscribed.
type MeshAddedHook func(mesh host.Handle) error

// meshRegistry is the implementation of the MeshRegistry interface.
type meshRegistry struct {
	mu *sync.Mutex

	host            host.Host
	sub             host.Subscriber
	device          renderer.Device
	graph           scenegraph.SceneGraph
	defaultMaterial material.Handle

	index   *index[scenegraph.MeshNode]
	pending sets.Set[host.Handle]
	hooks   []MeshAddedHook

	logger  logr.Logger
	metrics *metrics.Metrics
}

// MeshRegistry mirrors host meshes into mesh nodes of the scene graph.
type MeshRegistry interface {
	// Subscribe starts tracking a host mesh. The mesh node gets one primitive per host sub-mesh,
	// each bound to the default material, and the registered mesh-added hooks run afterwards.
	//
	// Parameters:
	//   - entity: the host mesh
	//
	// Returns:
	//   - error: common.ErrWrongEntityKind if entity is not a mesh, common.ErrAlreadyTracked if it is
	//     tracked, or any host or transform failure. Hook failures are logged, not returned.
	Subscribe(entity host.Handle) error

	// Unsubscribe stops tracking a host mesh, cancelling its callbacks and destroying its node.
	//
	// Parameters:
	//   - entity: the host mesh
	//
	// Returns:
	//   - error: common.ErrNotFound if entity is not tracked
	Unsubscribe(entity host.Handle) error

	// OnAttributeChanged re-syncs every mesh parented under the notified transform.
	// Only MessageAttributeSet notifications are handled; unknown transforms are ignored.
	//
	// Parameters:
	//   - n: the transform notification
	OnAttributeChanged(n host.Notification)

	// Update rebuilds the primitives of every mesh whose geometry changed since the last call.
	// Rebuilt primitives keep the material currently bound to the model.
	//
	// Returns:
	//   - int: the number of rebuilt meshes
	Update() int

	// Model returns the node mirroring a tracked mesh.
	//
	// Parameters:
	//   - entity: the host mesh
	//
	// Returns:
	//   - scenegraph.MeshNode: the mesh node
	//   - bool: false if entity is not tracked
	Model(entity host.Handle) (scenegraph.MeshNode, bool)

	// OnMeshAdded registers a hook invoked after every successful Subscribe.
	//
	// Parameters:
	//   - hook: the hook
	OnMeshAdded(hook MeshAddedHook)

	// Tracked reports whether entity is tracked.
	Tracked(entity host.Handle) bool

	// Len returns the number of tracked meshes.
	Len() int

	// Close unsubscribes every tracked mesh.
	//
	// Returns:
	//   - error: the joined unsubscribe failures
	Close() error
}

var _ MeshRegistry = &meshRegistry{}

// NewMeshRegistry creates an empty mesh registry.
//
// Parameters:
//   - h: the host to read meshes and transforms from
//   - sub: the subscriber that registers change callbacks
//   - device: the device synchronized before nodes are rebuilt or destroyed
//   - graph: the scene graph that owns the mesh nodes
//   - defaultMaterial: the material new primitives are bound to
//   - options: functional options to configure the registry
//
// Returns:
//   - MeshRegistry: the new registry
func NewMeshRegistry(h host.Host, sub host.Subscriber, device renderer.Device, graph scenegraph.SceneGraph, defaultMaterial material.Handle, options ...MeshRegistryBuilderOption) MeshRegistry {
	if h == nil || sub == nil || device == nil || graph == nil {
		panic("registry: NewMeshRegistry requires a host, subscriber, device and scene graph")
	}
	r := &meshRegistry{
		mu:              &sync.Mutex{},
		host:            h,
		sub:             sub,
		device:          device,
		graph:           graph,
		defaultMaterial: defaultMaterial,
		index:           newIndex[scenegraph.MeshNode](),
		pending:         sets.New[host.Handle](),
		logger:          logr.Discard(),
		metrics:         metrics.Discard(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *meshRegistry) Subscribe(entity host.Handle) error {
	hooks, err := r.subscribe(entity)
	if err != nil {
		return err
	}
	// Hooks call back into the shading manager, which resolves models through this registry.
	for _, hook := range hooks {
		if err := hook(entity); err != nil {
			r.logger.Error(err, "mesh added hook failed", "entity", entity)
		}
	}
	return nil
}

func (r *meshRegistry) subscribe(entity host.Handle) ([]MeshAddedHook, error) {
	if kind := r.host.Kind(entity); kind != host.EntityKindMesh {
		return nil, fmt.Errorf("mesh registry: subscribe %s: %s is not a mesh: %w", entity, kind, common.ErrWrongEntityKind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index.get(entity); ok {
		return nil, fmt.Errorf("mesh registry: subscribe %s: %w", entity, common.ErrAlreadyTracked)
	}

	data, err := r.host.Mesh(entity)
	if err != nil {
		return nil, fmt.Errorf("mesh registry: read %s: %w", entity, err)
	}
	parent, err := r.host.Parent(entity)
	if err != nil {
		return nil, fmt.Errorf("mesh registry: parent of %s: %w", entity, err)
	}
	t, err := transform.Sync(r.host, parent)
	if err != nil {
		return nil, fmt.Errorf("mesh registry: subscribe %s: %w", entity, err)
	}

	node, err := r.graph.CreateMesh(nil, data.Name, data.SubMeshes, r.defaultMaterial)
	if err != nil {
		return nil, fmt.Errorf("mesh registry: subscribe %s: %w", entity, err)
	}
	transform.Apply(node, t)

	tokens, err := subscribeAll(r.sub,
		subscription{entity: parent, handler: r.OnAttributeChanged},
		subscription{entity: entity, handler: r.onGeometryChanged},
	)
	if err != nil {
		if derr := r.graph.DestroyNode(node); derr != nil {
			r.logger.Error(derr, "failed to destroy mesh node after subscription failure", "entity", entity)
		}
		return nil, fmt.Errorf("mesh registry: subscribe %s: %w", entity, err)
	}

	r.index.insert(&record[scenegraph.MeshNode]{
		entity:    entity,
		transform: parent,
		node:      node,
		tokens:    tokens,
	})
	r.metrics.TrackedEntities.WithLabelValues("mesh").Set(float64(r.index.len()))
	r.logger.V(1).Info("mesh subscribed", "entity", entity, "transform", parent, "primitives", data.SubMeshes, "node", node.ID())
	return append([]MeshAddedHook(nil), r.hooks...), nil
}

func (r *meshRegistry) Unsubscribe(entity host.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(entity)
}

func (r *meshRegistry) OnAttributeChanged(n host.Notification) {
	if !n.Kind.Has(host.MessageAttributeSet) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	owners := r.index.owners(n.Entity)
	if len(owners) == 0 {
		r.logger.V(1).Info("ignoring change of untracked transform", "transform", n.Entity)
		return
	}
	t, err := transform.Sync(r.host, n.Entity)
	if err != nil {
		r.logger.Error(err, "failed to sync mesh transform", "transform", n.Entity)
		return
	}
	for _, rec := range owners {
		transform.Apply(rec.node, t)
	}
}

func (r *meshRegistry) Update() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending.Len() == 0 {
		return 0
	}
	pending := r.pending.UnsortedList()
	r.pending = sets.New[host.Handle]()

	rebuilt := 0
	waited := false
	for _, entity := range pending {
		rec, ok := r.index.get(entity)
		if !ok {
			continue
		}
		data, err := r.host.Mesh(entity)
		if err != nil {
			r.logger.Error(err, "failed to read changed mesh", "entity", entity)
			continue
		}
		mdl := rec.node.Model()
		if mdl.PrimitiveCount() == max(data.SubMeshes, 0) {
			continue
		}
		if !waited {
			if err := r.device.WaitForAllPreviousWork(); err != nil {
				r.logger.Error(err, "device wait failed before rebuilding meshes")
				r.pending.Insert(pending...)
				return rebuilt
			}
			waited = true
		}
		mdl.Rebuild(data.SubMeshes)
		rebuilt++
		r.logger.V(1).Info("mesh rebuilt", "entity", entity, "primitives", mdl.PrimitiveCount())
	}
	return rebuilt
}

func (r *meshRegistry) Model(entity host.Handle) (scenegraph.MeshNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.index.get(entity)
	if !ok {
		return nil, false
	}
	return rec.node, true
}

func (r *meshRegistry) OnMeshAdded(hook MeshAddedHook) {
	if hook == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

func (r *meshRegistry) Tracked(entity host.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index.get(entity)
	return ok
}

func (r *meshRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.len()
}

func (r *meshRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, entity := range r.index.entities() {
		if err := r.unsubscribeLocked(entity); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// onGeometryChanged queues a mesh for rebuilding on the next Update.
func (r *meshRegistry) onGeometryChanged(n host.Notification) {
	if !n.Kind.Has(host.MessageAttributeSet) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index.get(n.Entity); !ok {
		return
	}
	r.pending.Insert(n.Entity)
}

// unsubscribeLocked cancels the callbacks of entity and destroys its node. Caller holds the lock.
func (r *meshRegistry) unsubscribeLocked(entity host.Handle) error {
	rec, ok := r.index.get(entity)
	if !ok {
		err := fmt.Errorf("mesh registry: unsubscribe %s: %w", entity, common.ErrNotFound)
		r.logger.Error(err, "unsubscribe of untracked mesh", "entity", entity)
		return err
	}

	if err := cancelAll(r.sub, rec.tokens); err != nil {
		r.logger.Error(err, "failed to cancel mesh callbacks", "entity", entity)
	}
	if err := r.device.WaitForAllPreviousWork(); err != nil {
		r.logger.Error(err, "device wait failed before destroying mesh", "entity", entity)
	}
	if err := r.graph.DestroyNode(rec.node); err != nil {
		r.logger.Error(err, "failed to destroy mesh node", "entity", entity)
	}
	r.index.remove(entity)
	r.pending.Delete(entity)
	r.metrics.TrackedEntities.WithLabelValues("mesh").Set(float64(r.index.len()))
	r.logger.V(1).Info("mesh unsubscribed", "entity", entity)
	return nil
}
