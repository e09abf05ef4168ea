package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/Carmen-Shannon/oxy-bridge/engine/transform"
	"github.com/go-logr/logr"
)

const defaultPointLightRadius float32 = 20

// lightRegistry is the implementation of the LightRegistry interface.
type lightRegistry struct {
	mu *sync.Mutex

	host   host.Host
	sub    host.Subscriber
	device renderer.Device
	graph  scenegraph.SceneGraph

	index       *index[scenegraph.LightNode]
	pointRadius float32

	logger  logr.Logger
	metrics *metrics.Metrics
}

// LightRegistry mirrors host lights into light nodes of the scene graph.
type LightRegistry interface {
	// Subscribe starts tracking a host light. The light node is created under the scene root with
	// the local transform of the light's parent transform.
	//
	// Parameters:
	//   - entity: the host light
	//
	// Returns:
	//   - error: common.ErrWrongEntityKind if entity is not a light, common.ErrAlreadyTracked if it
	//     is tracked, common.ErrUnsupportedVariant for ambient lights, or any host, device or
	//     transform failure. Nothing is tracked when an error is returned.
	Subscribe(entity host.Handle) error

	// Unsubscribe stops tracking a host light, cancelling its callbacks and destroying its node.
	//
	// Parameters:
	//   - entity: the host light
	//
	// Returns:
	//   - error: common.ErrNotFound if entity is not tracked
	Unsubscribe(entity host.Handle) error

	// OnAttributeChanged re-syncs every light parented under the notified transform.
	// Only MessageAttributeSet notifications are handled; unknown transforms are ignored.
	//
	// Parameters:
	//   - n: the transform notification
	OnAttributeChanged(n host.Notification)

	// Light returns the node mirroring a tracked light.
	//
	// Parameters:
	//   - entity: the host light
	//
	// Returns:
	//   - scenegraph.LightNode: the light node
	//   - bool: false if entity is not tracked
	Light(entity host.Handle) (scenegraph.LightNode, bool)

	// Tracked reports whether entity is tracked.
	Tracked(entity host.Handle) bool

	// Len returns the number of tracked lights.
	Len() int

	// Close unsubscribes every tracked light.
	//
	// Returns:
	//   - error: the joined unsubscribe failures
	Close() error
}

var _ LightRegistry = &lightRegistry{}

// NewLightRegistry creates an empty light registry.
//
// Parameters:
//   - h: the host to read lights and transforms from
//   - sub: the subscriber that registers change callbacks
//   - device: the device synchronized before nodes are created or destroyed
//   - graph: the scene graph that owns the light nodes
//   - options: functional options to configure the registry
//
// Returns:
//   - LightRegistry: the new registry
func NewLightRegistry(h host.Host, sub host.Subscriber, device renderer.Device, graph scenegraph.SceneGraph, options ...LightRegistryBuilderOption) LightRegistry {
	if h == nil || sub == nil || device == nil || graph == nil {
		panic("registry: NewLightRegistry requires a host, subscriber, device and scene graph")
	}
	r := &lightRegistry{
		mu:          &sync.Mutex{},
		host:        h,
		sub:         sub,
		device:      device,
		graph:       graph,
		index:       newIndex[scenegraph.LightNode](),
		pointRadius: defaultPointLightRadius,
		logger:      logr.Discard(),
		metrics:     metrics.Discard(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *lightRegistry) Subscribe(entity host.Handle) error {
	if kind := r.host.Kind(entity); kind != host.EntityKindLight {
		return fmt.Errorf("light registry: subscribe %s: %s is not a light: %w", entity, kind, common.ErrWrongEntityKind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index.get(entity); ok {
		return fmt.Errorf("light registry: subscribe %s: %w", entity, common.ErrAlreadyTracked)
	}

	data, err := r.host.Light(entity)
	if err != nil {
		return fmt.Errorf("light registry: read %s: %w", entity, err)
	}
	parent, err := r.host.Parent(entity)
	if err != nil {
		return fmt.Errorf("light registry: parent of %s: %w", entity, err)
	}
	t, err := transform.Sync(r.host, parent)
	if err != nil {
		return fmt.Errorf("light registry: subscribe %s: %w", entity, err)
	}

	node, err := r.createNode(data)
	if err != nil {
		return fmt.Errorf("light registry: subscribe %s: %w", entity, err)
	}
	transform.Apply(node, t)

	tokens, err := subscribeAll(r.sub,
		subscription{entity: parent, handler: r.OnAttributeChanged},
		subscription{entity: entity, handler: r.onLightChanged},
	)
	if err != nil {
		if derr := r.graph.DestroyNode(node); derr != nil {
			r.logger.Error(derr, "failed to destroy light node after subscription failure", "entity", entity)
		}
		return fmt.Errorf("light registry: subscribe %s: %w", entity, err)
	}

	r.index.insert(&record[scenegraph.LightNode]{
		entity:    entity,
		transform: parent,
		node:      node,
		tokens:    tokens,
	})
	r.metrics.TrackedEntities.WithLabelValues("light").Set(float64(r.index.len()))
	r.logger.V(1).Info("light subscribed", "entity", entity, "transform", parent, "type", node.Type(), "node", node.ID())
	return nil
}

func (r *lightRegistry) Unsubscribe(entity host.Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unsubscribeLocked(entity)
}

func (r *lightRegistry) OnAttributeChanged(n host.Notification) {
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
		r.logger.Error(err, "failed to sync light transform", "transform", n.Entity)
		return
	}
	for _, rec := range owners {
		transform.Apply(rec.node, t)
	}
}

func (r *lightRegistry) Light(entity host.Handle) (scenegraph.LightNode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.index.get(entity)
	if !ok {
		return nil, false
	}
	return rec.node, true
}

func (r *lightRegistry) Tracked(entity host.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index.get(entity)
	return ok
}

func (r *lightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.index.len()
}

func (r *lightRegistry) Close() error {
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

// onLightChanged applies color and shape parameter changes of a tracked light. A change of
// light kind replaces the node; a change to an unsupported kind untracks the light.
func (r *lightRegistry) onLightChanged(n host.Notification) {
	if !n.Kind.Has(host.MessageAttributeSet) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.index.get(n.Entity)
	if !ok {
		r.logger.V(1).Info("ignoring change of untracked light", "entity", n.Entity)
		return
	}
	data, err := r.host.Light(n.Entity)
	if err != nil {
		r.logger.Error(err, "failed to read light", "entity", n.Entity)
		return
	}
	lightType, err := lightTypeOf(data.Kind)
	if err != nil {
		r.logger.Error(err, "light changed to an unsupported kind, dropping it", "entity", n.Entity)
		_ = r.unsubscribeLocked(n.Entity)
		return
	}

	if lightType == rec.node.Type() {
		applyLightData(rec.node, data)
		return
	}

	node, err := r.createNode(data)
	if err != nil {
		r.logger.Error(err, "failed to recreate light node", "entity", n.Entity)
		return
	}
	node.SetPosition(vec3(rec.node.Position()))
	node.SetRotation(vec3(rec.node.Rotation()))
	node.SetScale(vec3(rec.node.Scale()))
	if err := r.graph.DestroyNode(rec.node); err != nil {
		r.logger.Error(err, "failed to destroy replaced light node", "entity", n.Entity)
	}
	rec.node = node
	r.logger.V(1).Info("light node replaced", "entity", n.Entity, "type", lightType, "node", node.ID())
}

// createNode waits for the device and creates a light node from host attributes.
// Caller holds the lock.
func (r *lightRegistry) createNode(data host.LightData) (scenegraph.LightNode, error) {
	lightType, err := lightTypeOf(data.Kind)
	if err != nil {
		return nil, err
	}
	if err := r.device.WaitForAllPreviousWork(); err != nil {
		return nil, err
	}

	options := []scenegraph.LightBuilderOption{
		scenegraph.WithColor(scaledColor(data)),
	}
	switch lightType {
	case scenegraph.LightTypePoint:
		options = append(options, scenegraph.WithRange(r.pointRadius))
	case scenegraph.LightTypeSpot:
		options = append(options, scenegraph.WithSpotAngle(data.ConeAngle))
	}
	return r.graph.CreateLight(nil, lightType, options...)
}

// unsubscribeLocked cancels the callbacks of entity and destroys its node. Caller holds the lock.
func (r *lightRegistry) unsubscribeLocked(entity host.Handle) error {
	rec, ok := r.index.get(entity)
	if !ok {
		err := fmt.Errorf("light registry: unsubscribe %s: %w", entity, common.ErrNotFound)
		r.logger.Error(err, "unsubscribe of untracked light", "entity", entity)
		return err
	}

	if err := cancelAll(r.sub, rec.tokens); err != nil {
		r.logger.Error(err, "failed to cancel light callbacks", "entity", entity)
	}
	if err := r.device.WaitForAllPreviousWork(); err != nil {
		r.logger.Error(err, "device wait failed before destroying light", "entity", entity)
	}
	if err := r.graph.DestroyNode(rec.node); err != nil {
		r.logger.Error(err, "failed to destroy light node", "entity", entity)
	}
	r.index.remove(entity)
	r.metrics.TrackedEntities.WithLabelValues("light").Set(float64(r.index.len()))
	r.logger.V(1).Info("light unsubscribed", "entity", entity)
	return nil
}

func lightTypeOf(kind host.LightKind) (scenegraph.LightType, error) {
	switch kind {
	case host.LightKindPoint:
		return scenegraph.LightTypePoint, nil
	case host.LightKindSpot:
		return scenegraph.LightTypeSpot, nil
	case host.LightKindDirectional:
		return scenegraph.LightTypeDirectional, nil
	default:
		return 0, fmt.Errorf("%s light: %w", kind, common.ErrUnsupportedVariant)
	}
}

func scaledColor(data host.LightData) (float32, float32, float32) {
	return data.Color[0] * data.Intensity, data.Color[1] * data.Intensity, data.Color[2] * data.Intensity
}

func applyLightData(node scenegraph.LightNode, data host.LightData) {
	node.SetColor(scaledColor(data))
	if node.Type() == scenegraph.LightTypeSpot {
		node.SetSpotAngle(data.ConeAngle)
	}
}

func vec3(v [3]float32) (float32, float32, float32) {
	return v[0], v[1], v[2]
}
