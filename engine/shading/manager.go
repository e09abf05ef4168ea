// Package shading maintains the relations between host surface shaders, shading groups and
// meshes, and resolves them to one material per mesh.
//
// A surface shader owns exactly one material. A shading group belongs to at most one shader
// relation at a time, and a mesh is bound to at most one shading group. A mesh without a
// binding, or bound to a group without a shader, renders with the DEFAULT material.
package shading

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
	"github.com/Carmen-Shannon/oxy-bridge/engine/metrics"
	"github.com/Carmen-Shannon/oxy-bridge/engine/renderer"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
	"github.com/Carmen-Shannon/oxy-bridge/engine/texture"
	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/sets"
)

// ModelResolver finds the scene node mirroring a host mesh.
type ModelResolver interface {
	Model(mesh host.Handle) (scenegraph.MeshNode, bool)
}

// Relation is a snapshot of a shader relation. It is not updated by later mutations.
type Relation struct {
	Shader   host.Handle
	Material material.Handle
	// Groups lists the shading groups of the relation ordered by ID.
	Groups []host.Handle
}

// relation is the live state behind a Relation.
type relation struct {
	shader   host.Handle
	material material.Handle
	groups   sets.Set[host.Handle]
	token    host.CallbackToken
}

func (r *relation) snapshot() Relation {
	return Relation{Shader: r.shader, Material: r.material, Groups: sortedHandles(r.groups.UnsortedList())}
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu *sync.Mutex

	host      host.Host
	sub       host.Subscriber
	device    renderer.Device
	materials material.Pool
	textures  texture.Cache
	models    ModelResolver

	relations  map[host.Handle]*relation     // shader -> relation
	groupIndex map[host.Handle]host.Handle     // group -> shader
	byMaterial map[material.Handle]host.Handle // material -> shader
	bindings   map[host.Handle]host.Handle     // mesh -> group
	applied    map[host.Handle]material.Handle // mesh -> non-default material last applied

	logger  logr.Logger
	metrics *metrics.Metrics
}

// Manager owns the shader relations and mesh bindings of the scene and the materials created
// for them. Every material change that could be observed by the GPU is preceded by a device
// wait.
type Manager interface {
	// ConnectShaderToGroup adds group to the relation of shader, creating the relation and its
	// material on first use. A group already owned by another shader is moved.
	//
	// Parameters:
	//   - shader: the host surface shader
	//   - group: the host shading group
	//   - apply: rebind every mesh bound to group to the shader's material
	//
	// Returns:
	//   - material.Handle: the shader's material
	//   - error: common.ErrWrongEntityKind for handles of the wrong kind, or a device failure
	ConnectShaderToGroup(shader, group host.Handle, apply bool) (material.Handle, error)

	// DisconnectShaderFromGroup removes group from the relation of shader. Meshes keep their
	// material. Unknown pairs are a no-op.
	//
	// Parameters:
	//   - shader: the host surface shader
	//   - group: the host shading group
	DisconnectShaderFromGroup(shader, group host.Handle)

	// ConnectMeshToGroup binds mesh to group, replacing any previous binding, and applies the
	// resolved material to every primitive of the mesh.
	//
	// Parameters:
	//   - mesh: the host mesh
	//   - group: the host shading group
	//   - mat: the material to apply, nil to resolve it from group
	//
	// Returns:
	//   - error: a device failure
	ConnectMeshToGroup(mesh, group host.Handle, mat *material.Handle) error

	// DisconnectMeshFromGroup removes the binding of mesh if it is bound to group.
	//
	// Parameters:
	//   - mesh: the host mesh
	//   - group: the host shading group
	//   - reset: re-apply the DEFAULT material to the mesh
	//
	// Returns:
	//   - bool: true if a binding was removed
	DisconnectMeshFromGroup(mesh, group host.Handle, reset bool) bool

	// RemoveShader resets every mesh bound to one of the shader's groups to DEFAULT, releases the
	// material's textures and destroys the relation together with its material.
	//
	// Parameters:
	//   - shader: the host surface shader
	//
	// Returns:
	//   - error: common.ErrNotFound if shader has no relation, or a device failure
	RemoveShader(shader host.Handle) error

	// CreateMaterial connects shader to group and binds mesh to group with the shader's material.
	//
	// Parameters:
	//   - mesh: the host mesh
	//   - group: the host shading group
	//   - shader: the host surface shader
	//
	// Returns:
	//   - material.Handle: the shader's material
	//   - error: error from ConnectShaderToGroup or ConnectMeshToGroup
	CreateMaterial(mesh, group, shader host.Handle) (material.Handle, error)

	// SyncShader copies the host shader attributes onto the shader's material. Texture slots are
	// acquired and released through the texture cache. Unsupported shader types are ignored.
	//
	// Parameters:
	//   - shader: the host surface shader
	//
	// Returns:
	//   - error: common.ErrNotFound if shader has no relation, or a host, device or texture failure
	SyncShader(shader host.Handle) error

	// FindRelationByShader returns the relation of shader.
	FindRelationByShader(shader host.Handle) (Relation, error)

	// FindRelationByGroup returns the relation group belongs to.
	FindRelationByGroup(group host.Handle) (Relation, error)

	// FindRelationByMaterial returns the relation owning a material.
	FindRelationByMaterial(h material.Handle) (Relation, error)

	// ResolveMaterial returns the material mesh renders with.
	//
	// Parameters:
	//   - mesh: the host mesh
	//
	// Returns:
	//   - material.Handle: the bound group's material, DEFAULT if unbound or the group has no shader
	ResolveMaterial(mesh host.Handle) material.Handle

	// Binding returns the shading group mesh is bound to.
	Binding(mesh host.Handle) (host.Handle, bool)

	// MeshesInGroup lists the meshes bound to group ordered by ID.
	MeshesInGroup(group host.Handle) []host.Handle

	// Default returns the DEFAULT material.
	Default() material.Handle

	// Len returns the number of shader relations.
	Len() int

	// Bindings returns the number of mesh bindings.
	Bindings() int

	// Close removes every relation and binding.
	//
	// Returns:
	//   - error: the joined removal failures
	Close() error
}

var _ Manager = &manager{}

// NewManager creates an empty shading manager.
//
// Parameters:
//   - h: the host to read shaders from
//   - sub: the subscriber that registers shader change callbacks
//   - device: the device synchronized before materials change
//   - materials: the pool materials are created in
//   - textures: the cache texture slots are acquired from
//   - models: resolves host meshes to scene nodes
//   - options: functional options to configure the manager
//
// Returns:
//   - Manager: the new manager
func NewManager(h host.Host, sub host.Subscriber, device renderer.Device, materials material.Pool, textures texture.Cache, models ModelResolver, options ...ManagerBuilderOption) Manager {
	if h == nil || sub == nil || device == nil || materials == nil || textures == nil || models == nil {
		panic("shading: NewManager requires a host, subscriber, device, material pool, texture cache and model resolver")
	}
	m := &manager{
		mu:         &sync.Mutex{},
		host:       h,
		sub:        sub,
		device:     device,
		materials:  materials,
		textures:   textures,
		models:     models,
		relations:  make(map[host.Handle]*relation),
		groupIndex: make(map[host.Handle]host.Handle),
		byMaterial: make(map[material.Handle]host.Handle),
		bindings:   make(map[host.Handle]host.Handle),
		applied:    make(map[host.Handle]material.Handle),
		logger:     logr.Discard(),
		metrics:    metrics.Discard(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *manager) ConnectShaderToGroup(shader, group host.Handle, apply bool) (material.Handle, error) {
	if err := m.expectKind(shader, host.EntityKindSurfaceShader); err != nil {
		return material.Handle{}, fmt.Errorf("shading: connect shader: %w", err)
	}
	if err := m.expectKind(group, host.EntityKindShadingGroup); err != nil {
		return material.Handle{}, fmt.Errorf("shading: connect shader: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rel, ok := m.relations[shader]
	if !ok {
		var err error
		if rel, err = m.createRelationLocked(shader); err != nil {
			return material.Handle{}, err
		}
	}

	if owner, ok := m.groupIndex[group]; ok && owner != shader {
		if previous, ok := m.relations[owner]; ok {
			previous.groups.Delete(group)
			m.logger.V(1).Info("shading group moved", "group", group, "from", owner, "to", shader)
		}
	}
	rel.groups.Insert(group)
	m.groupIndex[group] = shader

	if apply {
		if err := m.applyToGroupLocked(group, rel.material); err != nil {
			return rel.material, err
		}
	}
	m.logger.V(1).Info("shader connected to group", "shader", shader, "group", group, "material", rel.material)
	return rel.material, nil
}

func (m *manager) DisconnectShaderFromGroup(shader, group host.Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rel, ok := m.relations[shader]
	if !ok || !rel.groups.Has(group) {
		return
	}
	rel.groups.Delete(group)
	delete(m.groupIndex, group)
	m.logger.V(1).Info("shader disconnected from group", "shader", shader, "group", group)
}

func (m *manager) ConnectMeshToGroup(mesh, group host.Handle, mat *material.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bindings[mesh] = group
	m.metrics.MeshBindings.Set(float64(len(m.bindings)))

	h := m.resolveGroupLocked(group)
	if mat != nil {
		h = *mat
	}
	if err := m.applyLocked(h, mesh); err != nil {
		return fmt.Errorf("shading: connect %s to %s: %w", mesh, group, err)
	}
	m.logger.V(1).Info("mesh connected to group", "mesh", mesh, "group", group, "material", h)
	return nil
}

func (m *manager) DisconnectMeshFromGroup(mesh, group host.Handle, reset bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bound, ok := m.bindings[mesh]; !ok || bound != group {
		return false
	}
	delete(m.bindings, mesh)
	m.metrics.MeshBindings.Set(float64(len(m.bindings)))

	if reset {
		if err := m.applyLocked(m.materials.Default(), mesh); err != nil {
			m.logger.Error(err, "failed to reset mesh material", "mesh", mesh)
		}
	}
	m.logger.V(1).Info("mesh disconnected from group", "mesh", mesh, "group", group, "reset", reset)
	return true
}

func (m *manager) RemoveShader(shader host.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeShaderLocked(shader)
}

func (m *manager) CreateMaterial(mesh, group, shader host.Handle) (material.Handle, error) {
	h, err := m.ConnectShaderToGroup(shader, group, true)
	if err != nil {
		return material.Handle{}, err
	}
	if err := m.ConnectMeshToGroup(mesh, group, &h); err != nil {
		return h, err
	}
	return h, nil
}

func (m *manager) SyncShader(shader host.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rel, ok := m.relations[shader]
	if !ok {
		return fmt.Errorf("shading: sync %s: %w", shader, common.ErrNotFound)
	}
	return m.syncLocked(rel)
}

func (m *manager) FindRelationByShader(shader host.Handle) (Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.relations[shader]
	if !ok {
		return Relation{}, fmt.Errorf("shading: relation of shader %s: %w", shader, common.ErrNotFound)
	}
	return rel.snapshot(), nil
}

func (m *manager) FindRelationByGroup(group host.Handle) (Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shader, ok := m.groupIndex[group]
	if !ok {
		return Relation{}, fmt.Errorf("shading: relation of group %s: %w", group, common.ErrNotFound)
	}
	return m.relations[shader].snapshot(), nil
}

func (m *manager) FindRelationByMaterial(h material.Handle) (Relation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shader, ok := m.byMaterial[h]
	if !ok {
		return Relation{}, fmt.Errorf("shading: relation of %s: %w", h, common.ErrNotFound)
	}
	return m.relations[shader].snapshot(), nil
}

func (m *manager) ResolveMaterial(mesh host.Handle) material.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.bindings[mesh]
	if !ok {
		return m.materials.Default()
	}
	return m.resolveGroupLocked(group)
}

func (m *manager) Binding(mesh host.Handle) (host.Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	group, ok := m.bindings[mesh]
	return group, ok
}

func (m *manager) MeshesInGroup(group host.Handle) []host.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meshesBoundLocked(group)
}

func (m *manager) Default() material.Handle {
	return m.materials.Default()
}

func (m *manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.relations)
}

func (m *manager) Bindings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bindings)
}

func (m *manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	shaders := make([]host.Handle, 0, len(m.relations))
	for shader := range m.relations {
		shaders = append(shaders, shader)
	}
	var errs []error
	for _, shader := range sortedHandles(shaders) {
		if err := m.removeShaderLocked(shader); err != nil {
			errs = append(errs, err)
		}
	}
	clear(m.bindings)
	clear(m.applied)
	m.metrics.MeshBindings.Set(0)
	return errors.Join(errs...)
}

// onShaderChanged re-syncs the material of a shader after a host attribute change.
func (m *manager) onShaderChanged(n host.Notification) {
	if !n.Kind.Has(host.MessageAttributeSet) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rel, ok := m.relations[n.Entity]
	if !ok {
		m.logger.V(1).Info("ignoring change of untracked shader", "shader", n.Entity)
		return
	}
	if err := m.syncLocked(rel); err != nil {
		m.logger.Error(err, "failed to sync shader", "shader", n.Entity)
	}
}

// createRelationLocked allocates the material of shader and subscribes to its changes.
// Caller holds the lock.
func (m *manager) createRelationLocked(shader host.Handle) (*relation, error) {
	h := m.materials.Create(material.WithName(shader.String()))
	token, err := m.sub.Subscribe(shader, m.onShaderChanged)
	if err != nil {
		if derr := m.materials.Destroy(h); derr != nil {
			m.logger.Error(derr, "failed to destroy material after subscription failure", "material", h)
		}
		return nil, fmt.Errorf("shading: subscribe %s: %w", shader, err)
	}

	rel := &relation{shader: shader, material: h, groups: sets.New[host.Handle](), token: token}
	m.relations[shader] = rel
	m.byMaterial[h] = shader
	m.metrics.ShadingRelations.Set(float64(len(m.relations)))

	if err := m.syncLocked(rel); err != nil {
		m.logger.Error(err, "failed to sync new shader", "shader", shader)
	}
	m.logger.Info("shader relation created", "shader", shader, "material", h)
	return rel, nil
}

// removeShaderLocked tears a relation down. Caller holds the lock.
func (m *manager) removeShaderLocked(shader host.Handle) error {
	rel, ok := m.relations[shader]
	if !ok {
		err := fmt.Errorf("shading: remove %s: %w", shader, common.ErrNotFound)
		m.logger.Error(err, "remove of untracked shader", "shader", shader)
		return err
	}
	if err := m.device.WaitForAllPreviousWork(); err != nil {
		return fmt.Errorf("shading: remove %s: %w", shader, err)
	}

	if err := m.sub.Cancel(rel.token); err != nil {
		m.logger.Error(err, "failed to cancel shader callback", "shader", shader)
	}

	// Meshes are defaulted before the material goes away.
	defaulted := 0
	for _, group := range sortedHandles(rel.groups.UnsortedList()) {
		for _, mesh := range m.meshesBoundLocked(group) {
			m.setModelMaterialLocked(mesh, m.materials.Default())
			delete(m.bindings, mesh)
			defaulted++
		}
		delete(m.groupIndex, group)
	}
	// Meshes of groups disconnected from the shader keep its material until rebound.
	for _, mesh := range m.meshesCarryingLocked(rel.material) {
		m.setModelMaterialLocked(mesh, m.materials.Default())
		defaulted++
	}

	if mat, ok := m.materials.Get(rel.material); ok {
		for _, slot := range common.TextureSlots {
			if binding, ok := mat.ClearTexture(slot); ok {
				m.textures.Release(binding.Key)
			}
		}
	}
	if err := m.materials.Destroy(rel.material); err != nil {
		m.logger.Error(err, "failed to destroy shader material", "shader", shader, "material", rel.material)
	}

	delete(m.byMaterial, rel.material)
	delete(m.relations, shader)
	m.metrics.ShadingRelations.Set(float64(len(m.relations)))
	m.metrics.MeshBindings.Set(float64(len(m.bindings)))
	m.logger.Info("shader relation removed", "shader", shader, "material", rel.material, "defaultedMeshes", defaulted)
	return nil
}

// syncLocked copies host shader attributes onto the relation's material. Caller holds the lock.
func (m *manager) syncLocked(rel *relation) error {
	data, err := m.host.Shader(rel.shader)
	if err != nil {
		return fmt.Errorf("shading: read %s: %w", rel.shader, err)
	}
	if data.Type == host.ShaderTypeUnsupported {
		m.logger.Info("ignoring unsupported surface shader", "shader", rel.shader)
		return nil
	}
	mat, ok := m.materials.Get(rel.material)
	if !ok {
		return fmt.Errorf("shading: material %s of %s: %w", rel.material, rel.shader, common.ErrNotFound)
	}

	mat.SetBaseColor(data.Color)
	mat.SetMetallic(data.Metallic)
	mat.SetRoughness(data.Roughness)
	return m.syncTexturesLocked(rel, mat, data.Textures)
}

// syncTexturesLocked swaps the texture slots of mat to match textures. New keys are acquired
// together before any slot changes, so a failed load leaves the material untouched.
func (m *manager) syncTexturesLocked(rel *relation, mat material.Material, textures map[common.TextureSlot]string) error {
	var (
		changed []common.TextureSlot
		keys    []string
	)
	for _, slot := range common.TextureSlots {
		current, has := mat.Texture(slot)
		key := textures[slot]
		if (!has && key == "") || (has && current.Key == key) {
			continue
		}
		changed = append(changed, slot)
		if key != "" {
			keys = append(keys, key)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	if err := m.device.WaitForAllPreviousWork(); err != nil {
		return fmt.Errorf("shading: sync textures of %s: %w", rel.shader, err)
	}
	handles, err := m.textures.AcquireMany(keys...)
	if err != nil {
		return fmt.Errorf("shading: sync textures of %s: %w", rel.shader, err)
	}

	next := 0
	for _, slot := range changed {
		var previous material.TextureBinding
		var had bool
		if key := textures[slot]; key != "" {
			previous, had = mat.SetTexture(slot, material.TextureBinding{Key: key, Handle: handles[next]})
			next++
		} else {
			previous, had = mat.ClearTexture(slot)
		}
		if had {
			m.textures.Release(previous.Key)
		}
		m.logger.V(1).Info("texture slot updated", "shader", rel.shader, "slot", slot, "key", textures[slot])
	}
	return nil
}

// applyToGroupLocked applies h to every mesh bound to group. Caller holds the lock.
func (m *manager) applyToGroupLocked(group host.Handle, h material.Handle) error {
	meshes := m.meshesBoundLocked(group)
	if len(meshes) == 0 {
		return nil
	}
	if err := m.device.WaitForAllPreviousWork(); err != nil {
		return fmt.Errorf("shading: rebind group %s: %w", group, err)
	}
	for _, mesh := range meshes {
		m.setModelMaterialLocked(mesh, h)
	}
	return nil
}

// applyLocked waits for the device and applies h to mesh. Caller holds the lock.
func (m *manager) applyLocked(h material.Handle, mesh host.Handle) error {
	if err := m.device.WaitForAllPreviousWork(); err != nil {
		return err
	}
	m.setModelMaterialLocked(mesh, h)
	return nil
}

// setModelMaterialLocked overwrites the material of every primitive of mesh. Meshes without
// a scene node are skipped. Caller holds the lock.
func (m *manager) setModelMaterialLocked(mesh host.Handle, h material.Handle) {
	node, ok := m.models.Model(mesh)
	if !ok {
		delete(m.applied, mesh)
		m.logger.V(1).Info("no model for mesh, material not applied", "mesh", mesh, "material", h)
		return
	}
	node.Model().SetMaterial(h)
	if h == m.materials.Default() {
		delete(m.applied, mesh)
	} else {
		m.applied[mesh] = h
	}
}

// meshesCarryingLocked lists the meshes whose model still renders with h, ordered by ID.
// Entries of meshes without a scene node are dropped. Caller holds the lock.
func (m *manager) meshesCarryingLocked(h material.Handle) []host.Handle {
	var meshes []host.Handle
	for mesh, applied := range m.applied {
		if applied != h {
			continue
		}
		node, ok := m.models.Model(mesh)
		if !ok {
			delete(m.applied, mesh)
			continue
		}
		if node.Model().Material() == h {
			meshes = append(meshes, mesh)
		}
	}
	return sortedHandles(meshes)
}

// resolveGroupLocked returns the material of the shader owning group, DEFAULT if none.
// Caller holds the lock.
func (m *manager) resolveGroupLocked(group host.Handle) material.Handle {
	if shader, ok := m.groupIndex[group]; ok {
		return m.relations[shader].material
	}
	return m.materials.Default()
}

// meshesBoundLocked lists the meshes bound to group ordered by ID. Caller holds the lock.
func (m *manager) meshesBoundLocked(group host.Handle) []host.Handle {
	var meshes []host.Handle
	for mesh, bound := range m.bindings {
		if bound == group {
			meshes = append(meshes, mesh)
		}
	}
	return sortedHandles(meshes)
}

func (m *manager) expectKind(h host.Handle, kind host.EntityKind) error {
	if actual := m.host.Kind(h); actual != kind {
		return fmt.Errorf("%s is a %s, not a %s: %w", h, actual, kind, common.ErrWrongEntityKind)
	}
	return nil
}

func sortedHandles(handles []host.Handle) []host.Handle {
	slices.SortFunc(handles, func(a, b host.Handle) int { return cmp.Compare(a.ID(), b.ID()) })
	return handles
}
