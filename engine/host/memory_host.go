package host

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-bridge/common"
)

// memoryEntity is a single entity of the in-memory scene.
type memoryEntity struct {
	kind      EntityKind
	parent    Handle
	transform TransformData
	light     LightData
	mesh      MeshData
	shader    ShaderData
	groups    []Handle // mesh: shading groups the mesh is a member of
	surface   Handle   // shading group: connected surface shader
}

type memoryCallback struct {
	entity  Handle
	handler ChangeHandler
}

// memoryHost is the implementation of the MemoryHost interface.
type memoryHost struct {
	mu *sync.Mutex

	nextID    uint64
	nextToken uint64

	entities       map[Handle]*memoryEntity
	callbacks      map[CallbackToken]memoryCallback
	sceneCallbacks map[CallbackToken]SceneHandler
	panels         map[string][2]int
}

// MemoryHost is a self-contained Host and Viewport that keeps its scene in memory.
// Mutations fire the registered callbacks synchronously on the calling goroutine,
// after the internal lock has been released, so handlers may query the host freely.
// It backs the replay CLI and the package tests.
type MemoryHost interface {
	Host
	Viewport

	// AddTransform creates a transform entity.
	//
	// Parameters:
	//   - t: the initial transform
	//
	// Returns:
	//   - Handle: the new transform
	AddTransform(t TransformData) Handle

	// AddLight creates a light shape under a transform and raises SceneEventNodeAdded.
	//
	// Parameters:
	//   - parent: the owning transform
	//   - l: the light attributes
	//
	// Returns:
	//   - Handle: the new light
	//   - error: error if parent is not a transform
	AddLight(parent Handle, l LightData) (Handle, error)

	// AddMesh creates a mesh shape under a transform and raises SceneEventNodeAdded.
	//
	// Parameters:
	//   - parent: the owning transform
	//   - m: the mesh attributes
	//
	// Returns:
	//   - Handle: the new mesh
	//   - error: error if parent is not a transform
	AddMesh(parent Handle, m MeshData) (Handle, error)

	// AddShader creates a surface shader and raises SceneEventNodeAdded.
	AddShader(s ShaderData) Handle

	// AddShadingGroup creates an empty shading group and raises SceneEventNodeAdded.
	AddShadingGroup() Handle

	// SetTransform replaces a transform and notifies its change callbacks.
	SetTransform(h Handle, t TransformData) error

	// SetLight replaces light attributes and notifies its change callbacks.
	SetLight(h Handle, l LightData) error

	// SetMesh replaces mesh attributes and notifies its change callbacks.
	SetMesh(h Handle, m MeshData) error

	// SetShader replaces shader attributes and notifies its change callbacks.
	SetShader(h Handle, s ShaderData) error

	// ConnectShader connects a surface shader to a shading group, replacing any previous shader,
	// and raises SceneEventConnectionBroken for the old connection followed by SceneEventConnectionMade.
	ConnectShader(shader, group Handle) error

	// DisconnectShader breaks the connection between a surface shader and a shading group.
	DisconnectShader(shader, group Handle) error

	// AssignGroup makes a mesh a member of exactly one shading group, breaking previous memberships.
	AssignGroup(mesh, group Handle) error

	// UnassignGroup removes a mesh from a shading group.
	UnassignGroup(mesh, group Handle) error

	// Remove deletes an entity. Children of a transform are removed first.
	// SceneEventNodeRemoved is raised while the entity is still queryable.
	Remove(h Handle) error

	// SetPanelSize sets the reported output size of a panel.
	SetPanelSize(panel string, width, height int)

	// Callbacks returns the number of registered change callbacks.
	Callbacks() int

	// CallbacksOn returns the number of change callbacks registered on an entity.
	CallbacksOn(h Handle) int

	// SceneCallbacks returns the number of registered scene callbacks.
	SceneCallbacks() int
}

var _ MemoryHost = &memoryHost{}

// NewMemoryHost creates an empty in-memory host.
//
// Parameters:
//   - options: functional options to configure the host
//
// Returns:
//   - MemoryHost: the new host
func NewMemoryHost(options ...MemoryHostBuilderOption) MemoryHost {
	m := &memoryHost{
		mu:             &sync.Mutex{},
		nextID:         1,
		nextToken:      1,
		entities:       make(map[Handle]*memoryEntity),
		callbacks:      make(map[CallbackToken]memoryCallback),
		sceneCallbacks: make(map[CallbackToken]SceneHandler),
		panels:         make(map[string][2]int),
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

func (m *memoryHost) Kind(h Handle) EntityKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entities[h]; ok {
		return e.kind
	}
	return EntityKindUnknown
}

func (m *memoryHost) Entities(kind EntityKind) []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Handle
	for h, e := range m.entities {
		if e.kind == kind {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b Handle) int { return cmp.Compare(a.id, b.id) })
	return out
}

func (m *memoryHost) Parent(h Handle) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(h)
	if err != nil {
		return Handle{}, err
	}
	if e.parent.IsZero() {
		return Handle{}, fmt.Errorf("%s has no parent transform: %w", h, common.ErrNotFound)
	}
	return e.parent, nil
}

func (m *memoryHost) Transform(h Handle) (TransformData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupKind(h, EntityKindTransform)
	if err != nil {
		return TransformData{}, err
	}
	return e.transform, nil
}

func (m *memoryHost) Light(h Handle) (LightData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupKind(h, EntityKindLight)
	if err != nil {
		return LightData{}, err
	}
	return e.light, nil
}

func (m *memoryHost) Mesh(h Handle) (MeshData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupKind(h, EntityKindMesh)
	if err != nil {
		return MeshData{}, err
	}
	return e.mesh, nil
}

func (m *memoryHost) Shader(h Handle) (ShaderData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupKind(h, EntityKindSurfaceShader)
	if err != nil {
		return ShaderData{}, err
	}
	s := e.shader
	s.Textures = maps.Clone(e.shader.Textures)
	return s, nil
}

func (m *memoryHost) ShadingGroups(mesh Handle) ([]Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupKind(mesh, EntityKindMesh)
	if err != nil {
		return nil, err
	}
	return slices.Clone(e.groups), nil
}

func (m *memoryHost) SurfaceShader(group Handle) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupKind(group, EntityKindShadingGroup)
	if err != nil || e.surface.IsZero() {
		return Handle{}, false
	}
	return e.surface, true
}

func (m *memoryHost) RegisterChangeCallback(entity Handle, handler ChangeHandler) (CallbackToken, error) {
	if handler == nil {
		panic("host: RegisterChangeCallback requires a non-nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookup(entity); err != nil {
		return CallbackToken{}, err
	}
	token := TokenOf(m.nextToken)
	m.nextToken++
	m.callbacks[token] = memoryCallback{entity: entity, handler: handler}
	return token, nil
}

func (m *memoryHost) RegisterSceneCallback(handler SceneHandler) (CallbackToken, error) {
	if handler == nil {
		panic("host: RegisterSceneCallback requires a non-nil handler")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	token := TokenOf(m.nextToken)
	m.nextToken++
	m.sceneCallbacks[token] = handler
	return token, nil
}

func (m *memoryHost) Deregister(token CallbackToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.callbacks[token]; ok {
		delete(m.callbacks, token)
		return nil
	}
	if _, ok := m.sceneCallbacks[token]; ok {
		delete(m.sceneCallbacks, token)
		return nil
	}
	return fmt.Errorf("callback token %d: %w", token.id, common.ErrNotFound)
}

func (m *memoryHost) PanelSize(panel string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	size, ok := m.panels[panel]
	if !ok {
		return 0, 0, fmt.Errorf("panel %q: %w", panel, common.ErrNotFound)
	}
	return size[0], size[1], nil
}

func (m *memoryHost) SetPanelSize(panel string, width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panels[panel] = [2]int{width, height}
}

func (m *memoryHost) AddTransform(t TransformData) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(&memoryEntity{kind: EntityKindTransform, transform: t})
}

func (m *memoryHost) AddLight(parent Handle, l LightData) (Handle, error) {
	return m.addShape(parent, &memoryEntity{kind: EntityKindLight, light: l})
}

func (m *memoryHost) AddMesh(parent Handle, md MeshData) (Handle, error) {
	return m.addShape(parent, &memoryEntity{kind: EntityKindMesh, mesh: md})
}

func (m *memoryHost) AddShader(s ShaderData) Handle {
	s.Textures = maps.Clone(s.Textures)
	m.mu.Lock()
	h := m.insert(&memoryEntity{kind: EntityKindSurfaceShader, shader: s})
	m.mu.Unlock()
	m.emitScene(SceneEvent{Kind: SceneEventNodeAdded, Node: h})
	return h
}

func (m *memoryHost) AddShadingGroup() Handle {
	m.mu.Lock()
	h := m.insert(&memoryEntity{kind: EntityKindShadingGroup})
	m.mu.Unlock()
	m.emitScene(SceneEvent{Kind: SceneEventNodeAdded, Node: h})
	return h
}

func (m *memoryHost) SetTransform(h Handle, t TransformData) error {
	m.mu.Lock()
	e, err := m.lookupKind(h, EntityKindTransform)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.transform = t
	m.mu.Unlock()
	m.emitChange(Notification{Kind: MessageAttributeSet, Entity: h, Attribute: "xform"})
	return nil
}

func (m *memoryHost) SetLight(h Handle, l LightData) error {
	m.mu.Lock()
	e, err := m.lookupKind(h, EntityKindLight)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.light = l
	m.mu.Unlock()
	m.emitChange(Notification{Kind: MessageAttributeSet, Entity: h, Attribute: "color"})
	return nil
}

func (m *memoryHost) SetMesh(h Handle, md MeshData) error {
	m.mu.Lock()
	e, err := m.lookupKind(h, EntityKindMesh)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.mesh = md
	m.mu.Unlock()
	m.emitChange(Notification{Kind: MessageAttributeSet, Entity: h, Attribute: "outMesh"})
	return nil
}

func (m *memoryHost) SetShader(h Handle, s ShaderData) error {
	m.mu.Lock()
	e, err := m.lookupKind(h, EntityKindSurfaceShader)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	e.shader = s
	e.shader.Textures = maps.Clone(s.Textures)
	m.mu.Unlock()
	m.emitChange(Notification{Kind: MessageAttributeSet, Entity: h, Attribute: "outColor"})
	return nil
}

func (m *memoryHost) ConnectShader(shader, group Handle) error {
	m.mu.Lock()
	if _, err := m.lookupKind(shader, EntityKindSurfaceShader); err != nil {
		m.mu.Unlock()
		return err
	}
	g, err := m.lookupKind(group, EntityKindShadingGroup)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	previous := g.surface
	g.surface = shader
	m.mu.Unlock()

	if previous == shader {
		return nil
	}
	if !previous.IsZero() {
		m.emitScene(SceneEvent{Kind: SceneEventConnectionBroken, Node: previous, Other: group})
	}
	m.emitScene(SceneEvent{Kind: SceneEventConnectionMade, Node: shader, Other: group})
	return nil
}

func (m *memoryHost) DisconnectShader(shader, group Handle) error {
	m.mu.Lock()
	g, err := m.lookupKind(group, EntityKindShadingGroup)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if g.surface != shader {
		m.mu.Unlock()
		return fmt.Errorf("%s is not connected to %s: %w", shader, group, common.ErrNotFound)
	}
	g.surface = Handle{}
	m.mu.Unlock()
	m.emitScene(SceneEvent{Kind: SceneEventConnectionBroken, Node: shader, Other: group})
	return nil
}

func (m *memoryHost) AssignGroup(mesh, group Handle) error {
	m.mu.Lock()
	e, err := m.lookupKind(mesh, EntityKindMesh)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if _, err := m.lookupKind(group, EntityKindShadingGroup); err != nil {
		m.mu.Unlock()
		return err
	}
	previous := slices.Clone(e.groups)
	e.groups = []Handle{group}
	m.mu.Unlock()

	for _, old := range previous {
		if old == group {
			return nil
		}
		m.emitScene(SceneEvent{Kind: SceneEventConnectionBroken, Node: mesh, Other: old})
	}
	m.emitScene(SceneEvent{Kind: SceneEventConnectionMade, Node: mesh, Other: group})
	return nil
}

func (m *memoryHost) UnassignGroup(mesh, group Handle) error {
	m.mu.Lock()
	e, err := m.lookupKind(mesh, EntityKindMesh)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	idx := slices.Index(e.groups, group)
	if idx < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%s is not a member of %s: %w", mesh, group, common.ErrNotFound)
	}
	e.groups = slices.Delete(e.groups, idx, idx+1)
	m.mu.Unlock()
	m.emitScene(SceneEvent{Kind: SceneEventConnectionBroken, Node: mesh, Other: group})
	return nil
}

func (m *memoryHost) Remove(h Handle) error {
	m.mu.Lock()
	e, err := m.lookup(h)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	var children []Handle
	if e.kind == EntityKindTransform {
		for ch, ce := range m.entities {
			if ce.parent == h {
				children = append(children, ch)
			}
		}
		slices.SortFunc(children, func(a, b Handle) int { return cmp.Compare(a.id, b.id) })
	}
	m.mu.Unlock()

	for _, ch := range children {
		if err := m.Remove(ch); err != nil {
			return err
		}
	}

	m.emitScene(SceneEvent{Kind: SceneEventNodeRemoved, Node: h})

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entities, h)
	for _, other := range m.entities {
		if other.surface == h {
			other.surface = Handle{}
		}
		if idx := slices.Index(other.groups, h); idx >= 0 {
			other.groups = slices.Delete(other.groups, idx, idx+1)
		}
	}
	return nil
}

func (m *memoryHost) Callbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.callbacks)
}

func (m *memoryHost) CallbacksOn(h Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, cb := range m.callbacks {
		if cb.entity == h {
			n++
		}
	}
	return n
}

func (m *memoryHost) SceneCallbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sceneCallbacks)
}

// addShape inserts a light or mesh under a transform and raises SceneEventNodeAdded.
func (m *memoryHost) addShape(parent Handle, e *memoryEntity) (Handle, error) {
	m.mu.Lock()
	if _, err := m.lookupKind(parent, EntityKindTransform); err != nil {
		m.mu.Unlock()
		return Handle{}, err
	}
	e.parent = parent
	h := m.insert(e)
	m.mu.Unlock()
	m.emitScene(SceneEvent{Kind: SceneEventNodeAdded, Node: h})
	return h, nil
}

// insert stores an entity under a fresh handle. Caller holds the lock.
func (m *memoryHost) insert(e *memoryEntity) Handle {
	h := HandleOf(m.nextID)
	m.nextID++
	m.entities[h] = e
	return h
}

// lookup returns an entity by handle. Caller holds the lock.
func (m *memoryHost) lookup(h Handle) (*memoryEntity, error) {
	e, ok := m.entities[h]
	if !ok {
		return nil, fmt.Errorf("%s: %w", h, common.ErrNotFound)
	}
	return e, nil
}

// lookupKind returns an entity by handle and checks its kind. Caller holds the lock.
func (m *memoryHost) lookupKind(h Handle, kind EntityKind) (*memoryEntity, error) {
	e, err := m.lookup(h)
	if err != nil {
		return nil, err
	}
	if e.kind != kind {
		return nil, fmt.Errorf("%s is a %s, not a %s: %w", h, e.kind, kind, common.ErrWrongEntityKind)
	}
	return e, nil
}

// emitChange invokes every change callback registered on n.Entity in registration order.
func (m *memoryHost) emitChange(n Notification) {
	m.mu.Lock()
	var tokens []CallbackToken
	for token, cb := range m.callbacks {
		if cb.entity == n.Entity {
			tokens = append(tokens, token)
		}
	}
	slices.SortFunc(tokens, func(a, b CallbackToken) int { return cmp.Compare(a.id, b.id) })
	handlers := make([]ChangeHandler, 0, len(tokens))
	for _, token := range tokens {
		handlers = append(handlers, m.callbacks[token].handler)
	}
	m.mu.Unlock()

	for _, handler := range handlers {
		handler(n)
	}
}

// emitScene invokes every scene callback in registration order.
func (m *memoryHost) emitScene(ev SceneEvent) {
	m.mu.Lock()
	tokens := slices.Collect(maps.Keys(m.sceneCallbacks))
	slices.SortFunc(tokens, func(a, b CallbackToken) int { return cmp.Compare(a.id, b.id) })
	handlers := make([]SceneHandler, 0, len(tokens))
	for _, token := range tokens {
		handlers = append(handlers, m.sceneCallbacks[token])
	}
	m.mu.Unlock()

	for _, handler := range handlers {
		handler(ev)
	}
}
