// Package host describes the externally owned authoring-tool scene graph that the bridge mirrors.
// The host owns every entity; the bridge only ever sees opaque handles, attribute snapshots and
// change notifications delivered through registered callbacks.
package host

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-bridge/common"
)

// Handle is an opaque identity for a host entity (transform, light, mesh, surface shader or shading group).
// Handles are comparable and may be used as map keys, but carry no ordering.
type Handle struct {
	id uint64
}

// HandleOf wraps a host-assigned identifier into a Handle.
//
// Parameters:
//   - id: the host identifier, zero is reserved for "no entity"
//
// Returns:
//   - Handle: the wrapped handle
func HandleOf(id uint64) Handle {
	return Handle{id: id}
}

// ID returns the host identifier wrapped by the handle.
func (h Handle) ID() uint64 {
	return h.id
}

// IsZero reports whether the handle refers to no entity.
func (h Handle) IsZero() bool {
	return h.id == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("entity#%d", h.id)
}

// EntityKind classifies a host entity.
type EntityKind int

const (
	// EntityKindUnknown is returned for handles the host does not know.
	EntityKindUnknown EntityKind = iota
	// EntityKindTransform is a DAG transform node carrying translation, rotation and scale.
	EntityKindTransform
	// EntityKindLight is a light shape parented under a transform.
	EntityKindLight
	// EntityKindMesh is a mesh shape parented under a transform.
	EntityKindMesh
	// EntityKindSurfaceShader is a surface shader node (lambert, phong, ...).
	EntityKindSurfaceShader
	// EntityKindShadingGroup binds a surface shader to the meshes it renders.
	EntityKindShadingGroup
)

func (k EntityKind) String() string {
	switch k {
	case EntityKindTransform:
		return "transform"
	case EntityKindLight:
		return "light"
	case EntityKindMesh:
		return "mesh"
	case EntityKindSurfaceShader:
		return "surfaceShader"
	case EntityKindShadingGroup:
		return "shadingGroup"
	default:
		return "unknown"
	}
}

// LightKind identifies the sub-kind of a host light.
type LightKind int

const (
	// LightKindAmbient is recognized but has no internal counterpart.
	LightKindAmbient LightKind = iota
	// LightKindPoint emits in all directions from the transform position.
	LightKindPoint
	// LightKindSpot emits in a cone along the transform's forward axis.
	LightKindSpot
	// LightKindDirectional has no position, only direction.
	LightKindDirectional
)

func (k LightKind) String() string {
	switch k {
	case LightKindAmbient:
		return "ambient"
	case LightKindPoint:
		return "point"
	case LightKindSpot:
		return "spot"
	case LightKindDirectional:
		return "directional"
	default:
		return fmt.Sprintf("LightKind(%d)", int(k))
	}
}

// ParseLightKind converts a light kind name ("point", "spot", ...) into a LightKind.
// Matching is case-insensitive.
//
// Parameters:
//   - name: the kind name
//
// Returns:
//   - LightKind: the parsed kind
//   - bool: false if the name does not match any kind
func ParseLightKind(name string) (LightKind, bool) {
	for k := LightKindAmbient; k <= LightKindDirectional; k++ {
		if strings.EqualFold(k.String(), name) {
			return k, true
		}
	}
	return 0, false
}

// ShaderType identifies the surface shader model of a host shader node.
type ShaderType int

const (
	// ShaderTypeUnsupported is any shader model the bridge cannot translate.
	ShaderTypeUnsupported ShaderType = iota - 1
	// ShaderTypeLambert is a diffuse-only shader.
	ShaderTypeLambert
	// ShaderTypePhong is a diffuse plus specular shader.
	ShaderTypePhong
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeLambert:
		return "lambert"
	case ShaderTypePhong:
		return "phong"
	default:
		return "unsupported"
	}
}

// ParseShaderType converts a shader model name into a ShaderType. Unknown names yield
// ShaderTypeUnsupported, mirroring how the host reports shader models the bridge cannot translate.
func ParseShaderType(name string) ShaderType {
	for t := ShaderTypeLambert; t <= ShaderTypePhong; t++ {
		if strings.EqualFold(t.String(), name) {
			return t
		}
	}
	return ShaderTypeUnsupported
}

// MessageKind is a bit set describing what changed in an attribute notification.
type MessageKind uint32

const (
	// MessageAttributeSet is raised when an attribute value was set.
	MessageAttributeSet MessageKind = 1 << iota
	// MessageAttributeEval is raised when an attribute was re-evaluated without a new value.
	MessageAttributeEval
	// MessageConnectionMade is raised when a connection to the attribute was made.
	MessageConnectionMade
	// MessageConnectionBroken is raised when a connection to the attribute was broken.
	MessageConnectionBroken
)

// Has reports whether every bit of flag is set in k.
func (k MessageKind) Has(flag MessageKind) bool {
	return k&flag == flag
}

// Notification is a single attribute-change message delivered to a ChangeHandler.
type Notification struct {
	// Kind flags the type of change.
	Kind MessageKind
	// Entity is the entity the callback was registered on.
	Entity Handle
	// Attribute names the attribute that changed, if known.
	Attribute string
}

// ChangeHandler receives attribute notifications for a single entity.
type ChangeHandler func(Notification)

// CallbackToken identifies a registered callback so it can be deregistered later.
type CallbackToken struct {
	id uint64
}

// TokenOf wraps a host-assigned callback identifier.
func TokenOf(id uint64) CallbackToken {
	return CallbackToken{id: id}
}

// ID returns the host identifier of the callback.
func (t CallbackToken) ID() uint64 {
	return t.id
}

// Valid reports whether the token refers to a registered callback.
func (t CallbackToken) Valid() bool {
	return t.id != 0
}

// SceneEventKind identifies a structural change of the host scene.
type SceneEventKind int

const (
	// SceneEventNodeAdded is raised after an entity was created.
	SceneEventNodeAdded SceneEventKind = iota
	// SceneEventNodeRemoved is raised before an entity is deleted.
	SceneEventNodeRemoved
	// SceneEventConnectionMade is raised when Node was connected to Other.
	SceneEventConnectionMade
	// SceneEventConnectionBroken is raised when the connection from Node to Other was broken.
	SceneEventConnectionBroken
)

func (k SceneEventKind) String() string {
	switch k {
	case SceneEventNodeAdded:
		return "nodeAdded"
	case SceneEventNodeRemoved:
		return "nodeRemoved"
	case SceneEventConnectionMade:
		return "connectionMade"
	case SceneEventConnectionBroken:
		return "connectionBroken"
	default:
		return fmt.Sprintf("SceneEventKind(%d)", int(k))
	}
}

// SceneEvent is a structural notification of the host scene.
// For connection events Node is the source (surface shader or mesh) and Other the destination (shading group).
type SceneEvent struct {
	Kind  SceneEventKind
	Node  Handle
	Other Handle
}

// SceneHandler receives structural scene notifications.
type SceneHandler func(SceneEvent)

// TransformData is a snapshot of a transform entity in the host's convention.
type TransformData struct {
	// Translation is the local translation.
	Translation [3]float64
	// Rotation is the local rotation quaternion as (x, y, z, w).
	Rotation [4]float64
	// Scale is the local non-uniform scale.
	Scale [3]float64
}

// IdentityTransform returns a transform with no translation, no rotation and unit scale.
func IdentityTransform() TransformData {
	return TransformData{
		Rotation: [4]float64{0, 0, 0, 1},
		Scale:    [3]float64{1, 1, 1},
	}
}

// LightData is a snapshot of a light entity.
type LightData struct {
	Kind      LightKind
	Color     [3]float32
	Intensity float32
	// ConeAngle is the full spot cone angle in radians, only meaningful for spot lights.
	ConeAngle float32
}

// MeshData is a snapshot of a mesh entity.
type MeshData struct {
	Name string
	// SubMeshes is the number of renderable sub-meshes (one internal primitive each).
	SubMeshes int
}

// ShaderData is a snapshot of a surface shader entity.
type ShaderData struct {
	Type      ShaderType
	Color     [3]float32
	Metallic  float32
	Roughness float32
	// Textures maps each connected texture slot to its file path.
	Textures map[common.TextureSlot]string
}

// Host is the query and subscription surface of the external scene graph.
// All calls are made from the host's single notification thread.
type Host interface {
	// Kind returns the kind of an entity, EntityKindUnknown for unknown handles.
	//
	// Parameters:
	//   - h: the entity handle
	//
	// Returns:
	//   - EntityKind: the entity kind
	Kind(h Handle) EntityKind

	// Entities lists every live entity of a kind.
	//
	// Parameters:
	//   - kind: the entity kind to list
	//
	// Returns:
	//   - []Handle: the matching entities in creation order
	Entities(kind EntityKind) []Handle

	// Parent returns the transform a light or mesh shape is parented under.
	//
	// Parameters:
	//   - h: the shape handle
	//
	// Returns:
	//   - Handle: the parent transform
	//   - error: error if the entity is unknown or has no parent
	Parent(h Handle) (Handle, error)

	// Transform reads the local transform of a transform entity.
	//
	// Parameters:
	//   - h: the transform handle
	//
	// Returns:
	//   - TransformData: the transform snapshot
	//   - error: error if the entity is unknown or not a transform
	Transform(h Handle) (TransformData, error)

	// Light reads the attributes of a light entity.
	//
	// Parameters:
	//   - h: the light handle
	//
	// Returns:
	//   - LightData: the light snapshot
	//   - error: error if the entity is unknown or not a light
	Light(h Handle) (LightData, error)

	// Mesh reads the attributes of a mesh entity.
	//
	// Parameters:
	//   - h: the mesh handle
	//
	// Returns:
	//   - MeshData: the mesh snapshot
	//   - error: error if the entity is unknown or not a mesh
	Mesh(h Handle) (MeshData, error)

	// Shader reads the attributes of a surface shader entity.
	//
	// Parameters:
	//   - h: the surface shader handle
	//
	// Returns:
	//   - ShaderData: the shader snapshot
	//   - error: error if the entity is unknown or not a surface shader
	Shader(h Handle) (ShaderData, error)

	// ShadingGroups returns the shading groups a mesh is a member of.
	//
	// Parameters:
	//   - mesh: the mesh handle
	//
	// Returns:
	//   - []Handle: the shading groups
	//   - error: error if the entity is unknown or not a mesh
	ShadingGroups(mesh Handle) ([]Handle, error)

	// SurfaceShader returns the surface shader connected to a shading group.
	//
	// Parameters:
	//   - group: the shading group handle
	//
	// Returns:
	//   - Handle: the connected surface shader
	//   - bool: false if no shader is connected
	SurfaceShader(group Handle) (Handle, bool)

	// RegisterChangeCallback registers a handler for attribute changes of one entity.
	//
	// Parameters:
	//   - entity: the entity to observe
	//   - handler: the handler to invoke
	//
	// Returns:
	//   - CallbackToken: the token needed to deregister the handler
	//   - error: error if the entity is unknown
	RegisterChangeCallback(entity Handle, handler ChangeHandler) (CallbackToken, error)

	// RegisterSceneCallback registers a handler for structural scene changes.
	//
	// Parameters:
	//   - handler: the handler to invoke
	//
	// Returns:
	//   - CallbackToken: the token needed to deregister the handler
	//   - error: error if the host refuses the registration
	RegisterSceneCallback(handler SceneHandler) (CallbackToken, error)

	// Deregister removes a previously registered callback.
	//
	// Parameters:
	//   - token: the callback token
	//
	// Returns:
	//   - error: error if the token is unknown
	Deregister(token CallbackToken) error
}

// Viewport is the panel query used to detect output resizes.
type Viewport interface {
	// PanelSize returns the current output dimensions of a panel in pixels.
	//
	// Parameters:
	//   - panel: the panel name
	//
	// Returns:
	//   - int: width in pixels
	//   - int: height in pixels
	//   - error: error if the panel is unknown
	PanelSize(panel string) (int, int, error)
}

// Subscriber registers change handlers on behalf of a bridge component and keeps track of the
// resulting tokens so they can be cancelled before the owning record goes away.
type Subscriber interface {
	// Subscribe registers handler for attribute changes of entity.
	//
	// Parameters:
	//   - entity: the entity to observe
	//   - handler: the handler to invoke
	//
	// Returns:
	//   - CallbackToken: the registered token
	//   - error: error if the host rejects the registration
	Subscribe(entity Handle, handler ChangeHandler) (CallbackToken, error)

	// Cancel deregisters a token obtained from Subscribe.
	//
	// Parameters:
	//   - token: the token to cancel
	//
	// Returns:
	//   - error: error if the token is not live
	Cancel(token CallbackToken) error
}
