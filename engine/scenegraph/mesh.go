package scenegraph

import (
	"github.com/Carmen-Shannon/oxy-bridge/engine/material"
)

// Primitive is one renderable sub-mesh of a Model.
type Primitive struct {
	Index    int
	Material material.Handle
}

// model is the implementation of the Model interface.
type model struct {
	name       string
	material   material.Handle
	primitives []Primitive
}

// Model is the renderable content of a mesh node: one primitive per host sub-mesh, each with a
// material slot.
//
// A Model is not safe for concurrent use. The mesh registry rebuilds it and the shading manager
// rebinds its material, both from the host's serial notification and frame path; neither lock
// covers the other's writes.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Primitives returns a copy of the primitive list.
	//
	// Returns:
	//   - []Primitive: the primitives in sub-mesh order
	Primitives() []Primitive

	// PrimitiveCount returns the number of primitives.
	PrimitiveCount() int

	// Material returns the material most recently applied with SetMaterial.
	Material() material.Handle

	// SetMaterial overwrites the material slot of every primitive.
	//
	// Parameters:
	//   - h: the material to bind
	SetMaterial(h material.Handle)

	// Rebuild resizes the primitive list to subMeshes entries. Every primitive is bound to the
	// model's current material.
	//
	// Parameters:
	//   - subMeshes: the new primitive count
	Rebuild(subMeshes int)
}

var _ Model = &model{}

func newModel(name string, subMeshes int, mat material.Handle) *model {
	m := &model{name: name, material: mat}
	m.Rebuild(subMeshes)
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Primitives() []Primitive {
	out := make([]Primitive, len(m.primitives))
	copy(out, m.primitives)
	return out
}

func (m *model) PrimitiveCount() int {
	return len(m.primitives)
}

func (m *model) Material() material.Handle {
	return m.material
}

func (m *model) SetMaterial(h material.Handle) {
	m.material = h
	for i := range m.primitives {
		m.primitives[i].Material = h
	}
}

func (m *model) Rebuild(subMeshes int) {
	subMeshes = max(subMeshes, 0)
	m.primitives = make([]Primitive, subMeshes)
	for i := range m.primitives {
		m.primitives[i] = Primitive{Index: i, Material: m.material}
	}
}

// meshNode is the implementation of the MeshNode interface.
type meshNode struct {
	nodeBase
	mdl *model
}

// MeshNode is a mesh instance placed in the scene graph.
type MeshNode interface {
	Node

	// Model returns the renderable content of the mesh.
	Model() Model
}

var _ MeshNode = &meshNode{}

func (m *meshNode) Model() Model {
	return m.mdl
}
