// Package scenegraph is the internally owned render scene: a tree of light and mesh nodes under
// a root. The SceneGraph is the only owner of its nodes; everything else holds non-owning
// references and must go through DestroyNode to get rid of one.
package scenegraph

import (
	"github.com/Carmen-Shannon/oxy-bridge/common"
)

// Node is a transformable element of the scene graph.
type Node interface {
	// ID returns the graph-assigned identifier. The root is 0.
	ID() uint64

	// Parent returns the parent node, nil for the root.
	Parent() Node

	// Position returns the local translation.
	//
	// Returns:
	//   - [3]float32: position as (x, y, z)
	Position() [3]float32

	// Rotation returns the local Euler rotation in degrees, applied Z then X then Y.
	//
	// Returns:
	//   - [3]float32: rotation around (x, y, z) in degrees
	Rotation() [3]float32

	// Scale returns the local non-uniform scale.
	//
	// Returns:
	//   - [3]float32: scale as (x, y, z)
	Scale() [3]float32

	// SetPosition sets the local translation.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetRotation sets the local Euler rotation.
	//
	// Parameters:
	//   - x, y, z: rotation around each axis in degrees
	SetRotation(x, y, z float32)

	// SetScale sets the local scale.
	//
	// Parameters:
	//   - x, y, z: scale factors
	SetScale(x, y, z float32)

	// ModelMatrix builds the local column-major model matrix.
	ModelMatrix() [16]float32

	// WorldMatrix builds the column-major matrix from local space to world space.
	WorldMatrix() [16]float32

	base() *nodeBase
}

// nodeBase carries the transform shared by every node kind and doubles as the root node.
type nodeBase struct {
	id       uint64
	parent   Node
	position [3]float32
	rotation [3]float32
	scale    [3]float32
}

var _ Node = &nodeBase{}

func newNodeBase(id uint64, parent Node) nodeBase {
	return nodeBase{
		id:     id,
		parent: parent,
		scale:  [3]float32{1, 1, 1},
	}
}

func (n *nodeBase) ID() uint64 {
	return n.id
}

func (n *nodeBase) Parent() Node {
	return n.parent
}

func (n *nodeBase) Position() [3]float32 {
	return n.position
}

func (n *nodeBase) Rotation() [3]float32 {
	return n.rotation
}

func (n *nodeBase) Scale() [3]float32 {
	return n.scale
}

func (n *nodeBase) SetPosition(x, y, z float32) {
	n.position = [3]float32{x, y, z}
}

func (n *nodeBase) SetRotation(x, y, z float32) {
	n.rotation = [3]float32{x, y, z}
}

func (n *nodeBase) SetScale(x, y, z float32) {
	n.scale = [3]float32{x, y, z}
}

func (n *nodeBase) ModelMatrix() [16]float32 {
	var out [16]float32
	common.BuildModelMatrix(out[:],
		n.position[0], n.position[1], n.position[2],
		float32(common.Radians(float64(n.rotation[0]))),
		float32(common.Radians(float64(n.rotation[1]))),
		float32(common.Radians(float64(n.rotation[2]))),
		n.scale[0], n.scale[1], n.scale[2],
	)
	return out
}

func (n *nodeBase) WorldMatrix() [16]float32 {
	local := n.ModelMatrix()
	if n.parent == nil {
		return local
	}
	parent := n.parent.WorldMatrix()
	var out [16]float32
	common.Mul4(out[:], parent[:], local[:])
	return out
}

func (n *nodeBase) base() *nodeBase {
	return n
}
