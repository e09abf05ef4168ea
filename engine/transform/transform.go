// Package transform converts host transform entities into the render scene's convention:
// translation, Euler rotation in degrees applied Z then X then Y, and non-uniform scale.
package transform

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-bridge/common"
	"github.com/Carmen-Shannon/oxy-bridge/engine/host"
	"github.com/Carmen-Shannon/oxy-bridge/engine/scenegraph"
)

// Transform is a host transform expressed in scene graph terms.
type Transform struct {
	Position [3]float32
	// Rotation is the Euler rotation around (x, y, z) in degrees.
	Rotation [3]float32
	Scale    [3]float32
}

// Sync reads a transform entity from the host and converts it.
//
// The host quaternion is normalized first and then decomposed for the Ry * Rx * Rz order used
// by the scene graph. Failures are returned, never replaced by an identity transform.
//
// Parameters:
//   - h: the host to query
//   - entity: the transform entity
//
// Returns:
//   - Transform: the converted transform
//   - error: common.ErrWrongEntityKind if entity is not a transform, common.ErrInvalidTransform
//     for a degenerate rotation, or the wrapped host error
func Sync(h host.Host, entity host.Handle) (Transform, error) {
	if kind := h.Kind(entity); kind != host.EntityKindTransform {
		return Transform{}, fmt.Errorf("transform sync: %s is a %s: %w", entity, kind, common.ErrWrongEntityKind)
	}
	data, err := h.Transform(entity)
	if err != nil {
		return Transform{}, fmt.Errorf("transform sync: query %s: %w", entity, err)
	}
	return Convert(data)
}

// Convert maps a host transform snapshot to a Transform.
//
// Parameters:
//   - data: the host snapshot
//
// Returns:
//   - Transform: the converted transform
//   - error: common.ErrInvalidTransform if the rotation cannot be normalized
func Convert(data host.TransformData) (Transform, error) {
	q, ok := common.NormalizeQuat(data.Rotation)
	if !ok {
		return Transform{}, fmt.Errorf("transform sync: rotation %v: %w", data.Rotation, common.ErrInvalidTransform)
	}
	euler := common.QuatToEulerZXY(q)

	return Transform{
		Position: [3]float32{float32(data.Translation[0]), float32(data.Translation[1]), float32(data.Translation[2])},
		Rotation: [3]float32{
			float32(common.Degrees(euler[0])),
			float32(common.Degrees(euler[1])),
			float32(common.Degrees(euler[2])),
		},
		Scale: [3]float32{float32(data.Scale[0]), float32(data.Scale[1]), float32(data.Scale[2])},
	}, nil
}

// Apply writes t to a scene graph node.
//
// Parameters:
//   - node: the node to update
//   - t: the transform to apply
func Apply(node scenegraph.Node, t Transform) {
	node.SetPosition(t.Position[0], t.Position[1], t.Position[2])
	node.SetRotation(t.Rotation[0], t.Rotation[1], t.Rotation[2])
	node.SetScale(t.Scale[0], t.Scale[1], t.Scale[2])
}
