package scenegraph

import "math"

// LightType identifies the kind of light source.
type LightType int

const (
	// LightTypeDirectional represents a light with no position, only direction.
	// Used for large distant sources like the sun or moon.
	LightTypeDirectional LightType = iota

	// LightTypePoint represents a light that emits in all directions from a position.
	// Attenuates with distance up to its range.
	LightTypePoint

	// LightTypeSpot represents a light that emits in a cone from a position along a direction.
	LightTypeSpot
)

func (t LightType) String() string {
	switch t {
	case LightTypeDirectional:
		return "directional"
	case LightTypePoint:
		return "point"
	case LightTypeSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// lightNode is the implementation of the LightNode interface.
type lightNode struct {
	nodeBase

	lightType  LightType
	color      [3]float32
	lightRange float32
	spotAngle  float32 // full cone angle in radians
}

// LightNode is a light source placed in the scene graph. Color is stored already scaled by
// intensity. The light points down its local -Z axis.
type LightNode interface {
	Node

	// Type returns the kind of light source.
	//
	// Returns:
	//   - LightType: the light type (directional, point, or spot)
	Type() LightType

	// Color returns the RGB radiance of the light (color times intensity).
	//
	// Returns:
	//   - [3]float32: color as (r, g, b)
	Color() [3]float32

	// SetColor sets the RGB radiance of the light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// Range returns the attenuation radius of point and spot lights.
	//
	// Returns:
	//   - float32: the radius
	Range() float32

	// SetRange sets the attenuation radius.
	//
	// Parameters:
	//   - lightRange: the radius
	SetRange(lightRange float32)

	// SpotAngle returns the full cone angle of a spot light in radians.
	//
	// Returns:
	//   - float32: the cone angle
	SpotAngle() float32

	// SetSpotAngle sets the full cone angle of a spot light.
	//
	// Parameters:
	//   - angle: the cone angle in radians
	SetSpotAngle(angle float32)

	// OuterCone returns the cosine of the cone half-angle, the form sampled by shaders.
	//
	// Returns:
	//   - float32: cos(angle / 2)
	OuterCone() float32

	// Direction returns the normalized world-space direction of the light.
	//
	// Returns:
	//   - [3]float32: direction as (x, y, z)
	Direction() [3]float32
}

var _ LightNode = &lightNode{}

func newLightNode(id uint64, parent Node, lightType LightType, options ...LightBuilderOption) *lightNode {
	l := &lightNode{
		nodeBase:   newNodeBase(id, parent),
		lightType:  lightType,
		color:      [3]float32{1, 1, 1},
		lightRange: 10.0,
		spotAngle:  float32(math.Pi / 4),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *lightNode) Type() LightType {
	return l.lightType
}

func (l *lightNode) Color() [3]float32 {
	return l.color
}

func (l *lightNode) SetColor(r, g, b float32) {
	l.color = [3]float32{r, g, b}
}

func (l *lightNode) Range() float32 {
	return l.lightRange
}

func (l *lightNode) SetRange(lightRange float32) {
	l.lightRange = lightRange
}

func (l *lightNode) SpotAngle() float32 {
	return l.spotAngle
}

func (l *lightNode) SetSpotAngle(angle float32) {
	l.spotAngle = angle
}

func (l *lightNode) OuterCone() float32 {
	return float32(math.Cos(float64(l.spotAngle) / 2))
}

func (l *lightNode) Direction() [3]float32 {
	m := l.WorldMatrix()
	return normalize3(-m[8], -m[9], -m[10])
}

// normalize3 normalizes a 3-component vector. Returns a zero vector if the input
// has zero length.
func normalize3(x, y, z float32) [3]float32 {
	length := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if length == 0 {
		return [3]float32{0, 0, 0}
	}
	inv := 1.0 / length
	return [3]float32{x * inv, y * inv, z * inv}
}
