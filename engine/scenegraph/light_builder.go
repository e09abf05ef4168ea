package scenegraph

// LightBuilderOption is a function that configures a light node during construction.
type LightBuilderOption func(*lightNode)

// WithColor is an option builder that sets the RGB radiance of the light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - LightBuilderOption: a function that applies the color option to a lightNode
func WithColor(r, g, b float32) LightBuilderOption {
	return func(l *lightNode) {
		l.color = [3]float32{r, g, b}
	}
}

// WithRange is an option builder that sets the attenuation radius for point and spot lights.
//
// Parameters:
//   - lightRange: the range value
//
// Returns:
//   - LightBuilderOption: a function that applies the range option to a lightNode
func WithRange(lightRange float32) LightBuilderOption {
	return func(l *lightNode) {
		l.lightRange = lightRange
	}
}

// WithSpotAngle is an option builder that sets the full cone angle of a spot light.
//
// Parameters:
//   - angle: the cone angle in radians
//
// Returns:
//   - LightBuilderOption: a function that applies the spot angle option to a lightNode
func WithSpotAngle(angle float32) LightBuilderOption {
	return func(l *lightNode) {
		l.spotAngle = angle
	}
}
