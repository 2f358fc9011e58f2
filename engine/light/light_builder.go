package light

// LightBuilderOption is a function that configures a PointLight during construction.
type LightBuilderOption func(*pointLightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - position: the x, y, z position
//
// Returns:
//   - LightBuilderOption: a function that applies the position option
func WithPosition(position [3]float32) LightBuilderOption {
	return func(l *pointLightImpl) {
		l.position = position
	}
}

// WithColour is an option builder that sets the RGB colour of the light.
//
// Parameters:
//   - colour: the red, green, blue components
//
// Returns:
//   - LightBuilderOption: a function that applies the colour option
func WithColour(colour [3]float32) LightBuilderOption {
	return func(l *pointLightImpl) {
		l.colour = colour
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
// Negative values are clamped to 0.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - LightBuilderOption: a function that applies the intensity option
func WithIntensity(intensity float32) LightBuilderOption {
	return func(l *pointLightImpl) {
		l.intensity = max(intensity, 0)
	}
}

// WithDistance is an option builder that sets the falloff distance.
// Negative values are clamped to 0.
//
// Parameters:
//   - distance: the falloff distance
//
// Returns:
//   - LightBuilderOption: a function that applies the distance option
func WithDistance(distance float32) LightBuilderOption {
	return func(l *pointLightImpl) {
		l.distance = max(distance, 0)
	}
}
