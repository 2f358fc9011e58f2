package light

// pointLightImpl is the implementation of PointLight.
type pointLightImpl struct {
	position  [3]float32
	colour    [3]float32
	intensity float32
	distance  float32
}

// PointLight is an omnidirectional light owned by a scene. It is a plain record: the server only
// stores it and uploads it to the GPU every frame.
type PointLight interface {
	// Position returns the world-space position of the light.
	//
	// Returns:
	//   - [3]float32: the x, y, z position
	Position() [3]float32

	// Colour returns the RGB colour of the light.
	//
	// Returns:
	//   - [3]float32: the red, green, blue components
	Colour() [3]float32

	// Intensity returns the scalar brightness multiplier.
	//
	// Returns:
	//   - float32: the intensity
	Intensity() float32

	// Distance returns the falloff distance beyond which the light contributes nothing.
	//
	// Returns:
	//   - float32: the falloff distance
	Distance() float32

	// SetPosition moves the light.
	//
	// Parameters:
	//   - position: the new world-space position
	SetPosition(position [3]float32)

	// SetColour changes the colour and intensity of the light.
	//
	// Parameters:
	//   - colour: the new RGB colour
	//   - intensity: the new intensity
	SetColour(colour [3]float32, intensity float32)

	// GPU returns the light in its GPU storage buffer layout.
	//
	// Returns:
	//   - GPULight: the GPU-aligned light record
	GPU() GPULight
}

var _ PointLight = &pointLightImpl{}

// NewPointLight creates a white point light at the origin with intensity 1 and falloff distance 10,
// then applies the given options.
//
// Parameters:
//   - opts: functional options
//
// Returns:
//   - PointLight: the new light
func NewPointLight(opts ...LightBuilderOption) PointLight {
	l := &pointLightImpl{
		colour:    [3]float32{1, 1, 1},
		intensity: 1.0,
		distance:  10.0,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *pointLightImpl) Position() [3]float32 {
	return l.position
}

func (l *pointLightImpl) Colour() [3]float32 {
	return l.colour
}

func (l *pointLightImpl) Intensity() float32 {
	return l.intensity
}

func (l *pointLightImpl) Distance() float32 {
	return l.distance
}

func (l *pointLightImpl) SetPosition(position [3]float32) {
	l.position = position
}

func (l *pointLightImpl) SetColour(colour [3]float32, intensity float32) {
	l.colour = colour
	l.intensity = intensity
}

func (l *pointLightImpl) GPU() GPULight {
	return GPULight{
		Position:  l.position,
		Intensity: l.intensity,
		Colour:    l.colour,
		Distance:  l.distance,
	}
}
