package camera

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// DefaultFov is the vertical field of view of a scene that has not placed its viewpoint yet.
	DefaultFov float32 = 5.0 / 57.296
	// DefaultNear is the near clipping plane distance.
	DefaultNear float32 = 0.1
	// DefaultFar is the far clipping plane distance.
	DefaultFar float32 = 10
)

// DefaultEye is where a new scene's viewpoint sits, looking at the origin.
var DefaultEye = [3]float32{2, 2, 2}

type cameraImpl struct {
	eye    [3]float32
	centre [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4
}

// Camera is a scene's viewpoint: where it looks from, what it looks at and its perspective.
// Up is always +Z. Not safe for concurrent use.
type Camera interface {
	// Eye returns the viewpoint position.
	//
	// Returns:
	//   - [3]float32: the eye position in world space
	Eye() [3]float32

	// Centre returns the point the viewpoint looks at.
	//
	// Returns:
	//   - [3]float32: the look-at target in world space
	Centre() [3]float32

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Aspect returns the aspect ratio (width / height) used for the projection.
	Aspect() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// ViewMatrix returns the current view matrix.
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix.
	ProjectionMatrix() mgl32.Mat4

	// SetLook places the viewpoint and recomputes both matrices.
	//
	// Parameters:
	//   - eye: viewpoint position
	//   - centre: the point looked at
	//   - fov: vertical field of view in radians
	SetLook(eye, centre [3]float32, fov float32)

	// SetAspect changes the aspect ratio and recomputes the projection. Used after the
	// presentation surface was recreated with a new size.
	//
	// Parameters:
	//   - aspect: width / height
	SetAspect(aspect float32)

	// Uniform returns the GPU layout of the current matrices.
	Uniform() GPUCameraUniform
}

var _ Camera = &cameraImpl{}

// NewCamera creates a camera at DefaultEye looking at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		eye:    DefaultEye,
		fov:    DefaultFov,
		aspect: 1,
		near:   DefaultNear,
		far:    DefaultFar,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Eye() [3]float32 {
	return c.eye
}

func (c *cameraImpl) Centre() [3]float32 {
	return c.centre
}

func (c *cameraImpl) Fov() float32 {
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	return c.near
}

func (c *cameraImpl) Far() float32 {
	return c.far
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	return c.projectionMatrix
}

func (c *cameraImpl) SetLook(eye, centre [3]float32, fov float32) {
	c.eye = eye
	c.centre = centre
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) Uniform() GPUCameraUniform {
	return GPUCameraUniform{
		View:       c.viewMatrix,
		Projection: c.projectionMatrix,
	}
}

// updateMatrices recalculates the view and projection matrices.
func (c *cameraImpl) updateMatrices() {
	c.viewMatrix = common.ViewMatrix(c.eye, c.centre)
	c.projectionMatrix = common.Projection(c.fov, c.aspect, c.near, c.far)
}
