package scene

import (
	"errors"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/queue"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/resource"
)

// Scene is the state owned by one client connection: its meshes, textures and point lights, the
// deferred mutation queue replayed against the GPU binding state, and the scene's viewpoint.
// A Scene is driven by a single goroutine and is not safe for concurrent use.
type Scene interface {
	// Name returns the scene's identifier, used in logs.
	Name() string

	// Version returns the protocol version the client announced with CONFIGURE.
	//
	// Returns:
	//   - major, minor: the announced version, or zero if never configured
	Version() (major, minor uint32)

	// SetVersion stores the protocol version announced by the client.
	//
	// Parameters:
	//   - major: the major version
	//   - minor: the minor version
	SetVersion(major, minor uint32)

	// Meshes returns the scene's mesh collection.
	Meshes() *resource.Collection[*resource.Mesh]

	// Textures returns the scene's texture collection.
	Textures() *resource.Collection[*resource.Texture]

	// Lights returns the scene's point light collection.
	Lights() *resource.Collection[light.PointLight]

	// Queue returns the scene's deferred mutation queue.
	Queue() *queue.Queue

	// Camera returns the scene's viewpoint.
	Camera() camera.Camera

	// Backend returns the GPU backend the scene's resources live in.
	Backend() renderer.Backend

	// WriteViewpoint writes the camera's current matrices into every frame slot of the scene's
	// viewpoint uniform.
	//
	// Returns:
	//   - error: the first backend error
	WriteViewpoint() error

	// RefreshAspect picks up the backend's current aspect ratio and rewrites the viewpoint.
	// Called after the presentation surface was recreated.
	RefreshAspect() error

	// WaitForFrameSlot blocks on the backend fence of slot.
	WaitForFrameSlot(slot int) error

	// Apply executes one deferred mutation against slot. Mutations naming a mesh that no longer
	// exists are skipped. Unknown mutation types are a no-op.
	//
	// Parameters:
	//   - m: the mutation
	//   - slot: the frame slot to mutate
	//
	// Returns:
	//   - error: a backend error
	Apply(m queue.Mutation, slot int) error

	// Drain runs one tick of the scene's queue against slot.
	Drain(slot int) error

	// Frame returns the scene's draw list for the backend.
	Frame() renderer.SceneFrame

	// Release destroys every GPU resource the scene owns, empties its collections and queue and
	// closes the connection. Calling Release more than once is a no-op.
	//
	// Returns:
	//   - error: the error from closing the connection, if any
	Release() error

	// Released reports whether Release has been called.
	Released() bool
}

type sceneImpl struct {
	name    string
	conn    io.Closer
	backend renderer.Backend

	major uint32
	minor uint32

	meshes   *resource.Collection[*resource.Mesh]
	textures *resource.Collection[*resource.Texture]
	lights   *resource.Collection[light.PointLight]
	queue    *queue.Queue

	camera    camera.Camera
	viewpoint renderer.ViewpointHandle

	cull     bool
	released bool
}

var _ Scene = &sceneImpl{}
var _ queue.Executor = &sceneImpl{}

// NewScene creates an empty scene and allocates its viewpoint in backend.
//
// Parameters:
//   - backend: the GPU backend the scene's resources are created in
//   - options: functional options to configure the scene
//
// Returns:
//   - Scene: the new scene
//   - error: an error if the viewpoint could not be created or written
func NewScene(backend renderer.Backend, options ...SceneBuilderOption) (Scene, error) {
	if backend == nil {
		return nil, errors.New("scene requires a backend")
	}

	s := &sceneImpl{
		backend: backend,
		queue:   queue.NewQueue(),
		camera:  camera.NewCamera(camera.WithAspect(backend.AspectRatio())),
	}
	s.meshes = resource.NewCollection(func(_ resource.ID, m *resource.Mesh) {
		backend.DestroyMesh(m.Handle)
	})
	s.textures = resource.NewCollection(func(_ resource.ID, t *resource.Texture) {
		backend.DestroyTexture(t.Handle)
	})
	s.lights = resource.NewCollection[light.PointLight](nil)

	for _, option := range options {
		option(s)
	}

	vp, err := backend.CreateViewpoint()
	if err != nil {
		return nil, fmt.Errorf("failed to create viewpoint for scene %q: %w", s.name, err)
	}
	s.viewpoint = vp
	if err := s.WriteViewpoint(); err != nil {
		backend.DestroyViewpoint(vp)
		return nil, err
	}
	return s, nil
}

func (s *sceneImpl) Name() string {
	return s.name
}

func (s *sceneImpl) Version() (uint32, uint32) {
	return s.major, s.minor
}

func (s *sceneImpl) SetVersion(major, minor uint32) {
	s.major = major
	s.minor = minor
}

func (s *sceneImpl) Meshes() *resource.Collection[*resource.Mesh] {
	return s.meshes
}

func (s *sceneImpl) Textures() *resource.Collection[*resource.Texture] {
	return s.textures
}

func (s *sceneImpl) Lights() *resource.Collection[light.PointLight] {
	return s.lights
}

func (s *sceneImpl) Queue() *queue.Queue {
	return s.queue
}

func (s *sceneImpl) Camera() camera.Camera {
	return s.camera
}

func (s *sceneImpl) Backend() renderer.Backend {
	return s.backend
}

func (s *sceneImpl) WriteViewpoint() error {
	view := s.camera.ViewMatrix()
	proj := s.camera.ProjectionMatrix()
	for slot := range s.backend.FramesInFlight() {
		if err := s.backend.WriteViewpoint(s.viewpoint, slot, view, proj); err != nil {
			return fmt.Errorf("failed to write viewpoint slot %d: %w", slot, err)
		}
	}
	return nil
}

func (s *sceneImpl) RefreshAspect() error {
	s.camera.SetAspect(s.backend.AspectRatio())
	return s.WriteViewpoint()
}

func (s *sceneImpl) WaitForFrameSlot(slot int) error {
	return s.backend.WaitForFrameSlot(slot)
}

func (s *sceneImpl) Apply(m queue.Mutation, slot int) error {
	switch m := m.(type) {
	case queue.MeshBindTexture:
		mesh, ok := s.meshes.Get(m.MeshID)
		if !ok {
			common.Logger().Debug("skipping texture rebind for deleted mesh",
				"scene", s.name, "mesh", m.MeshID, "slot", slot)
			return nil
		}
		return s.backend.BindMeshTexture(mesh.Handle, slot, m.Pass, m.Texture)
	default:
		return nil
	}
}

func (s *sceneImpl) Drain(slot int) error {
	return s.queue.Drain(slot, s)
}

func (s *sceneImpl) Frame() renderer.SceneFrame {
	frame := renderer.SceneFrame{
		Viewpoint: s.viewpoint,
		Meshes:    make([]renderer.MeshHandle, 0, s.meshes.Len()),
		Lights:    make([]light.GPULight, 0, s.lights.Len()),
	}
	var frustum common.Frustum
	if s.cull {
		frustum = common.ExtractFrustum(s.camera.ProjectionMatrix().Mul4(s.camera.ViewMatrix()))
	}
	s.meshes.Each(func(_ resource.ID, m *resource.Mesh) {
		if s.cull {
			b := m.Bounds.Transform(m.Transform)
			if !frustum.IntersectsSphere(b.Centre, b.Radius) {
				return
			}
		}
		frame.Meshes = append(frame.Meshes, m.Handle)
	})
	s.lights.Each(func(_ resource.ID, l light.PointLight) {
		frame.Lights = append(frame.Lights, l.GPU())
	})
	return frame
}

func (s *sceneImpl) Release() error {
	if s.released {
		return nil
	}
	s.released = true

	s.queue.Clear()
	s.meshes.Clear()
	s.textures.Clear()
	s.lights.Clear()
	s.backend.DestroyViewpoint(s.viewpoint)

	if s.conn == nil {
		return nil
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection of scene %q: %w", s.name, err)
	}
	return nil
}

func (s *sceneImpl) Released() bool {
	return s.released
}
