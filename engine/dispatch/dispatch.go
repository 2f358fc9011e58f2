// Package dispatch applies decoded client commands to a scene.
package dispatch

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/protocol"
	"github.com/Carmen-Shannon/oxy-render/engine/queue"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/resource"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
)

// Dispatcher runs one handler per opcode against a scene. A returned error means the command
// failed and the caller must tear the scene down; the error wraps one of the common error kinds.
type Dispatcher interface {
	// Dispatch applies cmd to s.
	//
	// Parameters:
	//   - s: the scene owned by the connection that sent cmd
	//   - cmd: the decoded command
	//
	// Returns:
	//   - error: the handler error, wrapped with the opcode name
	Dispatch(s scene.Scene, cmd protocol.Command) error
}

type dispatcherImpl struct {
	importer      loader.Importer
	strictVersion bool
	repeats       int
}

var _ Dispatcher = &dispatcherImpl{}

// NewDispatcher creates a Dispatcher that imports assets through importer.
//
// Parameters:
//   - importer: the asset importer used by MESH_CREATE and TEXTURE_CREATE
//   - options: functional options to configure the dispatcher
//
// Returns:
//   - Dispatcher: the new dispatcher
func NewDispatcher(importer loader.Importer, options ...DispatcherBuilderOption) Dispatcher {
	d := &dispatcherImpl{importer: importer}
	for _, option := range options {
		option(d)
	}
	return d
}

func (d *dispatcherImpl) Dispatch(s scene.Scene, cmd protocol.Command) error {
	var err error
	switch c := cmd.(type) {
	case protocol.Configure:
		err = d.configure(s, c)
	case protocol.MeshCreate:
		err = d.meshCreate(s, c)
	case protocol.MeshSetShader:
		err = d.meshSetShader(s, c)
	case protocol.MeshBindTexture:
		err = d.meshBindTexture(s, c)
	case protocol.MeshTransform:
		err = d.meshTransform(s, c)
	case protocol.MeshDelete:
		err = d.meshDelete(s, c)
	case protocol.PointLightCreate:
		err = d.pointLightCreate(s, c)
	case protocol.PointLightTransform:
		err = d.pointLightTransform(s, c)
	case protocol.PointLightSetColour:
		err = d.pointLightSetColour(s, c)
	case protocol.PointLightDelete:
		err = s.Lights().Remove(c.LightID)
	case protocol.TextureCreate:
		err = d.textureCreate(s, c)
	case protocol.TextureDelete:
		err = d.textureDelete(s, c)
	case protocol.ViewpointTransform:
		err = d.viewpointTransform(s, c)
	case nil:
		return fmt.Errorf("nil command: %w", common.ErrProtocolViolation)
	default:
		return fmt.Errorf("no handler for %T: %w", cmd, common.ErrProtocolViolation)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Opcode(), err)
	}
	return nil
}

// repeatCount is how many drains a deferred mutation runs for: once per frame slot.
func (d *dispatcherImpl) repeatCount(b renderer.Backend) int {
	if d.repeats > 0 {
		return d.repeats
	}
	return b.FramesInFlight()
}

func (d *dispatcherImpl) configure(s scene.Scene, c protocol.Configure) error {
	if c.Major != protocol.VersionMajor {
		if d.strictVersion {
			return fmt.Errorf("client speaks %d.%d, server %d.%d: %w",
				c.Major, c.Minor, protocol.VersionMajor, protocol.VersionMinor, common.ErrProtocolViolation)
		}
		common.Logger().Warn("protocol version mismatch",
			"scene", s.Name(), "client", fmt.Sprintf("%d.%d", c.Major, c.Minor),
			"server", fmt.Sprintf("%d.%d", protocol.VersionMajor, protocol.VersionMinor))
	}
	s.SetVersion(c.Major, c.Minor)
	return nil
}

func (d *dispatcherImpl) meshCreate(s scene.Scene, c protocol.MeshCreate) error {
	if _, ok := s.Meshes().Lookup(c.MeshID); ok {
		return fmt.Errorf("mesh %d already exists: %w", c.MeshID, common.ErrResourceConflict)
	}

	imported, err := d.importer.ImportMesh(c.Path)
	if err != nil {
		return err
	}
	merged := common.MergeMeshes(imported)
	if len(merged.Vertices) == 0 || len(merged.Indices) == 0 {
		return fmt.Errorf("%s has no geometry: %w", c.Path, common.ErrProtocolViolation)
	}

	b := s.Backend()
	h, err := b.CreateMesh(merged)
	if err != nil {
		return err
	}
	if err := s.Meshes().Insert(c.MeshID, resource.NewMesh(h, merged, c.Path)); err != nil {
		b.DestroyMesh(h)
		return err
	}

	common.Logger().Debug("mesh created", "scene", s.Name(), "mesh", c.MeshID, "path", c.Path,
		"vertices", len(merged.Vertices), "indices", len(merged.Indices), "format", merged.Format)
	return nil
}

func (d *dispatcherImpl) meshSetShader(s scene.Scene, c protocol.MeshSetShader) error {
	m, err := mesh(s, c.MeshID)
	if err != nil {
		return err
	}
	// Only the built-in shader exists; the selection is recorded for when more are added.
	m.Shader = c.Shader
	return nil
}

func (d *dispatcherImpl) meshBindTexture(s scene.Scene, c protocol.MeshBindTexture) error {
	if c.Target >= renderer.MaxPasses {
		return fmt.Errorf("target %d outside [0, %d): %w", c.Target, renderer.MaxPasses, common.ErrProtocolViolation)
	}
	tex, ok := s.Textures().Get(c.TextureID)
	if !ok {
		return fmt.Errorf("texture %d: %w", c.TextureID, common.ErrResourceNotFound)
	}
	if _, err := mesh(s, c.MeshID); err != nil {
		return err
	}

	s.Textures().Each(func(id resource.ID, other *resource.Texture) {
		if id != c.TextureID {
			other.Unbind(c.MeshID, c.Target)
		}
	})
	s.Queue().Push(queue.MeshBindTexture{MeshID: c.MeshID, Pass: c.Target, Texture: tex.Handle}, d.repeatCount(s.Backend()))
	tex.Bind(c.MeshID, c.Target)
	return nil
}

func (d *dispatcherImpl) meshTransform(s scene.Scene, c protocol.MeshTransform) error {
	m, err := mesh(s, c.MeshID)
	if err != nil {
		return err
	}

	model := common.ModelMatrix(c.Location, c.Rotation, c.Scale)
	b := s.Backend()
	for slot := range b.FramesInFlight() {
		if err := b.WriteMeshUniform(m.Handle, slot, model); err != nil {
			return err
		}
	}
	m.Transform = model
	return nil
}

func (d *dispatcherImpl) meshDelete(s scene.Scene, c protocol.MeshDelete) error {
	if err := s.Meshes().Remove(c.MeshID); err != nil {
		return err
	}
	s.Textures().Each(func(_ resource.ID, t *resource.Texture) {
		t.UnbindMesh(c.MeshID)
	})
	// A later MESH_CREATE may reuse the ID.
	s.Queue().Cancel(func(m queue.Mutation) bool {
		bind, ok := m.(queue.MeshBindTexture)
		return ok && bind.MeshID == c.MeshID
	})
	return nil
}

func (d *dispatcherImpl) pointLightCreate(s scene.Scene, c protocol.PointLightCreate) error {
	l := light.NewPointLight(
		light.WithPosition(c.Location),
		light.WithColour(c.Colour),
		light.WithIntensity(c.Intensity),
		light.WithDistance(c.Distance),
	)
	return s.Lights().Insert(c.LightID, l)
}

func (d *dispatcherImpl) pointLightTransform(s scene.Scene, c protocol.PointLightTransform) error {
	l, ok := s.Lights().Get(c.LightID)
	if !ok {
		return fmt.Errorf("light %d: %w", c.LightID, common.ErrResourceNotFound)
	}
	l.SetPosition(c.Location)
	return nil
}

func (d *dispatcherImpl) pointLightSetColour(s scene.Scene, c protocol.PointLightSetColour) error {
	l, ok := s.Lights().Get(c.LightID)
	if !ok {
		return fmt.Errorf("light %d: %w", c.LightID, common.ErrResourceNotFound)
	}
	l.SetColour(c.Colour, c.Intensity)
	return nil
}

func (d *dispatcherImpl) textureCreate(s scene.Scene, c protocol.TextureCreate) error {
	if _, ok := s.Textures().Lookup(c.TextureID); ok {
		return fmt.Errorf("texture %d already exists: %w", c.TextureID, common.ErrResourceConflict)
	}

	img, err := d.importer.ImportImage(c.Path)
	if err != nil {
		return err
	}
	if img == nil || img.Width == 0 || img.Height == 0 {
		return fmt.Errorf("%s has no pixels: %w", c.Path, common.ErrProtocolViolation)
	}
	mips := common.MipLevels(img.Width, img.Height)

	b := s.Backend()
	h, err := b.CreateTexture(img, mips)
	if err != nil {
		return err
	}
	tex := &resource.Texture{Handle: h, Width: img.Width, Height: img.Height, MipLevels: mips, Source: c.Path}
	if err := s.Textures().Insert(c.TextureID, tex); err != nil {
		b.DestroyTexture(h)
		return err
	}

	common.Logger().Debug("texture created", "scene", s.Name(), "texture", c.TextureID, "path", c.Path,
		"width", img.Width, "height", img.Height, "mips", mips)
	return nil
}

// textureDelete schedules a rebind to the default texture for every (mesh, pass) sampling the
// texture, then releases it. Pending binds of the texture itself are cancelled first.
func (d *dispatcherImpl) textureDelete(s scene.Scene, c protocol.TextureDelete) error {
	tex, ok := s.Textures().Get(c.TextureID)
	if !ok {
		return fmt.Errorf("texture %d: %w", c.TextureID, common.ErrResourceNotFound)
	}

	b := s.Backend()
	s.Queue().Cancel(func(m queue.Mutation) bool {
		bind, ok := m.(queue.MeshBindTexture)
		return ok && bind.Texture == tex.Handle
	})
	for _, binding := range tex.Bindings() {
		s.Queue().Push(queue.MeshBindTexture{MeshID: binding.MeshID, Pass: binding.Pass, Texture: b.DefaultTexture()}, d.repeatCount(b))
	}
	return s.Textures().Remove(c.TextureID)
}

func (d *dispatcherImpl) viewpointTransform(s scene.Scene, c protocol.ViewpointTransform) error {
	if c.FOV <= 0 {
		return fmt.Errorf("field of view %v must be positive: %w", c.FOV, common.ErrProtocolViolation)
	}
	cam := s.Camera()
	cam.SetLook(c.Eye, c.Centre, c.FOV)
	cam.SetAspect(s.Backend().AspectRatio())
	return s.WriteViewpoint()
}

func mesh(s scene.Scene, id resource.ID) (*resource.Mesh, error) {
	m, ok := s.Meshes().Get(id)
	if !ok {
		return nil, fmt.Errorf("mesh %d: %w", id, common.ErrResourceNotFound)
	}
	return m, nil
}
