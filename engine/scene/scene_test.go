package scene

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/queue"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/resource"
)

type closeCounter struct {
	closed int
	err    error
}

func (c *closeCounter) Close() error {
	c.closed++
	return c.err
}

func newTestScene(t *testing.T, b renderer.Backend, options ...SceneBuilderOption) Scene {
	t.Helper()
	s, err := NewScene(b, options...)
	if err != nil {
		t.Fatalf("NewScene: %v", err)
	}
	return s
}

func addMesh(t *testing.T, s Scene, id resource.ID) *resource.Mesh {
	t.Helper()
	merged := common.MergeMeshes([]common.ImportedMesh{{Vertices: make([]common.Vertex, 3), Indices: []uint32{0, 1, 2}}})
	h, err := s.Backend().CreateMesh(merged)
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}
	m := resource.NewMesh(h, merged, "tri.gltf")
	if err := s.Meshes().Insert(id, m); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	return m
}

func TestNewSceneWritesViewpointToEverySlot(t *testing.T) {
	b := renderer.NewHeadlessBackend(renderer.WithHeadlessFramesInFlight(3))
	s := newTestScene(t, b, WithName("a"))
	if s.Name() != "a" {
		t.Fatalf("name = %q", s.Name())
	}
	if b.LiveViewpoints() != 1 {
		t.Fatalf("live viewpoints = %d", b.LiveViewpoints())
	}
	frame := s.Frame()
	for slot := range 3 {
		view, proj, ok := b.ViewpointMatrices(frame.Viewpoint, slot)
		if !ok {
			t.Fatalf("slot %d missing", slot)
		}
		if view != s.Camera().ViewMatrix() || proj != s.Camera().ProjectionMatrix() {
			t.Fatalf("slot %d matrices differ from camera", slot)
		}
	}
}

func TestNewSceneRequiresBackend(t *testing.T) {
	if _, err := NewScene(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplyRebindsOneSlot(t *testing.T) {
	b := renderer.NewHeadlessBackend()
	s := newTestScene(t, b)
	m := addMesh(t, s, 1)
	tex, _ := b.CreateTexture(common.SolidImage(2, 2, [4]byte{}), 1)

	if err := s.Apply(queue.MeshBindTexture{MeshID: 1, Texture: tex}, 1); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, _ := b.MeshBinding(m.Handle, 1, 0); got != tex {
		t.Fatalf("slot 1 bound to %d, want %d", got, tex)
	}
	if got, _ := b.MeshBinding(m.Handle, 0, 0); got != b.DefaultTexture() {
		t.Fatalf("slot 0 changed to %d", got)
	}
}

func TestApplySkipsDeletedMesh(t *testing.T) {
	b := renderer.NewHeadlessBackend()
	s := newTestScene(t, b)
	b.ResetCalls()
	if err := s.Apply(queue.MeshBindTexture{MeshID: 42, Texture: b.DefaultTexture()}, 0); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for _, c := range b.Calls() {
		if c.Op == "BindMeshTexture" {
			t.Fatal("rebind reached the backend for a missing mesh")
		}
	}
}

func TestDrainSpreadsRebindAcrossSlots(t *testing.T) {
	b := renderer.NewHeadlessBackend()
	s := newTestScene(t, b)
	m := addMesh(t, s, 7)
	tex, _ := b.CreateTexture(common.SolidImage(4, 4, [4]byte{}), 2)
	s.Queue().Push(queue.MeshBindTexture{MeshID: 7, Texture: tex}, b.FramesInFlight())

	for slot := range b.FramesInFlight() {
		if err := s.Drain(slot); err != nil {
			t.Fatalf("Drain(%d): %v", slot, err)
		}
	}
	for slot := range b.FramesInFlight() {
		if got, _ := b.MeshBinding(m.Handle, slot, 0); got != tex {
			t.Fatalf("slot %d bound to %d, want %d", slot, got, tex)
		}
	}
	if err := s.Drain(0); err != nil {
		t.Fatalf("final Drain: %v", err)
	}
	if s.Queue().Len() != 0 {
		t.Fatalf("queue len = %d, want 0", s.Queue().Len())
	}
}

func TestFrameListsMeshesAndLights(t *testing.T) {
	b := renderer.NewHeadlessBackend()
	s := newTestScene(t, b)
	m1 := addMesh(t, s, 1)
	m2 := addMesh(t, s, 2)
	_ = s.Lights().Insert(3, light.NewPointLight(light.WithIntensity(2), light.WithDistance(4)))

	frame := s.Frame()
	if len(frame.Meshes) != 2 || frame.Meshes[0] != m1.Handle || frame.Meshes[1] != m2.Handle {
		t.Fatalf("meshes = %v", frame.Meshes)
	}
	if len(frame.Lights) != 1 || frame.Lights[0].Intensity != 2 || frame.Lights[0].Distance != 4 {
		t.Fatalf("lights = %+v", frame.Lights)
	}
}

func TestRefreshAspect(t *testing.T) {
	b := renderer.NewHeadlessBackend(renderer.WithHeadlessAspectRatio(1))
	s := newTestScene(t, b)
	b.SetAspectRatio(2)
	if err := s.RefreshAspect(); err != nil {
		t.Fatalf("RefreshAspect: %v", err)
	}
	if s.Camera().Aspect() != 2 {
		t.Fatalf("aspect = %v, want 2", s.Camera().Aspect())
	}
	_, proj, _ := b.ViewpointMatrices(s.Frame().Viewpoint, 1)
	if proj != s.Camera().ProjectionMatrix() {
		t.Fatal("projection not rewritten")
	}
}

func TestReleaseDestroysEverythingOnce(t *testing.T) {
	b := renderer.NewHeadlessBackend()
	conn := &closeCounter{}
	s := newTestScene(t, b, WithConn(conn))
	addMesh(t, s, 1)
	addMesh(t, s, 2)
	tex, _ := b.CreateTexture(common.SolidImage(1, 1, [4]byte{}), 1)
	_ = s.Textures().Insert(9, &resource.Texture{Handle: tex, Width: 1, Height: 1, MipLevels: 1})
	s.Queue().Push(queue.MeshBindTexture{MeshID: 1, Texture: tex}, 2)

	if err := s.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if !s.Released() {
		t.Fatal("Released() = false")
	}
	if conn.closed != 1 {
		t.Fatalf("conn closed %d times, want 1", conn.closed)
	}
	if b.LiveMeshes() != 0 || b.LiveTextures() != 0 || b.LiveViewpoints() != 0 {
		t.Fatalf("leaked meshes %d textures %d viewpoints %d", b.LiveMeshes(), b.LiveTextures(), b.LiveViewpoints())
	}
	if s.Queue().Len() != 0 || s.Meshes().Len() != 0 {
		t.Fatal("queue or collections not cleared")
	}
}

func TestReleaseReportsCloseError(t *testing.T) {
	b := renderer.NewHeadlessBackend()
	cause := errors.New("broken pipe")
	s := newTestScene(t, b, WithConn(&closeCounter{err: cause}))
	if err := s.Release(); !errors.Is(err, cause) {
		t.Fatalf("got %v, want %v", err, cause)
	}
}

func TestNewSceneFailsWhenViewpointFails(t *testing.T) {
	b := renderer.NewHeadlessBackend(renderer.WithFailure("CreateViewpoint", errors.New("oom")))
	if _, err := NewScene(b); !errors.Is(err, common.ErrBackendFailure) {
		t.Fatalf("got %v, want backend failure", err)
	}
}

func TestFrameCullsMeshesOutsideViewpoint(t *testing.T) {
	for _, cull := range []bool{false, true} {
		s := newTestScene(t, renderer.NewHeadlessBackend(), WithCulling(cull))
		s.Camera().SetLook([3]float32{0, -5, 0}, [3]float32{0, 0, 0}, 1)

		visible := addMesh(t, s, 1)
		hidden := addMesh(t, s, 2)
		hidden.Transform = common.ModelMatrix([3]float32{0, 0, -50}, [3]float32{}, [3]float32{1, 1, 1})

		frame := s.Frame()
		want := 2
		if cull {
			want = 1
		}
		if len(frame.Meshes) != want {
			t.Fatalf("cull=%v: %d meshes drawn, want %d", cull, len(frame.Meshes), want)
		}
		if frame.Meshes[0] != visible.Handle {
			t.Fatalf("cull=%v: first mesh %d, want %d", cull, frame.Meshes[0], visible.Handle)
		}
		_ = s.Release()
	}
}
