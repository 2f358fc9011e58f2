package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

func triangle() common.MergedMesh {
	return common.MergeMeshes([]common.ImportedMesh{{
		Vertices: []common.Vertex{{}, {}, {}},
		Indices:  []uint32{0, 1, 2},
	}})
}

func TestHeadlessMeshStartsOnDefaultTexture(t *testing.T) {
	b := NewHeadlessBackend(WithHeadlessFramesInFlight(3))
	h, err := b.CreateMesh(triangle())
	if err != nil {
		t.Fatalf("CreateMesh: %v", err)
	}
	for slot := range 3 {
		tex, ok := b.MeshBinding(h, slot, 0)
		if !ok || tex != b.DefaultTexture() {
			t.Fatalf("slot %d bound to %d, want default %d", slot, tex, b.DefaultTexture())
		}
		model, _ := b.MeshUniform(h, slot)
		if model != mgl32.Ident4() {
			t.Fatalf("slot %d uniform not identity", slot)
		}
	}
	vertices, indices, format, ok := b.MeshInfo(h)
	if !ok || vertices != 3 || indices != 3 || format != common.IndexFormatUint16 {
		t.Fatalf("MeshInfo = %d %d %v %v", vertices, indices, format, ok)
	}
}

func TestHeadlessBindAndDestroy(t *testing.T) {
	b := NewHeadlessBackend()
	mesh, _ := b.CreateMesh(triangle())
	tex, err := b.CreateTexture(common.SolidImage(4, 4, [4]byte{1, 2, 3, 4}), 3)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := b.BindMeshTexture(mesh, 1, 0, tex); err != nil {
		t.Fatalf("BindMeshTexture: %v", err)
	}
	if got, _ := b.MeshBinding(mesh, 1, 0); got != tex {
		t.Fatalf("slot 1 bound to %d, want %d", got, tex)
	}
	if got, _ := b.MeshBinding(mesh, 0, 0); got != b.DefaultTexture() {
		t.Fatalf("slot 0 changed to %d", got)
	}
	if _, _, mips, _ := b.TextureInfo(tex); mips != 3 {
		t.Fatalf("mip levels = %d, want 3", mips)
	}

	if err := b.BindMeshTexture(mesh, 0, MaxPasses, tex); err == nil {
		t.Fatal("expected error for out of range pass")
	}
	if err := b.BindMeshTexture(mesh, 5, 0, tex); err == nil {
		t.Fatal("expected error for out of range slot")
	}

	b.DestroyTexture(tex)
	b.DestroyTexture(b.DefaultTexture())
	b.DestroyMesh(mesh)
	if b.LiveMeshes() != 0 || b.LiveTextures() != 0 {
		t.Fatalf("live meshes %d textures %d, want 0 0", b.LiveMeshes(), b.LiveTextures())
	}
	if _, _, _, ok := b.TextureInfo(b.DefaultTexture()); !ok {
		t.Fatal("default texture must survive DestroyTexture")
	}
}

func TestHeadlessFailureInjection(t *testing.T) {
	cause := errors.New("device lost")
	b := NewHeadlessBackend(WithFailure("SubmitFrame", cause))
	err := b.SubmitFrame(nil, 0)
	if !errors.Is(err, common.ErrBackendFailure) || !errors.Is(err, cause) {
		t.Fatalf("got %v, want backend failure wrapping cause", err)
	}
	if !common.IsFatal(err) {
		t.Fatal("failed submit must be fatal")
	}

	b = NewHeadlessBackend(WithFailure("CreateTexture", cause))
	_, err = b.CreateTexture(&common.ImportedImage{Width: 1, Height: 1, Pixels: make([]byte, 4)}, 1)
	if !errors.Is(err, common.ErrBackendFailure) || common.IsFatal(err) {
		t.Fatalf("got %v, want a non-fatal backend failure", err)
	}
}

func TestHeadlessRejectsEmptyGeometry(t *testing.T) {
	b := NewHeadlessBackend()
	_, err := b.CreateMesh(common.MergedMesh{})
	if !errors.Is(err, common.ErrBackendFailure) {
		t.Fatalf("got %v, want ErrBackendFailure", err)
	}
	if b.LiveMeshes() != 0 {
		t.Fatalf("live meshes = %d, want 0", b.LiveMeshes())
	}
}

func TestHeadlessCloseAfter(t *testing.T) {
	b := NewHeadlessBackend(WithCloseAfter(2))
	if r := b.PresentFrame(); !r.OK || r.ShouldClose {
		t.Fatalf("first present = %+v", r)
	}
	if r := b.PresentFrame(); !r.ShouldClose {
		t.Fatalf("second present = %+v, want ShouldClose", r)
	}
	if b.Presented() != 2 {
		t.Fatalf("presented = %d", b.Presented())
	}
}

func TestHeadlessSubmitRecordsFrames(t *testing.T) {
	b := NewHeadlessBackend()
	vp, _ := b.CreateViewpoint()
	mesh, _ := b.CreateMesh(triangle())
	frames := []SceneFrame{{
		Viewpoint: vp,
		Meshes:    []MeshHandle{mesh},
		Lights:    []light.GPULight{{Intensity: 1, Distance: 5}},
	}}
	if err := b.SubmitFrame(frames, 1); err != nil {
		t.Fatalf("SubmitFrame: %v", err)
	}
	last := b.LastFrame()
	if len(last) != 1 || last[0].Viewpoint != vp || len(last[0].Lights) != 1 {
		t.Fatalf("LastFrame = %+v", last)
	}
	calls := b.Calls()
	if calls[len(calls)-1].Op != "SubmitFrame" || calls[len(calls)-1].Slot != 1 {
		t.Fatalf("last call = %+v", calls[len(calls)-1])
	}
}

func TestParseBackendType(t *testing.T) {
	for in, want := range map[string]BackendType{"": BackendTypeWGPU, "wgpu": BackendTypeWGPU, "headless": BackendTypeHeadless} {
		got, err := ParseBackendType(in)
		if err != nil || got != want {
			t.Errorf("ParseBackendType(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseBackendType("vulkan"); err == nil {
		t.Error("expected error for unknown backend")
	}
}
