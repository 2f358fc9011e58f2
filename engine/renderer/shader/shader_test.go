package shader

import (
	"errors"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestMeshSourceValidates(t *testing.T) {
	if MeshSource == "" {
		t.Fatal("mesh shader source is empty")
	}
	if err := Validate(MeshSource); err != nil {
		if unimplemented(err) {
			t.Skipf("naga feature not yet implemented: %v", err)
		}
		t.Fatalf("mesh shader failed validation: %v", err)
	}
}

func TestValidateRejectsBrokenSource(t *testing.T) {
	err := Validate("fn main( {")
	if !errors.Is(err, ErrInvalidShader) {
		t.Fatalf("got %v, want ErrInvalidShader", err)
	}
}

func TestMeshEntryPoints(t *testing.T) {
	vertex, fragment := entryPoints(stripComments(MeshSource))
	if vertex != "vs_main" || fragment != "fs_main" {
		t.Fatalf("entry points = %q, %q", vertex, fragment)
	}
}

func TestMeshVertexLayout(t *testing.T) {
	layouts := vertexLayouts(parseStructs(stripComments(MeshSource)))
	if len(layouts) != 1 {
		t.Fatalf("got %d vertex layouts, want 1", len(layouts))
	}
	l := layouts[0]
	if l.ArrayStride != 32 {
		t.Errorf("stride = %d, want 32", l.ArrayStride)
	}
	want := []struct {
		format   wgpu.VertexFormat
		offset   uint64
		location uint32
	}{
		{wgpu.VertexFormatFloat32x3, 0, 0},
		{wgpu.VertexFormatFloat32x3, 12, 1},
		{wgpu.VertexFormatFloat32x2, 24, 2},
	}
	if len(l.Attributes) != len(want) {
		t.Fatalf("got %d attributes, want %d", len(l.Attributes), len(want))
	}
	for i, w := range want {
		a := l.Attributes[i]
		if a.Format != w.format || a.Offset != w.offset || a.ShaderLocation != w.location {
			t.Errorf("attribute %d = %+v, want %+v", i, a, w)
		}
	}
}

func TestMeshBindGroupLayouts(t *testing.T) {
	clean := stripComments(MeshSource)
	groups := bindGroupLayouts(clean, parseStructs(clean), wgpu.ShaderStageVertex|wgpu.ShaderStageFragment)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}

	frame := groups[0].Entries
	if len(frame) != 2 {
		t.Fatalf("group 0 has %d entries, want 2", len(frame))
	}
	if frame[0].Buffer.Type != wgpu.BufferBindingTypeUniform || frame[0].Buffer.MinBindingSize != 128 {
		t.Errorf("viewpoint binding = %+v", frame[0].Buffer)
	}
	if frame[1].Buffer.MinBindingSize != 2064 {
		t.Errorf("lights size = %d, want 2064", frame[1].Buffer.MinBindingSize)
	}

	mesh := groups[1].Entries
	if len(mesh) != 3 {
		t.Fatalf("group 1 has %d entries, want 3", len(mesh))
	}
	if mesh[0].Binding != 0 || mesh[0].Buffer.MinBindingSize != 64 {
		t.Errorf("model binding = %+v", mesh[0])
	}
	if mesh[1].Texture.ViewDimension != wgpu.TextureViewDimension2D {
		t.Errorf("diffuse binding = %+v", mesh[1].Texture)
	}
	if mesh[2].Sampler.Type != wgpu.SamplerBindingTypeFiltering {
		t.Errorf("sampler binding = %+v", mesh[2].Sampler)
	}
}

func TestStructLayoutsResolveNested(t *testing.T) {
	src := `
struct Inner { a: vec3<f32>, b: f32, }
struct Outer { n: u32, items: array<Inner, 4>, }
`
	sizes := structLayouts(parseStructs(src))
	if sizes["Inner"].size != 16 {
		t.Errorf("Inner size = %d, want 16", sizes["Inner"].size)
	}
	if sizes["Outer"].size != 80 {
		t.Errorf("Outer size = %d, want 80", sizes["Outer"].size)
	}
}

func TestStripComments(t *testing.T) {
	got := stripComments("a // @vertex fn nope\nb")
	if strings.Contains(got, "nope") {
		t.Fatalf("comment survived: %q", got)
	}
}

func TestNewShaderAccessors(t *testing.T) {
	sh, err := NewShader("mesh", MeshSource)
	if err != nil {
		if unimplemented(err) {
			t.Skipf("naga feature not yet implemented: %v", err)
		}
		t.Fatalf("NewShader: %v", err)
	}

	if sh.Key() != "mesh" || sh.Source() != MeshSource {
		t.Errorf("key = %q, source length = %d", sh.Key(), len(sh.Source()))
	}
	if sh.VertexEntryPoint() != "vs_main" || sh.FragmentEntryPoint() != "fs_main" {
		t.Errorf("entry points = %q, %q", sh.VertexEntryPoint(), sh.FragmentEntryPoint())
	}
	if len(sh.VertexLayouts()) != 1 {
		t.Errorf("got %d vertex layouts, want 1", len(sh.VertexLayouts()))
	}
	if len(sh.BindGroupLayoutDescriptors()) != 2 {
		t.Errorf("got %d bind groups, want 2", len(sh.BindGroupLayoutDescriptors()))
	}
	m := sh.Module()
	if m == nil || m.Label != "mesh" || m.WGSLDescriptor == nil || m.WGSLDescriptor.Code != MeshSource {
		t.Errorf("module = %+v", m)
	}
}

func TestNewShaderRequiresEntryPoints(t *testing.T) {
	_, err := NewShader("compute", "@compute @workgroup_size(1) fn main() {}")
	if !errors.Is(err, ErrInvalidShader) {
		t.Fatalf("got %v, want ErrInvalidShader", err)
	}
}
