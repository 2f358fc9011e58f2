package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestMipLevels(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		want          uint32
	}{
		{"1x1", 1, 1, 1},
		{"2x2", 2, 2, 1},
		{"3x1", 3, 1, 1},
		{"4x4", 4, 4, 2},
		{"300x300", 300, 300, 8},
		{"wide", 1024, 16, 10},
		{"tall", 7, 513, 9},
		{"zero", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MipLevels(tt.width, tt.height); got != tt.want {
				t.Errorf("MipLevels(%d, %d) = %d, want %d", tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestIndexFormatFor(t *testing.T) {
	tests := []struct {
		vertices int
		want     IndexFormat
	}{
		{0, IndexFormatUint16},
		{100, IndexFormatUint16},
		{32767, IndexFormatUint16},
		{32768, IndexFormatUint32},
		{40000, IndexFormatUint32},
	}

	for _, tt := range tests {
		if got := IndexFormatFor(tt.vertices); got != tt.want {
			t.Errorf("IndexFormatFor(%d) = %v, want %v", tt.vertices, got, tt.want)
		}
	}
}

func TestMergeMeshesRebasesIndices(t *testing.T) {
	meshes := []ImportedMesh{
		{Vertices: make([]Vertex, 3), Indices: []uint32{0, 1, 2}},
		{Vertices: make([]Vertex, 4), Indices: []uint32{0, 1, 2, 2, 3, 0}},
	}

	merged := MergeMeshes(meshes)

	if len(merged.Vertices) != 7 {
		t.Fatalf("expected 7 vertices, got %d", len(merged.Vertices))
	}
	want := []uint32{0, 1, 2, 3, 4, 5, 5, 6, 3}
	if len(merged.Indices) != len(want) {
		t.Fatalf("expected %d indices, got %d", len(want), len(merged.Indices))
	}
	for i := range want {
		if merged.Indices[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, merged.Indices[i], want[i])
		}
	}
	if merged.Format != IndexFormatUint16 {
		t.Errorf("expected uint16 indices, got %v", merged.Format)
	}
	if got := len(merged.IndexBytes()); got != len(want)*2 {
		t.Errorf("expected %d index bytes, got %d", len(want)*2, got)
	}
}

func TestMergeMeshesUsesTotalBeforeMerge(t *testing.T) {
	meshes := []ImportedMesh{
		{Vertices: make([]Vertex, 20000)},
		{Vertices: make([]Vertex, 20000)},
	}

	merged := MergeMeshes(meshes)
	if merged.Format != IndexFormatUint32 {
		t.Fatalf("expected uint32 indices for 40000 vertices, got %v", merged.Format)
	}
}

func TestModelMatrixAppliesScaleRotateTranslate(t *testing.T) {
	m := ModelMatrix(
		[3]float32{1, 2, 3},
		[3]float32{0, 0, math.Pi / 2},
		[3]float32{2, 2, 2},
	)

	// (1,0,0) scaled to (2,0,0), rotated 90 degrees about Z to (0,2,0), translated to (1,4,3).
	got := m.Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	want := mgl32.Vec4{1, 4, 3, 1}
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Fatalf("transformed point = %v, want %v", got, want)
	}
}

func TestModelMatrixIdentity(t *testing.T) {
	m := ModelMatrix([3]float32{}, [3]float32{}, [3]float32{1, 1, 1})
	if !m.ApproxEqual(mgl32.Ident4()) {
		t.Fatalf("expected identity, got %v", m)
	}
}

func TestViewMatrixMovesEyeToOrigin(t *testing.T) {
	eye := [3]float32{3, 4, 5}
	v := ViewMatrix(eye, [3]float32{0, 0, 0})

	got := v.Mul4x1(mgl32.Vec4{3, 4, 5, 1})
	if !got.ApproxEqualThreshold(mgl32.Vec4{0, 0, 0, 1}, 1e-5) {
		t.Fatalf("eye in view space = %v, want origin", got)
	}
}

func TestProjectionDepthRange(t *testing.T) {
	p := Projection(math.Pi/2, 1, 0.1, 10)

	near := p.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	far := p.Mul4x1(mgl32.Vec4{0, 0, -10, 1})

	if d := near.Z() / near.W(); math.Abs(float64(d)) > 1e-5 {
		t.Errorf("near plane depth = %f, want 0", d)
	}
	if d := far.Z() / far.W(); math.Abs(float64(d-1)) > 1e-5 {
		t.Errorf("far plane depth = %f, want 1", d)
	}
}

func TestGrowAndShrinkCap(t *testing.T) {
	if got := GrowCap(0, 0); got != 1 {
		t.Errorf("GrowCap(0, 0) = %d, want 1", got)
	}
	if got := GrowCap(1, 1); got != 2 {
		t.Errorf("GrowCap(1, 1) = %d, want 2", got)
	}
	if got := GrowCap(4, 4); got != 8 {
		t.Errorf("GrowCap(4, 4) = %d, want 8", got)
	}
	if got := GrowCap(2, 4); got != 4 {
		t.Errorf("GrowCap(2, 4) = %d, want 4", got)
	}
	if got := ShrinkCap(0, 8); got != 1 {
		t.Errorf("ShrinkCap(0, 8) = %d, want 1", got)
	}
	if got := ShrinkCap(3, 8); got != 4 {
		t.Errorf("ShrinkCap(3, 8) = %d, want 4", got)
	}
	if got := ShrinkCap(4, 8); got != 8 {
		t.Errorf("ShrinkCap(4, 8) = %d, want 8", got)
	}
}

func TestFrustumCulling(t *testing.T) {
	view := ViewMatrix([3]float32{0, -5, 0}, [3]float32{0, 0, 0})
	proj := Projection(float32(math.Pi/3), 1, 0.1, 10)
	f := ExtractFrustum(proj.Mul4(view))

	tests := []struct {
		name   string
		centre mgl32.Vec3
		radius float32
		want   bool
	}{
		{"origin", mgl32.Vec3{0, 0, 0}, 0.5, true},
		{"behind eye", mgl32.Vec3{0, -8, 0}, 0.5, false},
		{"past far plane", mgl32.Vec3{0, 20, 0}, 0.5, false},
		{"far left", mgl32.Vec3{-50, 0, 0}, 1, false},
		{"straddles left plane", mgl32.Vec3{-3.2, 0, 0}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.IntersectsSphere(tt.centre, tt.radius); got != tt.want {
				t.Errorf("IntersectsSphere(%v, %v) = %v, want %v", tt.centre, tt.radius, got, tt.want)
			}
		})
	}
}

func TestBoundingSphere(t *testing.T) {
	s := BoundingSphere([]Vertex{{Position: [3]float32{-1, 0, 0}}, {Position: [3]float32{3, 0, 0}}})
	if s.Centre != (mgl32.Vec3{1, 0, 0}) || s.Radius != 2 {
		t.Fatalf("sphere = %+v", s)
	}
	moved := s.Transform(ModelMatrix([3]float32{0, 5, 0}, [3]float32{}, [3]float32{1, 3, 1}))
	if !moved.Centre.ApproxEqual(mgl32.Vec3{1, 5, 0}) || moved.Radius != 6 {
		t.Fatalf("transformed sphere = %+v", moved)
	}
	if (BoundingSphere(nil) != Sphere{}) {
		t.Fatal("empty vertex list should give a zero sphere")
	}
}
