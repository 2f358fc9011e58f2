package camera

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()
	if c.Eye() != DefaultEye || c.Centre() != [3]float32{} {
		t.Fatalf("eye=%v centre=%v", c.Eye(), c.Centre())
	}
	if c.Fov() != DefaultFov || c.Near() != DefaultNear || c.Far() != DefaultFar || c.Aspect() != 1 {
		t.Fatalf("fov=%v near=%v far=%v aspect=%v", c.Fov(), c.Near(), c.Far(), c.Aspect())
	}
	if c.ViewMatrix() != common.ViewMatrix(DefaultEye, [3]float32{}) {
		t.Fatal("view matrix not computed on construction")
	}
}

func TestSetLookAndAspect(t *testing.T) {
	c := NewCamera(WithAspect(2))
	eye := [3]float32{0, -5, 1}
	c.SetLook(eye, [3]float32{0, 0, 1}, 0.9)

	if c.ViewMatrix() != common.ViewMatrix(eye, [3]float32{0, 0, 1}) {
		t.Fatal("view matrix not updated")
	}
	if c.ProjectionMatrix() != common.Projection(0.9, 2, DefaultNear, DefaultFar) {
		t.Fatal("projection not updated")
	}

	c.SetAspect(0)
	if c.Aspect() != 2 {
		t.Fatalf("aspect = %v after invalid SetAspect", c.Aspect())
	}
	c.SetAspect(0.5)
	if c.ProjectionMatrix() != common.Projection(0.9, 0.5, DefaultNear, DefaultFar) {
		t.Fatal("projection not updated for new aspect")
	}
}

func TestUniformMarshal(t *testing.T) {
	c := NewCamera()
	u := c.Uniform()
	b := u.Marshal()
	if len(b) != 128 {
		t.Fatalf("uniform is %d bytes, want 128", len(b))
	}
	view := c.ViewMatrix()
	proj := c.ProjectionMatrix()
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b[12*4:])); got != view[12] {
		t.Fatalf("view[12] = %v, want %v", got, view[12])
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(b[64+5*4:])); got != proj[5] {
		t.Fatalf("proj[5] = %v, want %v", got, proj[5])
	}
}
