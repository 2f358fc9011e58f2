package light

import (
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxGPULights is the maximum number of point lights uploaded per scene per frame.
// Lights beyond the budget are kept on the CPU but not drawn.
const MaxGPULights = 64

// GPULight is the GPU-aligned representation of a single point light.
// Matches the WGSL PointLight struct in the mesh shader. Size: 32 bytes.
type GPULight struct {
	Position  [3]float32 // offset  0
	Intensity float32    // offset 12
	Colour    [3]float32 // offset 16
	Distance  float32    // offset 28
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 32-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 32)
	putVec3(buf[0:12], g.Position)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(g.Intensity))
	putVec3(buf[16:28], g.Colour)
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Distance))
	return buf
}

// GPULightHeader precedes the light array in the storage buffer. Size: 16 bytes.
type GPULightHeader struct {
	LightCount uint32
	_pad       [3]uint32
}

// Marshal serializes the header into a 16-byte buffer.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], h.LightCount)
	return buf
}

// LightBufferSize is the size in bytes of a light storage buffer holding MaxGPULights lights.
const LightBufferSize = 16 + MaxGPULights*32

// MarshalLights writes a header followed by up to MaxGPULights lights into a buffer of
// LightBufferSize bytes.
//
// Parameters:
//   - lights: the lights to upload
//
// Returns:
//   - []byte: the storage buffer contents
func MarshalLights(lights []GPULight) []byte {
	if len(lights) > MaxGPULights {
		lights = lights[:MaxGPULights]
	}
	buf := make([]byte, LightBufferSize)
	header := GPULightHeader{LightCount: uint32(len(lights))}
	copy(buf[0:16], header.Marshal())
	for i := range lights {
		copy(buf[16+i*32:], lights[i].Marshal())
	}
	return buf
}

func putVec3(dst []byte, v [3]float32) {
	for i := range 3 {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v[i]))
	}
}
