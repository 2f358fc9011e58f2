package common

import (
	"math"
	"math/bits"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxUint16Vertices is the largest vertex count that can still be addressed with 16-bit indices.
const MaxUint16Vertices = 32767

// IndexFormat is the width of the indices stored in a mesh's index buffer.
type IndexFormat int

const (
	// IndexFormatUint16 stores indices as 16-bit unsigned integers.
	IndexFormatUint16 IndexFormat = iota
	// IndexFormatUint32 stores indices as 32-bit unsigned integers.
	IndexFormatUint32
)

// String returns the name of the index format.
func (f IndexFormat) String() string {
	if f == IndexFormatUint32 {
		return "uint32"
	}
	return "uint16"
}

// Size returns the size in bytes of a single index.
func (f IndexFormat) Size() int {
	if f == IndexFormatUint32 {
		return 4
	}
	return 2
}

// IndexFormatFor selects the index width for a mesh with the given vertex count.
// The count must be measured before sub-meshes are merged.
//
// Parameters:
//   - vertexCount: total number of vertices across every sub-mesh
//
// Returns:
//   - IndexFormat: IndexFormatUint32 when vertexCount exceeds MaxUint16Vertices, otherwise IndexFormatUint16
func IndexFormatFor(vertexCount int) IndexFormat {
	if vertexCount > MaxUint16Vertices {
		return IndexFormatUint32
	}
	return IndexFormatUint16
}

// MipLevels returns the number of mip levels allocated for a texture of the given size,
// floor(log2(max(width, height))) with a minimum of 1.
//
// Parameters:
//   - width: texture width in pixels
//   - height: texture height in pixels
//
// Returns:
//   - uint32: the mip level count
func MipLevels(width, height uint32) uint32 {
	largest := max(width, height)
	if largest < 2 {
		return 1
	}
	return max(uint32(bits.Len32(largest)-1), 1)
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// The returned slice shares memory with the input and must not be modified.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// ModelMatrix composes a model matrix as T * R * S, so vertices are scaled first, then rotated,
// then translated. The rotation is Rz * Ry * Rx with angles in radians.
//
// Parameters:
//   - location: translation in world space
//   - rotation: rotation angles around the X, Y and Z axes
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the column-major model matrix
func ModelMatrix(location, rotation, scale [3]float32) mgl32.Mat4 {
	t := mgl32.Translate3D(location[0], location[1], location[2])
	r := mgl32.HomogRotate3DZ(rotation[2]).
		Mul4(mgl32.HomogRotate3DY(rotation[1])).
		Mul4(mgl32.HomogRotate3DX(rotation[0]))
	s := mgl32.Scale3D(scale[0], scale[1], scale[2])
	return t.Mul4(r).Mul4(s)
}

// ViewUp is the world up axis used for viewpoint transforms.
var ViewUp = mgl32.Vec3{0, 0, 1}

// ViewMatrix builds a view matrix looking from eye towards centre with +Z as up.
//
// Parameters:
//   - eye: viewpoint position in world space
//   - centre: the point being looked at
//
// Returns:
//   - mgl32.Mat4: the column-major view matrix
func ViewMatrix(eye, centre [3]float32) mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3(eye), mgl32.Vec3(centre), ViewUp)
}

// Projection creates a right-handed perspective projection with a [0, 1] depth range,
// matching WebGPU clip space.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the column-major projection matrix
func Projection(fovY, aspect, near, far float32) mgl32.Mat4 {
	if aspect == 0 {
		aspect = 1
	}
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))

	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = (near * far) / (near - far)
	return m
}
