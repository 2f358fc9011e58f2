package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultFramesInFlight is the number of frame slots the CPU may prepare while the GPU is still
// executing earlier frames.
const DefaultFramesInFlight = 2

// MaxPasses is the number of render passes a texture can be bound for. Only pass 0 exists.
const MaxPasses = 1

// MeshHandle identifies a mesh's GPU buffers inside a Backend.
type MeshHandle uint64

// TextureHandle identifies a texture's image, view and sampler inside a Backend.
type TextureHandle uint64

// ViewpointHandle identifies a set of per-slot camera uniform buffers inside a Backend.
type ViewpointHandle uint64

// PresentResult is what the backend reports after presenting a frame.
type PresentResult struct {
	// OK is true when the frame reached the display surface.
	OK bool
	// ShouldRecreateSurface is true when the surface is out of date (resize, display change).
	ShouldRecreateSurface bool
	// ShouldClose is true when the window was closed and the server should stop.
	ShouldClose bool
}

// SceneFrame is everything the backend needs to draw one scene in a frame.
type SceneFrame struct {
	// Viewpoint holds the scene's view and projection for every slot.
	Viewpoint ViewpointHandle
	// Meshes are drawn in order.
	Meshes []MeshHandle
	// Lights are uploaded for the slot before drawing.
	Lights []light.GPULight
}

// Backend is the GPU collaborator driven by the server. All methods are called from the server loop
// goroutine; implementations do not need to be safe for concurrent use unless documented.
type Backend interface {
	// FramesInFlight returns the number of frame slots, N.
	FramesInFlight() int

	// CreateMesh uploads merged geometry and allocates one uniform buffer and one binding set per
	// frame slot. Every slot starts bound to the default texture.
	//
	// Parameters:
	//   - mesh: the merged vertices, indices and index width
	//
	// Returns:
	//   - MeshHandle: handle of the new mesh
	//   - error: wraps common.ErrBackendFailure when allocation fails
	CreateMesh(mesh common.MergedMesh) (MeshHandle, error)

	// WriteMeshUniform writes a model matrix into one slot's uniform buffer for the mesh.
	//
	// Parameters:
	//   - h: the mesh
	//   - slot: the frame slot, 0 <= slot < FramesInFlight()
	//   - model: the column-major model matrix
	//
	// Returns:
	//   - error: an error if the mesh is unknown or the slot is out of range
	WriteMeshUniform(h MeshHandle, slot int, model mgl32.Mat4) error

	// BindMeshTexture rewrites one slot's binding set so the mesh samples tex in the given pass.
	// Callers must have waited on the slot's fence.
	//
	// Parameters:
	//   - h: the mesh
	//   - slot: the frame slot
	//   - pass: the render pass, 0 <= pass < MaxPasses
	//   - tex: the texture to bind
	//
	// Returns:
	//   - error: an error if the mesh or texture is unknown
	BindMeshTexture(h MeshHandle, slot int, pass uint32, tex TextureHandle) error

	// DestroyMesh releases every GPU resource owned by the mesh.
	DestroyMesh(h MeshHandle)

	// CreateTexture uploads an image with the given number of mip levels.
	//
	// Parameters:
	//   - img: the decoded RGBA image
	//   - mipLevels: number of mip levels to allocate, at least 1
	//
	// Returns:
	//   - TextureHandle: handle of the new texture
	//   - error: wraps common.ErrBackendFailure when allocation fails
	CreateTexture(img *common.ImportedImage, mipLevels uint32) (TextureHandle, error)

	// DestroyTexture releases the texture's image, view and sampler.
	DestroyTexture(h TextureHandle)

	// DefaultTexture returns the placeholder texture meshes fall back to when their texture is deleted.
	DefaultTexture() TextureHandle

	// CreateViewpoint allocates per-slot camera uniform buffers.
	CreateViewpoint() (ViewpointHandle, error)

	// WriteViewpoint writes the view and projection matrices for one slot.
	WriteViewpoint(h ViewpointHandle, slot int, view, proj mgl32.Mat4) error

	// DestroyViewpoint releases the viewpoint's buffers.
	DestroyViewpoint(h ViewpointHandle)

	// AspectRatio returns the width/height ratio of the presentation surface.
	AspectRatio() float32

	// WaitForFrameSlot blocks until the GPU has finished the last frame submitted for slot.
	WaitForFrameSlot(slot int) error

	// SubmitFrame records and submits the draw commands for every scene into slot. Errors wrap
	// common.ErrBackendLost.
	SubmitFrame(frames []SceneFrame, slot int) error

	// PresentFrame presents the last submitted frame and pumps window events.
	PresentFrame() PresentResult

	// RecreateSurface reconfigures the presentation surface after it went out of date.
	RecreateSurface() error

	// Close releases every GPU resource and the window.
	Close() error
}
