package resource

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

// Mesh is a drawable mesh owned by a scene. The backend handle owns the vertex and index buffers
// plus one uniform buffer and one binding set per frame slot.
type Mesh struct {
	// Handle refers to the mesh's GPU resources.
	Handle renderer.MeshHandle
	// VertexCount is the merged vertex count.
	VertexCount int
	// IndexCount is the number of indices drawn.
	IndexCount int
	// Format is the index width.
	Format common.IndexFormat
	// Transform is the last model matrix written to the uniform buffers.
	Transform mgl32.Mat4
	// Shader is the shader selected by the client. Only the default shader (0) is implemented.
	Shader uint32
	// Source is the asset path the mesh was imported from.
	Source string
	// Bounds encloses the vertices in model space.
	Bounds common.Sphere
}

// NewMesh creates a mesh record for geometry already uploaded under h.
func NewMesh(h renderer.MeshHandle, merged common.MergedMesh, source string) *Mesh {
	return &Mesh{
		Handle:      h,
		VertexCount: len(merged.Vertices),
		IndexCount:  len(merged.Indices),
		Format:      merged.Format,
		Transform:   mgl32.Ident4(),
		Source:      source,
		Bounds:      common.BoundingSphere(merged.Vertices),
	}
}
