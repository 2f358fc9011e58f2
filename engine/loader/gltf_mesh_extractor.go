package loader

import (
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
)

// gltfMeshExtractorImpl is the implementation of the gltfMeshExtractor interface.
type gltfMeshExtractorImpl struct {
	parser gltfParser
	pool   worker.DynamicWorkerPool
}

// gltfMeshExtractor converts the primitives of a parsed document into ImportedMeshes.
type gltfMeshExtractor interface {
	// ExtractAllMeshes extracts every triangle primitive of every mesh, one ImportedMesh per
	// primitive, in document order. Primitives are decoded in parallel on the worker pool
	// when one is set.
	//
	// Returns:
	//   - []common.ImportedMesh: one entry per primitive
	//   - error: the first primitive error in document order
	ExtractAllMeshes() ([]common.ImportedMesh, error)
}

var _ gltfMeshExtractor = &gltfMeshExtractorImpl{}

// newGLTFMeshExtractor creates a mesh extractor for a parsed document.
//
// Parameters:
//   - parser: the parser holding a loaded document
//   - pool: the worker pool primitives are decoded on, nil to decode inline
//
// Returns:
//   - gltfMeshExtractor: the mesh extractor
func newGLTFMeshExtractor(parser gltfParser, pool worker.DynamicWorkerPool) gltfMeshExtractor {
	return &gltfMeshExtractorImpl{parser: parser, pool: pool}
}

type gltfPrimitiveRef struct {
	mesh      int
	primitive int
}

func (e *gltfMeshExtractorImpl) ExtractAllMeshes() ([]common.ImportedMesh, error) {
	doc := e.parser.Document()
	if doc == nil {
		return nil, fmt.Errorf("no document loaded")
	}

	var refs []gltfPrimitiveRef
	for m := range doc.Meshes {
		for p := range doc.Meshes[m].Primitives {
			refs = append(refs, gltfPrimitiveRef{mesh: m, primitive: p})
		}
	}

	meshes := make([]common.ImportedMesh, len(refs))
	errs := make([]error, len(refs))
	extract := func(i int) {
		ref := refs[i]
		mesh := &doc.Meshes[ref.mesh]
		imported, err := e.extractPrimitive(&mesh.Primitives[ref.primitive], mesh.Name, ref.primitive)
		if err != nil {
			errs[i] = fmt.Errorf("mesh %d primitive %d: %w", ref.mesh, ref.primitive, err)
			return
		}
		meshes[i] = imported
	}

	if e.pool == nil || len(refs) < 2 {
		for i := range refs {
			extract(i)
		}
	} else {
		// Barrier per import: pool.Wait only returns once workers go idle.
		var wg sync.WaitGroup
		for i := range refs {
			wg.Add(1)
			e.pool.SubmitTask(worker.Task{
				ID: i,
				Do: func() (any, error) {
					defer wg.Done()
					extract(i)
					return nil, errs[i]
				},
			})
		}
		wg.Wait()
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return meshes, nil
}

func (e *gltfMeshExtractorImpl) extractPrimitive(prim *gltfPrimitive, meshName string, primIndex int) (common.ImportedMesh, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		return common.ImportedMesh{}, fmt.Errorf("unsupported primitive mode: %d (only triangles supported)", *prim.Mode)
	}

	posAccessor, ok := prim.Attributes["POSITION"]
	if !ok {
		return common.ImportedMesh{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := e.parser.ReadVec3Accessor(posAccessor)
	if err != nil {
		return common.ImportedMesh{}, fmt.Errorf("failed to read positions: %w", err)
	}

	vertices := make([]common.Vertex, len(positions))
	for i, pos := range positions {
		vertices[i].Position = pos
	}

	hasNormals := false
	if accessor, ok := prim.Attributes["NORMAL"]; ok {
		normals, err := e.parser.ReadVec3Accessor(accessor)
		if err != nil {
			return common.ImportedMesh{}, fmt.Errorf("failed to read normals: %w", err)
		}
		for i := range min(len(normals), len(vertices)) {
			vertices[i].Normal = normals[i]
		}
		hasNormals = true
	}

	if accessor, ok := prim.Attributes["TEXCOORD_0"]; ok {
		uvs, err := e.parser.ReadVec2Accessor(accessor)
		if err != nil {
			return common.ImportedMesh{}, fmt.Errorf("failed to read texcoords: %w", err)
		}
		for i := range min(len(uvs), len(vertices)) {
			vertices[i].UV = uvs[i]
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		indices, err = e.parser.ReadIndicesAccessor(*prim.Indices)
		if err != nil {
			return common.ImportedMesh{}, fmt.Errorf("failed to read indices: %w", err)
		}
		for _, idx := range indices {
			if int(idx) >= len(vertices) {
				return common.ImportedMesh{}, fmt.Errorf("index %d out of range for %d vertices", idx, len(vertices))
			}
		}
	} else {
		indices = make([]uint32, len(vertices))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if !hasNormals && len(indices) >= 3 {
		generateNormals(vertices, indices)
	}

	name := meshName
	if name == "" {
		name = fmt.Sprintf("mesh_%d", primIndex)
	}
	if primIndex > 0 {
		name = fmt.Sprintf("%s_prim%d", name, primIndex)
	}

	return common.ImportedMesh{Name: name, Vertices: vertices, Indices: indices}, nil
}

// generateNormals fills smooth vertex normals when the file has none: each triangle's
// area-weighted face normal is accumulated onto its three vertices, then normalized.
// Degenerate vertices get +Z.
//
// Parameters:
//   - vertices: the vertex slice to write normal data into
//   - indices: the triangle index buffer, already range checked
func generateNormals(vertices []common.Vertex, indices []uint32) {
	accum := make([][3]float32, len(vertices))

	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0, p1, p2 := vertices[i0].Position, vertices[i1].Position, vertices[i2].Position

		e1 := [3]float32{p1[0] - p0[0], p1[1] - p0[1], p1[2] - p0[2]}
		e2 := [3]float32{p2[0] - p0[0], p2[1] - p0[1], p2[2] - p0[2]}
		face := [3]float32{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}

		for _, idx := range [3]uint32{i0, i1, i2} {
			accum[idx][0] += face[0]
			accum[idx][1] += face[1]
			accum[idx][2] += face[2]
		}
	}

	for i, n := range accum {
		length := float32(math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])))
		if length < 1e-6 {
			vertices[i].Normal = [3]float32{0, 0, 1}
			continue
		}
		vertices[i].Normal = [3]float32{n[0] / length, n[1] / length, n[2] / length}
	}
}
