package loader

import (
	"fmt"
	"io"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
)

// gltfLoaderBackendImpl is the loaderBackend for .gltf and .glb files.
type gltfLoaderBackendImpl struct {
	pool worker.DynamicWorkerPool
}

var _ loaderBackend = &gltfLoaderBackendImpl{}

// newGLTFLoaderBackend creates a glTF backend that decodes primitives on pool.
//
// Parameters:
//   - pool: the shared worker pool, nil to decode inline
//
// Returns:
//   - loaderBackend: the glTF backend
func newGLTFLoaderBackend(pool worker.DynamicWorkerPool) loaderBackend {
	return &gltfLoaderBackendImpl{pool: pool}
}

func (b *gltfLoaderBackendImpl) LoadMeshes(path string) ([]common.ImportedMesh, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return b.extract(parser)
}

func (b *gltfLoaderBackendImpl) LoadMeshesReader(r io.Reader, isBinary bool, baseDir string) ([]common.ImportedMesh, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isBinary, baseDir); err != nil {
		return nil, fmt.Errorf("failed to parse from reader: %w", err)
	}
	return b.extract(parser)
}

func (b *gltfLoaderBackendImpl) extract(parser gltfParser) ([]common.ImportedMesh, error) {
	meshes, err := newGLTFMeshExtractor(parser, b.pool).ExtractAllMeshes()
	if err != nil {
		return nil, fmt.Errorf("mesh extraction failed: %w", err)
	}
	if len(meshes) == 0 {
		return nil, fmt.Errorf("document has no mesh primitives")
	}
	return meshes, nil
}
