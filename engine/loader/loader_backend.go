package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// loaderBackend imports the sub-meshes of one model file format. Concrete implementations
// (e.g., gltfLoaderBackend) handle format-specific details.
type loaderBackend interface {
	// LoadMeshes imports every sub-mesh of the file at path.
	//
	// Parameters:
	//   - path: the resolved file path
	//
	// Returns:
	//   - []common.ImportedMesh: the sub-meshes in file order
	//   - error: error if the file cannot be read or decoded
	LoadMeshes(path string) ([]common.ImportedMesh, error)

	// LoadMeshesReader imports every sub-mesh from a stream.
	//
	// Parameters:
	//   - r: the file contents
	//   - isBinary: true for the format's binary container (GLB for glTF)
	//   - baseDir: the directory external resources resolve against
	//
	// Returns:
	//   - []common.ImportedMesh: the sub-meshes in file order
	//   - error: error if decoding fails
	LoadMeshesReader(r io.Reader, isBinary bool, baseDir string) ([]common.ImportedMesh, error)
}
