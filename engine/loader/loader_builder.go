package loader

import "github.com/Carmen-Shannon/oxy-render/common"

// LoaderBuilderOption is a functional option for configuring an Importer via NewImporter.
type LoaderBuilderOption func(*importer)

// WithDataDir sets the directory relative asset paths resolve against.
//
// Parameters:
//   - dir: the data directory, empty for the working directory
//
// Returns:
//   - LoaderBuilderOption: a function that applies the data directory option to an importer
func WithDataDir(dir string) LoaderBuilderOption {
	return func(imp *importer) {
		imp.dataDir = dir
	}
}

// WithWorkers sets how many worker goroutines decode glTF primitives. Values below 2 decode on
// the calling goroutine.
//
// Parameters:
//   - n: the number of workers
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to an importer
func WithWorkers(n int) LoaderBuilderOption {
	return func(imp *importer) {
		imp.workers = n
	}
}

// WithCache enables or disables the asset cache.
func WithCache(enabled bool) LoaderBuilderOption {
	return func(imp *importer) {
		imp.caching = enabled
	}
}

// WithMesh pre-populates the mesh cache, so ImportMesh(key) returns meshes without touching disk.
//
// Parameters:
//   - key: the path clients will send
//   - meshes: the sub-meshes to return
//
// Returns:
//   - LoaderBuilderOption: a function that applies the mesh option to an importer
func WithMesh(key string, meshes []common.ImportedMesh) LoaderBuilderOption {
	return func(imp *importer) {
		imp.meshCache[key] = meshes
	}
}

// WithImage pre-populates the image cache.
//
// Parameters:
//   - key: the path clients will send
//   - img: the decoded image to return
//
// Returns:
//   - LoaderBuilderOption: a function that applies the image option to an importer
func WithImage(key string, img *common.ImportedImage) LoaderBuilderOption {
	return func(imp *importer) {
		imp.imageCache[key] = img
	}
}
