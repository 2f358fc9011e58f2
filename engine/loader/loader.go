// Package loader imports mesh and image files for the render server. Model formats sit behind a
// loaderBackend selected by file extension; decoded assets are cached by the path the client sent.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/common"
)

const (
	poolQueueSize   = 256
	poolIdleTimeout = time.Second
)

// importer is the implementation of the Importer interface.
type importer struct {
	mu sync.RWMutex

	dataDir string
	workers int
	caching bool

	meshCache  map[string][]common.ImportedMesh
	imageCache map[string]*common.ImportedImage

	pool    worker.DynamicWorkerPool
	backend loaderBackend
}

// Importer turns asset paths into CPU-side geometry and pixels. Relative paths resolve against
// the data directory. Returned values may be shared with the cache and must not be modified.
type Importer interface {
	// ImportMesh imports every sub-mesh of a model file. The backend is selected based on the
	// file extension (.gltf/.glb select the glTF backend).
	//
	// Parameters:
	//   - path: the model path, relative to the data directory or absolute
	//
	// Returns:
	//   - []common.ImportedMesh: the sub-meshes in file order
	//   - error: ErrResourceNotFound for a missing file, otherwise a decode error
	ImportMesh(path string) ([]common.ImportedMesh, error)

	// ImportMeshReader imports a model from a stream and caches it under name.
	//
	// Parameters:
	//   - name: the cache key, its extension selects the backend
	//   - r: the file contents
	//   - isBinary: true for the format's binary container
	//
	// Returns:
	//   - []common.ImportedMesh: the sub-meshes in file order
	//   - error: error if decoding fails
	ImportMeshReader(name string, r io.Reader, isBinary bool) ([]common.ImportedMesh, error)

	// ImportImage decodes a PNG, JPEG, BMP, TIFF or WebP file into RGBA pixels.
	//
	// Parameters:
	//   - path: the image path, relative to the data directory or absolute
	//
	// Returns:
	//   - *common.ImportedImage: the decoded image
	//   - error: ErrResourceNotFound for a missing file, otherwise a decode error
	ImportImage(path string) (*common.ImportedImage, error)

	// DataDir returns the directory relative paths resolve against.
	DataDir() string

	// Close stops the worker pool and drops the caches.
	Close()
}

var _ Importer = &importer{}

// NewImporter creates an Importer with the options applied. By default paths resolve against
// the working directory, assets are cached, and glTF primitives decode on runtime.NumCPU workers.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions
//
// Returns:
//   - Importer: the configured importer
func NewImporter(options ...LoaderBuilderOption) Importer {
	imp := &importer{
		mu:         sync.RWMutex{},
		workers:    runtime.NumCPU(),
		caching:    true,
		meshCache:  make(map[string][]common.ImportedMesh),
		imageCache: make(map[string]*common.ImportedImage),
	}
	for _, option := range options {
		option(imp)
	}

	if imp.workers > 1 {
		imp.pool = worker.NewDynamicWorkerPool(imp.workers, poolQueueSize, poolIdleTimeout)
	}
	imp.backend = newGLTFLoaderBackend(imp.pool)
	return imp
}

func (imp *importer) DataDir() string {
	return imp.dataDir
}

func (imp *importer) ImportMesh(path string) ([]common.ImportedMesh, error) {
	if meshes, ok := imp.cachedMesh(path); ok {
		return meshes, nil
	}

	backend, err := imp.resolveBackend(path)
	if err != nil {
		return nil, err
	}

	full := imp.resolve(path)
	if err := checkExists(full); err != nil {
		return nil, err
	}

	meshes, err := backend.LoadMeshes(full)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	imp.storeMesh(path, meshes)
	common.Logger().Debug("imported mesh", "path", path, "primitives", len(meshes))
	return meshes, nil
}

func (imp *importer) ImportMeshReader(name string, r io.Reader, isBinary bool) ([]common.ImportedMesh, error) {
	if meshes, ok := imp.cachedMesh(name); ok {
		return meshes, nil
	}

	backend, err := imp.resolveBackend(name)
	if err != nil {
		return nil, err
	}

	meshes, err := backend.LoadMeshesReader(r, isBinary, imp.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}

	imp.storeMesh(name, meshes)
	return meshes, nil
}

func (imp *importer) ImportImage(path string) (*common.ImportedImage, error) {
	imp.mu.RLock()
	if cached, ok := imp.imageCache[path]; ok {
		imp.mu.RUnlock()
		return cached, nil
	}
	imp.mu.RUnlock()

	f, err := os.Open(imp.resolve(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: image %s: %w", common.ErrResourceNotFound, path, err)
		}
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	defer f.Close()

	img, err := common.DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	img.Path = path

	if imp.caching {
		imp.mu.Lock()
		imp.imageCache[path] = img
		imp.mu.Unlock()
	}
	common.Logger().Debug("imported image", "path", path, "width", img.Width, "height", img.Height)
	return img, nil
}

func (imp *importer) Close() {
	if imp.pool != nil {
		imp.pool.Stop()
	}
	imp.mu.Lock()
	clear(imp.meshCache)
	clear(imp.imageCache)
	imp.mu.Unlock()
}

func (imp *importer) cachedMesh(key string) ([]common.ImportedMesh, bool) {
	imp.mu.RLock()
	defer imp.mu.RUnlock()
	meshes, ok := imp.meshCache[key]
	return meshes, ok
}

func (imp *importer) storeMesh(key string, meshes []common.ImportedMesh) {
	if !imp.caching {
		return
	}
	imp.mu.Lock()
	imp.meshCache[key] = meshes
	imp.mu.Unlock()
}

// resolve joins a relative path onto the data directory.
func (imp *importer) resolve(path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) || imp.dataDir == "" {
		return path
	}
	return filepath.Join(imp.dataDir, path)
}

// resolveBackend selects a loader backend based on the file extension.
// Currently only glTF/GLB is supported.
func (imp *importer) resolveBackend(path string) (loaderBackend, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		return imp.backend, nil
	default:
		return nil, fmt.Errorf("unsupported model format: %q", ext)
	}
}

func checkExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", common.ErrResourceNotFound, path, err)
		}
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return nil
}
