// Package queue implements the deferred mutation queue: changes to per-frame GPU binding state
// that must be replayed once per frame slot instead of being applied to every slot at once.
package queue

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/resource"
)

// Mutation is one deferred change to per-slot binding state. Each variant carries its own typed
// fields; the Executor switches on the concrete type and ignores variants it does not know.
type Mutation interface {
	// Kind returns a short name for logs.
	Kind() string
}

// MeshBindTexture rebinds the texture sampled by a mesh in one render pass.
// A rebind-to-default carries the backend's default texture.
type MeshBindTexture struct {
	MeshID  resource.ID
	Pass    uint32
	Texture renderer.TextureHandle
}

// Kind returns "mesh_bind_texture".
func (MeshBindTexture) Kind() string {
	return "mesh_bind_texture"
}

// String formats the mutation for logs.
func (m MeshBindTexture) String() string {
	return fmt.Sprintf("mesh_bind_texture(mesh=%d pass=%d texture=%d)", m.MeshID, m.Pass, m.Texture)
}
