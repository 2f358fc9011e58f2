package resource

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
)

// Binding is one (mesh, pass) pair sampling a texture.
type Binding struct {
	MeshID ID
	Pass   uint32
}

// Texture is a sampled image owned by a scene.
type Texture struct {
	// Handle refers to the texture's image, view and sampler.
	Handle renderer.TextureHandle
	// Width is the width of mip level 0 in pixels.
	Width uint32
	// Height is the height of mip level 0 in pixels.
	Height uint32
	// MipLevels is floor(log2(max(Width, Height))), at least 1.
	MipLevels uint32
	// Source is the image path the texture was imported from.
	Source string

	bound []Binding
}

// Bind records that mesh samples this texture in pass. Recording the same pair twice is a no-op.
func (t *Texture) Bind(meshID ID, pass uint32) {
	b := Binding{MeshID: meshID, Pass: pass}
	if slices.Contains(t.bound, b) {
		return
	}
	t.bound = append(t.bound, b)
}

// Unbind forgets the (mesh, pass) pair.
//
// Returns:
//   - bool: true if the pair was bound
func (t *Texture) Unbind(meshID ID, pass uint32) bool {
	i := slices.Index(t.bound, Binding{MeshID: meshID, Pass: pass})
	if i < 0 {
		return false
	}
	t.bound = slices.Delete(t.bound, i, i+1)
	return true
}

// UnbindMesh forgets every pass of meshID.
func (t *Texture) UnbindMesh(meshID ID) {
	t.bound = slices.DeleteFunc(t.bound, func(b Binding) bool {
		return b.MeshID == meshID
	})
}

// Bindings returns a copy of the bound pairs in the order they were bound.
func (t *Texture) Bindings() []Binding {
	return slices.Clone(t.bound)
}
