// package common contains common types that are used throughout the server. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Vertex is the interleaved vertex layout uploaded to the GPU. Size: 32 bytes.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// ImportedMesh is one sub-mesh produced by the asset importer.
type ImportedMesh struct {
	// Name identifies the sub-mesh inside its source file.
	Name string
	// Vertices are the sub-mesh vertices.
	Vertices []Vertex
	// Indices index into Vertices, three per triangle.
	Indices []uint32
}

// MergedMesh is every sub-mesh of an asset flattened into a single drawable mesh.
type MergedMesh struct {
	Vertices []Vertex
	Indices  []uint32
	// Format is chosen from the vertex count before merging.
	Format IndexFormat
}

// MergeMeshes concatenates sub-meshes into one vertex and index list, re-basing each
// sub-mesh's indices onto its position in the merged vertex list.
//
// Parameters:
//   - meshes: the sub-meshes to merge
//
// Returns:
//   - MergedMesh: the merged geometry and its index format
func MergeMeshes(meshes []ImportedMesh) MergedMesh {
	totalVertices, totalIndices := 0, 0
	for _, m := range meshes {
		totalVertices += len(m.Vertices)
		totalIndices += len(m.Indices)
	}

	merged := MergedMesh{
		Vertices: make([]Vertex, 0, totalVertices),
		Indices:  make([]uint32, 0, totalIndices),
		Format:   IndexFormatFor(totalVertices),
	}
	for _, m := range meshes {
		offset := uint32(len(merged.Vertices))
		merged.Vertices = append(merged.Vertices, m.Vertices...)
		for _, idx := range m.Indices {
			merged.Indices = append(merged.Indices, idx+offset)
		}
	}
	return merged
}

// IndexBytes encodes the merged indices at the mesh's index width.
func (m MergedMesh) IndexBytes() []byte {
	if m.Format == IndexFormatUint32 {
		return SliceToBytes(m.Indices)
	}
	narrow := make([]uint16, len(m.Indices))
	for i, idx := range m.Indices {
		narrow[i] = uint16(idx)
	}
	return SliceToBytes(narrow)
}

// TextureStagingData holds RGBA pixel data for one texture level pending GPU upload.
type TextureStagingData struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the level width in pixels.
	Width uint32
	// Height is the level height in pixels.
	Height uint32
}

// ImportedImage is a decoded image ready to become a texture.
type ImportedImage struct {
	// Path is where the image was loaded from, empty for in-memory images.
	Path string
	// Pixels is RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the image width in pixels.
	Width uint32
	// Height is the image height in pixels.
	Height uint32
}

// DecodeImage decodes a PNG, JPEG, BMP, TIFF or WebP stream into RGBA pixels.
// Reference: https://pkg.go.dev/image
//
// Parameters:
//   - r: the encoded image stream
//
// Returns:
//   - *ImportedImage: the decoded image
//   - error: error if the format is unknown or decoding fails
func DecodeImage(r io.Reader) (*ImportedImage, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &ImportedImage{
		Pixels: rgba.Pix,
		Width:  uint32(bounds.Dx()),
		Height: uint32(bounds.Dy()),
	}, nil
}

// SolidImage returns a width x height image filled with one RGBA colour.
func SolidImage(width, height uint32, colour [4]byte) *ImportedImage {
	pixels := make([]byte, int(width)*int(height)*4)
	for i := 0; i < len(pixels); i += 4 {
		copy(pixels[i:i+4], colour[:])
	}
	return &ImportedImage{Pixels: pixels, Width: width, Height: height}
}

// MipChain returns the image scaled down into the given number of levels. Level 0 is the
// image itself, each following level halves both dimensions (minimum 1 pixel).
//
// Parameters:
//   - levels: number of levels to produce, at least 1
//
// Returns:
//   - []TextureStagingData: one entry per level
func (img *ImportedImage) MipChain(levels uint32) []TextureStagingData {
	levels = max(levels, 1)
	chain := make([]TextureStagingData, 0, levels)
	chain = append(chain, TextureStagingData{Pixels: img.Pixels, Width: img.Width, Height: img.Height})

	src := &image.RGBA{
		Pix:    img.Pixels,
		Stride: int(img.Width) * 4,
		Rect:   image.Rect(0, 0, int(img.Width), int(img.Height)),
	}
	for level := uint32(1); level < levels; level++ {
		w := max(src.Rect.Dx()/2, 1)
		h := max(src.Rect.Dy()/2, 1)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
		chain = append(chain, TextureStagingData{Pixels: dst.Pix, Width: uint32(w), Height: uint32(h)})
		src = dst
	}
	return chain
}
