package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// triangleBuffer returns three VEC3 positions followed by three uint16 indices.
func triangleBuffer() []byte {
	var buf bytes.Buffer
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	_ = binary.Write(&buf, binary.LittleEndian, positions)
	_ = binary.Write(&buf, binary.LittleEndian, []uint16{0, 1, 2})
	return buf.Bytes()
}

// triangleDocument builds a glTF document with two primitives sharing one position accessor:
// the first indexed, the second without indices. uri overrides the embedded buffer when set.
func triangleDocument(t *testing.T, uri string, byteLength int) []byte {
	t.Helper()
	if uri == "" {
		uri = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(triangleBuffer())
	}
	doc := map[string]any{
		"asset": map[string]any{"version": "2.0"},
		"meshes": []any{map[string]any{
			"name": "tri",
			"primitives": []any{
				map[string]any{"attributes": map[string]int{"POSITION": 0}, "indices": 1},
				map[string]any{"attributes": map[string]int{"POSITION": 0}},
			},
		}},
		"accessors": []any{
			map[string]any{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 3, "type": "VEC3"},
			map[string]any{"bufferView": 1, "componentType": gltfComponentTypeUnsignedShort, "count": 3, "type": "SCALAR"},
		},
		"bufferViews": []any{
			map[string]any{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			map[string]any{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		},
		"buffers": []any{map[string]any{"uri": uri, "byteLength": byteLength}},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newTestImporter(t *testing.T, options ...LoaderBuilderOption) Importer {
	t.Helper()
	imp := NewImporter(options...)
	t.Cleanup(imp.Close)
	return imp
}

func TestImportMeshEmbeddedBuffer(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tri.gltf", triangleDocument(t, "", 42))

	for _, workers := range []int{1, 4} {
		imp := newTestImporter(t, WithDataDir(dir), WithWorkers(workers))
		meshes, err := imp.ImportMesh("tri.gltf")
		if err != nil {
			t.Fatalf("workers=%d: ImportMesh: %v", workers, err)
		}
		if len(meshes) != 2 {
			t.Fatalf("workers=%d: got %d meshes, want 2", workers, len(meshes))
		}
		if meshes[0].Name != "tri" || meshes[1].Name != "tri_prim1" {
			t.Errorf("names = %q %q", meshes[0].Name, meshes[1].Name)
		}
		for i, m := range meshes {
			if len(m.Vertices) != 3 || len(m.Indices) != 3 {
				t.Fatalf("mesh %d: %d vertices %d indices", i, len(m.Vertices), len(m.Indices))
			}
			if m.Vertices[1].Position != [3]float32{1, 0, 0} {
				t.Errorf("mesh %d: vertex 1 = %v", i, m.Vertices[1].Position)
			}
			// Counter-clockwise in the XY plane, generated normals point along +Z.
			if m.Vertices[0].Normal != [3]float32{0, 0, 1} {
				t.Errorf("mesh %d: normal = %v", i, m.Vertices[0].Normal)
			}
		}
	}
}

func TestImportMeshExternalBufferAndGLB(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tri.bin", triangleBuffer())
	writeFile(t, dir, "tri.gltf", triangleDocument(t, "tri.bin", 42))

	imp := newTestImporter(t, WithDataDir(dir), WithWorkers(1))
	if _, err := imp.ImportMesh("tri.gltf"); err != nil {
		t.Fatalf("external buffer: %v", err)
	}

	jsonChunk := triangleDocument(t, "", 42)
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}
	var glb bytes.Buffer
	_ = binary.Write(&glb, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(12 + 8 + len(jsonChunk))})
	_ = binary.Write(&glb, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(jsonChunk)), ChunkType: gltfGLBChunkJSON})
	glb.Write(jsonChunk)

	meshes, err := imp.ImportMeshReader("tri.glb", &glb, true)
	if err != nil {
		t.Fatalf("GLB: %v", err)
	}
	if len(meshes) != 2 {
		t.Fatalf("GLB: got %d meshes", len(meshes))
	}
}

func TestImportMeshCaches(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "tri.gltf", triangleDocument(t, "", 42))
	imp := newTestImporter(t, WithDataDir(dir))

	first, err := imp.ImportMesh("tri.gltf")
	if err != nil {
		t.Fatalf("ImportMesh: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "tri.gltf")); err != nil {
		t.Fatal(err)
	}
	second, err := imp.ImportMesh("tri.gltf")
	if err != nil {
		t.Fatalf("cached ImportMesh: %v", err)
	}
	if &first[0] != &second[0] {
		t.Fatal("second import did not come from the cache")
	}
}

func TestImportMeshErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "short.gltf", triangleDocument(t, "", 20))
	writeFile(t, dir, "model.obj", []byte("v 0 0 0"))
	writeFile(t, dir, "garbage.gltf", []byte("{"))

	imp := newTestImporter(t, WithDataDir(dir), WithWorkers(1))
	if _, err := imp.ImportMesh("missing.gltf"); !errors.Is(err, common.ErrResourceNotFound) {
		t.Errorf("missing file: got %v, want ErrResourceNotFound", err)
	}
	if _, err := imp.ImportMesh("model.obj"); err == nil {
		t.Error("unsupported extension: expected error")
	}
	if _, err := imp.ImportMesh("garbage.gltf"); err == nil {
		t.Error("bad JSON: expected error")
	}
	// A declared byteLength shorter than the decoded data is accepted.
	if _, err := imp.ImportMesh("short.gltf"); err != nil {
		t.Errorf("short declared length: %v", err)
	}
}

func TestAccessorBoundsChecked(t *testing.T) {
	doc := triangleDocument(t, "data:application/octet-stream;base64,"+base64.StdEncoding.EncodeToString(triangleBuffer()[:30]), 30)
	p := newGLTFParser()
	if err := p.ParseReader(bytes.NewReader(doc), false, ""); err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if _, err := p.ReadVec3Accessor(0); !errors.Is(err, errAccessorBounds) {
		t.Fatalf("got %v, want errAccessorBounds", err)
	}
}

func TestImportMeshRejectsEmptyAccessors(t *testing.T) {
	for _, tt := range []struct {
		name     string
		accessor int
	}{
		{"positions", 0},
		{"indices", 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			if err := json.Unmarshal(triangleDocument(t, "", 42), &doc); err != nil {
				t.Fatal(err)
			}
			doc["accessors"].([]any)[tt.accessor].(map[string]any)["count"] = 0
			data, err := json.Marshal(doc)
			if err != nil {
				t.Fatal(err)
			}
			dir := t.TempDir()
			writeFile(t, dir, "empty.gltf", data)

			imp := newTestImporter(t, WithDataDir(dir), WithWorkers(1))
			meshes, err := imp.ImportMesh("empty.gltf")
			if !errors.Is(err, errAccessorEmpty) {
				t.Fatalf("got %d meshes, err %v, want errAccessorEmpty", len(meshes), err)
			}
		})
	}
}

func TestImportImage(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "tex.png", buf.Bytes())

	imp := newTestImporter(t, WithDataDir(dir))
	got, err := imp.ImportImage("tex.png")
	if err != nil {
		t.Fatalf("ImportImage: %v", err)
	}
	if got.Width != 3 || got.Height != 2 || got.Path != "tex.png" {
		t.Fatalf("image = %dx%d %q", got.Width, got.Height, got.Path)
	}
	last := got.Pixels[len(got.Pixels)-4:]
	if !bytes.Equal(last, []byte{10, 20, 30, 255}) {
		t.Fatalf("last pixel = %v", last)
	}

	if _, err := imp.ImportImage("nope.png"); !errors.Is(err, common.ErrResourceNotFound) {
		t.Fatalf("missing image: got %v", err)
	}
}

func TestPreloadedAssets(t *testing.T) {
	mesh := []common.ImportedMesh{{Name: "big", Vertices: make([]common.Vertex, 40000)}}
	solid := common.SolidImage(300, 300, [4]byte{255, 255, 255, 255})
	imp := newTestImporter(t, WithMesh("big.gltf", mesh), WithImage("white.png", solid))

	got, err := imp.ImportMesh("big.gltf")
	if err != nil || len(got) != 1 || len(got[0].Vertices) != 40000 {
		t.Fatalf("ImportMesh = %v, %v", len(got), err)
	}
	if img, err := imp.ImportImage("white.png"); err != nil || img != solid {
		t.Fatalf("ImportImage = %v, %v", img, err)
	}
}
