package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// vertexFormat is a wgpu vertex format and its byte size.
type vertexFormat struct {
	format wgpu.VertexFormat
	size   uint64
}

// typeLayout is the byte size and alignment of a host-shareable WGSL type.
type typeLayout struct {
	size  uint64
	align uint64
}

type structField struct {
	name     string
	typeName string
	location int
	builtin  bool
}

type structDecl struct {
	name   string
	fields []structField
}

var vertexFormats = map[string]vertexFormat{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2f":     {wgpu.VertexFormatFloat32x2, 8},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3f":     {wgpu.VertexFormatFloat32x3, 12},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4f":     {wgpu.VertexFormatFloat32x4, 16},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"i32":       {wgpu.VertexFormatSint32, 4},
}

var primitiveLayouts = map[string]typeLayout{
	"f32":         {4, 4},
	"i32":         {4, 4},
	"u32":         {4, 4},
	"vec2<f32>":   {8, 8},
	"vec2f":       {8, 8},
	"vec3<f32>":   {12, 16},
	"vec3f":       {12, 16},
	"vec4<f32>":   {16, 16},
	"vec4f":       {16, 16},
	"vec4<u32>":   {16, 16},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
	"mat4x4f":     {64, 16},
}

var (
	structRegex      = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)
	locationRegex    = regexp.MustCompile(`@location\((\d+)\)`)
	builtinRegex     = regexp.MustCompile(`@builtin\(\w+\)`)
	fieldRegex       = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)
	vertexRegex      = regexp.MustCompile(`(?s)@vertex\s+fn\s+(\w+)`)
	fragmentRegex    = regexp.MustCompile(`(?s)@fragment\s+fn\s+(\w+)`)
	resourceRegex    = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
	lineCommentRegex = regexp.MustCompile(`//[^\n]*`)
)

// stripComments removes line comments. The shaders this package loads use no block comments.
func stripComments(source string) string {
	return lineCommentRegex.ReplaceAllString(source, "")
}

// entryPoints returns the names of the @vertex and @fragment functions, empty when missing.
func entryPoints(source string) (vertex, fragment string) {
	if m := vertexRegex.FindStringSubmatch(source); m != nil {
		vertex = m[1]
	}
	if m := fragmentRegex.FindStringSubmatch(source); m != nil {
		fragment = m[1]
	}
	return vertex, fragment
}

func parseStructs(source string) []structDecl {
	matches := structRegex.FindAllStringSubmatch(source, -1)
	out := make([]structDecl, 0, len(matches))
	for _, m := range matches {
		out = append(out, structDecl{name: m[1], fields: parseFields(m[2])})
	}
	return out
}

func parseFields(body string) []structField {
	var fields []structField
	for _, part := range splitTopLevel(body) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fm := fieldRegex.FindStringSubmatch(part)
		if fm == nil {
			continue
		}
		f := structField{
			name:     fm[1],
			typeName: strings.TrimSpace(fm[2]),
			location: -1,
			builtin:  builtinRegex.MatchString(part),
		}
		if lm := locationRegex.FindStringSubmatch(part); lm != nil {
			f.location, _ = strconv.Atoi(lm[1])
		}
		fields = append(fields, f)
	}
	return fields
}

// splitTopLevel splits a struct body at commas outside angle brackets, so array<T, N> stays whole.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// vertexLayouts builds one buffer layout per vertex input struct: a struct with @location fields
// and no @builtin field. Attributes are packed in declaration order.
func vertexLayouts(structs []structDecl) []wgpu.VertexBufferLayout {
	var layouts []wgpu.VertexBufferLayout
	for _, s := range structs {
		if !isVertexInput(s) {
			continue
		}
		attrs := make([]wgpu.VertexAttribute, 0, len(s.fields))
		var offset uint64
		ok := true
		for _, f := range s.fields {
			vf, known := vertexFormats[f.typeName]
			if !known {
				ok = false
				break
			}
			attrs = append(attrs, wgpu.VertexAttribute{
				Format:         vf.format,
				Offset:         offset,
				ShaderLocation: uint32(f.location),
			})
			offset += vf.size
		}
		if ok {
			layouts = append(layouts, wgpu.VertexBufferLayout{
				ArrayStride: offset,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes:  attrs,
			})
		}
	}
	return layouts
}

func isVertexInput(s structDecl) bool {
	located := false
	for _, f := range s.fields {
		if f.builtin {
			return false
		}
		if f.location >= 0 {
			located = true
		}
	}
	return located
}

func alignUp(align, v uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// resolveLayout returns the layout of a primitive, a known struct or a fixed-size array.
func resolveLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	if l, ok := primitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	if inner, ok := strings.CutPrefix(typeName, "array<"); ok {
		elem, count, found := strings.Cut(strings.TrimSuffix(inner, ">"), ",")
		if !found {
			return typeLayout{}, false
		}
		el, ok := resolveLayout(strings.TrimSpace(elem), known)
		if !ok {
			return typeLayout{}, false
		}
		n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
		if err != nil {
			return typeLayout{}, false
		}
		return typeLayout{size: n * alignUp(el.align, el.size), align: el.align}, true
	}
	return typeLayout{}, false
}

// structLayouts computes the size and alignment of every struct that only uses resolvable
// types, resolving nested structs in as many passes as needed.
func structLayouts(structs []structDecl) map[string]typeLayout {
	known := make(map[string]typeLayout, len(structs))
	pending := structs
	for len(pending) > 0 {
		var next []structDecl
		for _, s := range pending {
			var offset uint64
			maxAlign := uint64(1)
			ok := true
			for _, f := range s.fields {
				if f.builtin {
					continue
				}
				fl, found := resolveLayout(f.typeName, known)
				if !found {
					ok = false
					break
				}
				offset = alignUp(fl.align, offset) + fl.size
				maxAlign = max(maxAlign, fl.align)
			}
			if ok {
				known[s.name] = typeLayout{size: alignUp(maxAlign, offset), align: maxAlign}
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return known
}

// bindGroupLayouts collects the @group/@binding declarations into layout descriptors keyed by
// group. Uniform buffers get MinBindingSize from the bound struct.
func bindGroupLayouts(source string, structs []structDecl, visibility wgpu.ShaderStage) map[int]wgpu.BindGroupLayoutDescriptor {
	sizes := structLayouts(structs)
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)

	for _, m := range resourceRegex.FindAllStringSubmatch(source, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		space := strings.TrimSpace(m[3])
		typeName := strings.TrimSpace(m[5])

		entry := wgpu.BindGroupLayoutEntry{
			Binding:    uint32(binding),
			Visibility: visibility,
		}
		switch {
		case space == "uniform":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
			if l, ok := resolveLayout(typeName, sizes); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		case strings.HasPrefix(space, "storage"):
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			if strings.Contains(space, "read_write") {
				entry.Buffer.Type = wgpu.BufferBindingTypeStorage
			}
		case typeName == "sampler":
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case strings.HasPrefix(typeName, "texture_2d"):
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		}
		groups[group] = append(groups[group], entry)
	}

	out := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Binding < entries[j].Binding })
		out[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}
	return out
}
