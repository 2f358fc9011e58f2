// Package shader loads the WGSL sources the render backend draws with and derives the
// pipeline metadata (vertex buffer layouts and bind group layouts) from them.
package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/naga"
)

// MeshSource is the built-in mesh shader: group 0 carries the viewpoint and the point light
// table, group 1 carries one mesh's model matrix, diffuse texture and sampler.
//
//go:embed assets/mesh.wgsl
var MeshSource string

// ErrInvalidShader is returned when WGSL source fails validation or has no usable entry points.
var ErrInvalidShader = errors.New("invalid shader")

// Shader is a validated WGSL module along with the layout metadata needed to build a render
// pipeline for it.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used as the module label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// VertexEntryPoint returns the name of the @vertex function.
	//
	// Returns:
	//   - string: the vertex entry point name
	VertexEntryPoint() string

	// FragmentEntryPoint returns the name of the @fragment function.
	//
	// Returns:
	//   - string: the fragment entry point name
	FragmentEntryPoint() string

	// VertexLayouts retrieves the vertex buffer layouts, one per vertex input struct.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts in declaration order
	VertexLayouts() []wgpu.VertexBufferLayout

	// BindGroupLayoutDescriptors retrieves the bind group layout descriptors parsed from the
	// @group/@binding declarations.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// Module returns the shader module descriptor built from the source.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	vertexEntryPoint           string
	fragmentEntryPoint         string
	vertexLayouts              []wgpu.VertexBufferLayout
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	module                     *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader validates the WGSL source and extracts its entry points and layouts.
//
// Parameters:
//   - key: a unique identifier for the shader, used as the module label
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the parsed shader
//   - error: ErrInvalidShader wrapped with the cause if validation fails or an entry point is missing
func NewShader(key, source string) (Shader, error) {
	if err := Validate(source); err != nil {
		return nil, fmt.Errorf("shader %s: %w", key, err)
	}

	clean := stripComments(source)
	vertex, fragment := entryPoints(clean)
	if vertex == "" || fragment == "" {
		return nil, fmt.Errorf("shader %s: missing @vertex or @fragment entry point: %w", key, ErrInvalidShader)
	}
	structs := parseStructs(clean)

	return &shader{
		key:                        key,
		source:                     source,
		vertexEntryPoint:           vertex,
		fragmentEntryPoint:         fragment,
		vertexLayouts:              vertexLayouts(structs),
		bindGroupLayoutDescriptors: bindGroupLayouts(clean, structs, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment),
		module: &wgpu.ShaderModuleDescriptor{
			Label: key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: source,
			},
		},
	}, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) VertexEntryPoint() string {
	return s.vertexEntryPoint
}

func (s *shader) FragmentEntryPoint() string {
	return s.fragmentEntryPoint
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

// Validate parses, lowers and validates WGSL with naga. Features naga does not implement yet
// are logged and let through, the driver compiles the module again anyway.
//
// Parameters:
//   - source: the WGSL source code
//
// Returns:
//   - error: ErrInvalidShader wrapped with the first problem found, nil if the source is valid
func Validate(source string) error {
	ast, err := naga.Parse(source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidShader, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		if unimplemented(err) {
			common.Logger().Debug("naga cannot lower shader, skipping validation", "error", err)
			return nil
		}
		return fmt.Errorf("%w: %w", ErrInvalidShader, err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		if unimplemented(err) {
			common.Logger().Debug("naga cannot validate shader, skipping validation", "error", err)
			return nil
		}
		return fmt.Errorf("%w: %w", ErrInvalidShader, err)
	}
	if len(verrs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidShader, verrs[0])
	}
	return nil
}

func unimplemented(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported")
}
