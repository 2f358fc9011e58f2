package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
)

// BackendType identifies the Backend implementation the server draws with.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU backend presenting into a window.
	BackendTypeWGPU BackendType = iota

	// BackendTypeHeadless selects the in-memory backend that draws nothing.
	BackendTypeHeadless
)

// String returns the flag spelling of the backend type.
func (t BackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeHeadless:
		return "headless"
	default:
		return fmt.Sprintf("BackendType(%d)", int(t))
	}
}

// ParseBackendType parses "wgpu" or "headless".
//
// Parameters:
//   - s: the backend name
//
// Returns:
//   - BackendType: the parsed type
//   - error: an error if the name is unknown
func ParseBackendType(s string) (BackendType, error) {
	switch s {
	case "wgpu", "":
		return BackendTypeWGPU, nil
	case "headless":
		return BackendTypeHeadless, nil
	default:
		return 0, fmt.Errorf("unknown backend %q", s)
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// MSAASampleCount controls the number of samples used for multisample anti-aliasing.
// WebGPU guarantees support for 1 (off) and 4.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4x multisample anti-aliasing.
	MSAA4x MSAASampleCount = 4
)

// NewRenderer opens a WebGPU backend presenting into win and drawing with the built-in mesh shader.
// Must be called on the thread that created the window.
//
// Parameters:
//   - win: the window to present into
//   - options: variadic list of RendererBuilderOption functions to configure the backend
//
// Returns:
//   - Backend: the ready backend
//   - error: wraps common.ErrBackendLost if no adapter, device or pipeline could be created
func NewRenderer(win window.Window, options ...RendererBuilderOption) (Backend, error) {
	cfg := rendererConfig{
		framesInFlight: DefaultFramesInFlight,
		presentMode:    PresentModeVSync,
		sampleCount:    MSAAOff,
		clearColor:     [4]float64{0.1, 0.1, 0.1, 1.0},
	}
	for _, opt := range options {
		opt(&cfg)
	}

	sh, err := shader.NewShader("mesh", shader.MeshSource)
	if err != nil {
		return nil, fmt.Errorf("failed to load mesh shader: %w", err)
	}
	return newWGPUBackend(win, sh, cfg)
}
