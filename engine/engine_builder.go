package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/transport"
)

// ServerBuilderOption is a functional option for configuring a Server.
// Use the With* functions to create options that are applied directly to the server instance.
type ServerBuilderOption func(*server)

// WithProfiling enables or disables per-second frame statistics in the log.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithProfiling(enabled bool) ServerBuilderOption {
	return func(s *server) {
		s.profilingEnabled = enabled
	}
}

// WithTargetFPS caps the frame rate. Values <= 0 will be treated as the default (60).
//
// Parameters:
//   - fps: maximum frames per second
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithTargetFPS(fps float64) ServerBuilderOption {
	return func(s *server) {
		if fps <= 0 {
			fps = DefaultTargetFPS
		}
		s.targetFPS = fps
	}
}

// WithIdleTimeout bounds how long the loop waits for client events. Values <= 0 will be treated
// as the default (500ms).
//
// Parameters:
//   - d: the wait bound
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithIdleTimeout(d time.Duration) ServerBuilderOption {
	return func(s *server) {
		if d <= 0 {
			d = DefaultIdleTimeout
		}
		s.idleTimeout = d
	}
}

// WithBackend sets the GPU backend frames are submitted to. The caller keeps ownership and
// closes it after Run returns.
//
// Parameters:
//   - b: the backend
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithBackend(b renderer.Backend) ServerBuilderOption {
	return func(s *server) {
		s.backend = b
	}
}

// WithImporter sets the asset importer used for MESH_CREATE and TEXTURE_CREATE.
//
// Parameters:
//   - imp: the importer
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithImporter(imp loader.Importer) ServerBuilderOption {
	return func(s *server) {
		s.importer = imp
	}
}

// WithDispatcher replaces the command dispatcher. WithDispatcherOptions is ignored when set.
//
// Parameters:
//   - d: the dispatcher
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithDispatcher(d dispatch.Dispatcher) ServerBuilderOption {
	return func(s *server) {
		s.dispatcher = d
	}
}

// WithDispatcherOptions configures the default dispatcher.
//
// Parameters:
//   - options: dispatcher options
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithDispatcherOptions(options ...dispatch.DispatcherBuilderOption) ServerBuilderOption {
	return func(s *server) {
		s.dispatchOps = append(s.dispatchOps, options...)
	}
}

// WithListener adds a transport listener. The server serves it for the duration of Run and
// closes it on exit.
//
// Parameters:
//   - l: the listener
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithListener(l transport.Listener) ServerBuilderOption {
	return func(s *server) {
		if l != nil {
			s.listeners = append(s.listeners, l)
		}
	}
}

// WithCulling enables view frustum culling of every scene's draw list.
//
// Parameters:
//   - enabled: if true, meshes outside a scene's viewpoint are not drawn
//
// Returns:
//   - ServerBuilderOption: option function to apply
func WithCulling(enabled bool) ServerBuilderOption {
	return func(s *server) {
		s.cull = enabled
	}
}
