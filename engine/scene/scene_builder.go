package scene

import "io"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *sceneImpl)

// WithName sets the scene's identifier.
//
// Parameters:
//   - name: the scene name
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithName(name string) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.name = name
	}
}

// WithConn attaches the client connection. The scene closes it on Release.
//
// Parameters:
//   - conn: the client connection
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithConn(conn io.Closer) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.conn = conn
	}
}

// WithCulling skips meshes whose bounds lie outside the viewpoint's frustum when building the
// frame's draw list.
//
// Parameters:
//   - enabled: if true, enables frustum culling
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithCulling(enabled bool) SceneBuilderOption {
	return func(s *sceneImpl) {
		s.cull = enabled
	}
}
