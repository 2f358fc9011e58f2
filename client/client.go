// Package client speaks the render server's command protocol.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Carmen-Shannon/oxy-render/engine/protocol"
)

// Client sends commands to a render server. Every command is written in a single write, so a
// Client is safe for concurrent use.
type Client interface {
	// Send writes one command.
	//
	// Parameters:
	//   - cmd: the command
	//
	// Returns:
	//   - error: an encoding or write error
	Send(cmd protocol.Command) error

	// Configure announces the protocol version this package speaks.
	Configure() error

	// CreateMesh asks the server to import the asset at path as mesh id.
	CreateMesh(id int32, path string) error

	// SetShader selects the shader mesh id is drawn with.
	SetShader(id int32, shader uint32) error

	// BindTexture makes mesh sample texture in the given render pass.
	BindTexture(mesh, texture int32, pass uint32) error

	// TransformMesh sets a mesh's location, rotation in radians and scale.
	TransformMesh(id int32, location, rotation, scale [3]float32) error

	// DeleteMesh destroys a mesh.
	DeleteMesh(id int32) error

	// CreateLight adds a point light.
	CreateLight(id int32, location, colour [3]float32, intensity, distance float32) error

	// MoveLight moves a point light.
	MoveLight(id int32, location [3]float32) error

	// SetLightColour changes a point light's colour and intensity.
	SetLightColour(id int32, colour [3]float32, intensity float32) error

	// DeleteLight removes a point light.
	DeleteLight(id int32) error

	// CreateTexture asks the server to import the image at path as texture id.
	CreateTexture(id int32, path string) error

	// DeleteTexture destroys a texture.
	DeleteTexture(id int32) error

	// SetViewpoint places the scene camera.
	SetViewpoint(eye, centre [3]float32, fov float32) error

	// Close announces the disconnect and closes the connection. The server then releases the
	// scene.
	Close() error
}

type clientImpl struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
}

var _ Client = &clientImpl{}

// Dial connects to a render server. Addresses starting with ws:// or wss:// use the websocket
// transport; anything else is a unix socket path, optionally prefixed with unix:.
//
// Parameters:
//   - ctx: bounds the connection attempt
//   - addr: the server address
//
// Returns:
//   - Client: the connected client
//   - error: error if the connection failed
func Dial(ctx context.Context, addr string) (Client, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
		}
		return &clientImpl{w: &wsWriter{conn: conn}, closer: conn}, nil
	}

	path := strings.TrimPrefix(addr, "unix:")
	if path == "" {
		return nil, errors.New("empty server address")
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", path, err)
	}
	return &clientImpl{w: conn, closer: conn}, nil
}

// NewClient wraps an established stream, e.g. one end of net.Pipe.
//
// Parameters:
//   - w: the stream commands are written to; closed by Close if it is an io.Closer
//
// Returns:
//   - Client: the client
func NewClient(w io.Writer) Client {
	c := &clientImpl{w: w}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

func (c *clientImpl) Send(cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	return protocol.WriteCommand(c.w, cmd)
}

func (c *clientImpl) Configure() error {
	return c.Send(protocol.Configure{Major: protocol.VersionMajor, Minor: protocol.VersionMinor})
}

func (c *clientImpl) CreateMesh(id int32, path string) error {
	return c.Send(protocol.MeshCreate{MeshID: id, Path: path})
}

func (c *clientImpl) SetShader(id int32, shader uint32) error {
	return c.Send(protocol.MeshSetShader{MeshID: id, Shader: shader})
}

func (c *clientImpl) BindTexture(mesh, texture int32, pass uint32) error {
	return c.Send(protocol.MeshBindTexture{MeshID: mesh, TextureID: texture, Target: pass})
}

func (c *clientImpl) TransformMesh(id int32, location, rotation, scale [3]float32) error {
	return c.Send(protocol.MeshTransform{MeshID: id, Location: location, Rotation: rotation, Scale: scale})
}

func (c *clientImpl) DeleteMesh(id int32) error {
	return c.Send(protocol.MeshDelete{MeshID: id})
}

func (c *clientImpl) CreateLight(id int32, location, colour [3]float32, intensity, distance float32) error {
	return c.Send(protocol.PointLightCreate{LightID: id, Location: location, Colour: colour, Intensity: intensity, Distance: distance})
}

func (c *clientImpl) MoveLight(id int32, location [3]float32) error {
	return c.Send(protocol.PointLightTransform{LightID: id, Location: location})
}

func (c *clientImpl) SetLightColour(id int32, colour [3]float32, intensity float32) error {
	return c.Send(protocol.PointLightSetColour{LightID: id, Colour: colour, Intensity: intensity})
}

func (c *clientImpl) DeleteLight(id int32) error {
	return c.Send(protocol.PointLightDelete{LightID: id})
}

func (c *clientImpl) CreateTexture(id int32, path string) error {
	return c.Send(protocol.TextureCreate{TextureID: id, Path: path})
}

func (c *clientImpl) DeleteTexture(id int32) error {
	return c.Send(protocol.TextureDelete{TextureID: id})
}

func (c *clientImpl) SetViewpoint(eye, centre [3]float32, fov float32) error {
	return c.Send(protocol.ViewpointTransform{Eye: eye, Centre: centre, FOV: fov})
}

func (c *clientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_, werr := c.w.Write([]byte{byte(protocol.OpNul)})
	if c.closer == nil {
		return werr
	}
	return errors.Join(werr, c.closer.Close())
}

// wsWriter sends each Write as one binary message.
type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
