package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Carmen-Shannon/oxy-render/common"
)

// WebSocketPath is the HTTP path the websocket listener upgrades on.
const WebSocketPath = "/ws"

type wsListener struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader

	mu     sync.Mutex
	ctx    context.Context
	events chan<- Event

	closeOnce sync.Once
	closeErr  error
}

var _ Listener = &wsListener{}

// ListenWebSocket binds a TCP address and serves websocket clients on WebSocketPath. Every binary
// message is appended to the connection's command stream, so a command may span messages.
//
// Parameters:
//   - addr: the TCP address, e.g. "127.0.0.1:7070"
//
// Returns:
//   - Listener: the bound listener
//   - error: error if the bind fails
func ListenWebSocket(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	l := &wsListener{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, l.handle)
	l.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return l, nil
}

func (l *wsListener) Addr() string {
	return l.ln.Addr().String()
}

func (l *wsListener) Serve(ctx context.Context, events chan<- Event) error {
	l.mu.Lock()
	l.ctx, l.events = ctx, events
	l.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	common.Logger().Info("listening", "network", "websocket", "addr", l.Addr(), "path", WebSocketPath)
	err := l.srv.Serve(l.ln)
	if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (l *wsListener) handle(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	ctx, events := l.ctx, l.events
	l.mu.Unlock()
	if events == nil {
		http.Error(w, "not serving", http.StatusServiceUnavailable)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		common.Logger().Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	accepted(ctx, newConnID(), &wsStream{conn: conn}, "ws:"+r.RemoteAddr, events)
}

func (l *wsListener) Close() error {
	l.closeOnce.Do(func() {
		// Upgraded connections are hijacked, so Close leaves them to their owner.
		l.closeErr = l.srv.Close()
	})
	return l.closeErr
}

// wsStream reads the concatenated payloads of a websocket's binary messages.
type wsStream struct {
	conn *websocket.Conn
	cur  io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.cur == nil {
			kind, r, err := s.conn.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				return 0, fmt.Errorf("websocket message type %d: %w", kind, common.ErrProtocolViolation)
			}
			s.cur = r
		}
		n, err := s.cur.Read(p)
		if errors.Is(err, io.EOF) {
			s.cur = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
