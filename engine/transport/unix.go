package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/common"
)

type unixListener struct {
	path string
	ln   net.Listener

	closeOnce sync.Once
	closeErr  error
}

var _ Listener = &unixListener{}

// ListenUnix binds a unix stream socket at path. A stale socket file left by a previous run is
// removed first; any other existing file is an error.
//
// Parameters:
//   - path: the socket path
//
// Returns:
//   - Listener: the bound listener
//   - error: error if the path is taken or the bind fails
func ListenUnix(path string) (Listener, error) {
	if path == "" {
		return nil, errors.New("unix socket path is empty")
	}
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	// Close unlinks the socket file.
	ln.(*net.UnixListener).SetUnlinkOnClose(true)
	return &unixListener{path: path, ln: ln}, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.Dial("unix", path); err == nil {
		_ = conn.Close()
		return fmt.Errorf("%s is in use by another server", path)
	}
	return os.Remove(path)
}

func (l *unixListener) Addr() string {
	return l.path
}

func (l *unixListener) Serve(ctx context.Context, events chan<- Event) error {
	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	common.Logger().Info("listening", "network", "unix", "addr", l.path)
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept on %s: %w", l.path, err)
		}
		accepted(ctx, newConnID(), conn, "unix:"+l.path, events)
	}
}

func (l *unixListener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}
