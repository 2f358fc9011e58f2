// Package transport accepts client connections and turns their byte streams into command events.
//
// Each connection gets one reader goroutine that decodes whole commands and forwards them to a
// single events channel. Readers never touch scene state; the consumer of the channel owns it.
package transport

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/protocol"
)

// ConnID identifies a connection for the lifetime of the process. IDs are never reused.
type ConnID uint64

var nextConnID atomic.Uint64

func newConnID() ConnID {
	return ConnID(nextConnID.Add(1))
}

// EventKind tags an Event.
type EventKind int

const (
	// EventConnected carries a newly accepted connection.
	EventConnected EventKind = iota
	// EventCommand carries one decoded command.
	EventCommand
	// EventClosed reports that a connection's reader has stopped. Err is nil for an orderly
	// disconnect.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventCommand:
		return "command"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one message from a connection reader to the server loop.
type Event struct {
	Kind EventKind
	Conn ConnID

	// Closer closes the connection. Set on EventConnected.
	Closer io.Closer
	// Remote describes the peer, for logs. Set on EventConnected.
	Remote string

	// Command is set on EventCommand.
	Command protocol.Command

	// Err is the read or decode error that ended the connection, set on EventClosed.
	Err error
}

// Listener accepts connections and forwards their events until its context is cancelled or it
// is closed.
type Listener interface {
	// Serve accepts connections until ctx is cancelled or Close is called, starting one reader
	// goroutine per connection.
	//
	// Parameters:
	//   - ctx: cancels accepting and every reader
	//   - events: receives every event; sends give up when ctx is done
	//
	// Returns:
	//   - error: nil after Close or cancellation, otherwise the accept error
	Serve(ctx context.Context, events chan<- Event) error

	// Addr returns the address the listener is bound to.
	Addr() string

	// Close stops accepting. Connections already handed out are closed by their owner.
	Close() error
}

// readLoop decodes commands from r until an error and reports each as an event. It always ends
// with exactly one EventClosed unless ctx is done first.
func readLoop(ctx context.Context, id ConnID, r io.Reader, events chan<- Event) {
	dec := protocol.NewDecoder(r)
	for {
		cmd, err := dec.Decode()
		if err != nil {
			if errors.Is(err, protocol.ErrDisconnect) {
				err = nil
			}
			send(ctx, events, Event{Kind: EventClosed, Conn: id, Err: err})
			return
		}
		if !send(ctx, events, Event{Kind: EventCommand, Conn: id, Command: cmd}) {
			return
		}
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// accepted hands a new connection to the loop and starts its reader. If the loop is gone the
// connection is closed here.
func accepted(ctx context.Context, id ConnID, conn io.ReadCloser, remote string, events chan<- Event) {
	if !send(ctx, events, Event{Kind: EventConnected, Conn: id, Closer: conn, Remote: remote}) {
		_ = conn.Close()
		return
	}
	common.Logger().Debug("connection accepted", "conn", id, "remote", remote)
	go readLoop(ctx, id, conn, events)
}
