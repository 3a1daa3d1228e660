package transport

import (
	"context"
	"net"
)

// Transport is a managed bidirectional frame channel over one connection.
// Implemented by TCPTransport.
type Transport interface {
	// ID returns a process-unique, monotonically increasing identifier.
	ID() uint64

	// ConnID returns the UUID used to correlate logs and capture events.
	ConnID() string

	// State returns the current lifecycle state.
	State() State

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr

	// RemoteAddr returns the peer network address.
	RemoteAddr() net.Addr

	// SetTransportListener registers the receiver of frames and failures.
	// It must be called before Start.
	SetTransportListener(l TransportListener) error

	// Start begins reading and writing.
	Start() error

	// Send enqueues a frame, blocking while the send queue is full.
	// The transport retains frame; callers must not modify it afterwards.
	Send(frame []byte) error

	// SendContext is Send bounded by ctx.
	SendContext(ctx context.Context, frame []byte) error

	// Disconnect drains queued frames and closes the connection.
	Disconnect() error

	// Done is closed once the transport is Disconnected.
	Done() <-chan struct{}

	// Err returns the failure cause once Done is closed, or nil after a
	// requested Disconnect.
	Err() error
}

// TransportServer accepts inbound connections on one listening socket.
// Implemented by TCPServer.
type TransportServer interface {
	// Addr returns the bound listen address.
	Addr() net.Addr

	// URI returns the bound address as a URI, with the ephemeral port resolved.
	URI() string

	// State returns the current lifecycle state.
	State() ServerState

	// SetAcceptListener registers the receiver of accept events.
	// It is only valid before Start.
	SetAcceptListener(l AcceptListener) error

	// RemoveAcceptListener unregisters the accept listener. Later accepted
	// connections are closed.
	RemoveAcceptListener()

	// Start begins accepting connections.
	Start() error

	// Stop closes the listening socket. It does not wait for the accept loop.
	Stop() error

	// Done is closed once the accept loop has exited.
	Done() <-chan struct{}

	// Stats returns a snapshot of the server counters.
	Stats() ServerStats
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Transport       = (*TCPTransport)(nil)
	_ TransportServer = (*TCPServer)(nil)
	_ FrameReadWriter = (*Framer)(nil)
)
