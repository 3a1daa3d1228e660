package transport

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel errors. Typed errors below wrap these where applicable, so they
// can be matched with errors.Is.
var (
	// ErrClosed is matched by every ClosedError.
	ErrClosed = errors.New("transport closed")

	// ErrNoAcceptListener indicates a server was started without an AcceptListener.
	ErrNoAcceptListener = errors.New("no accept listener registered")

	// ErrNoTransportListener indicates a transport was started without a TransportListener.
	ErrNoTransportListener = errors.New("no transport listener registered")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("already started")

	// ErrListenerLocked indicates a listener registration after Start.
	ErrListenerLocked = errors.New("listener cannot be registered after start")

	// ErrUnsupportedScheme indicates a URI scheme other than tcp or tls.
	ErrUnsupportedScheme = errors.New("unsupported scheme")

	// ErrInvalidAddress indicates a URI that is not of the form scheme://host:port.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrTLSConfigRequired indicates a tls:// URI without TLS configuration.
	ErrTLSConfigRequired = errors.New("tls scheme requires TLS configuration")

	// ErrTooManyConnections indicates an inbound connection rejected by WithMaxConnections.
	ErrTooManyConnections = errors.New("too many connections")

	// ErrListenerPanic indicates a listener callback panicked.
	ErrListenerPanic = errors.New("listener panicked")
)

// BindError reports a server address that is malformed or unavailable.
type BindError struct {
	Address string
	Err     error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Address, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ConnectError reports an outbound connection that could not be established.
type ConnectError struct {
	Address string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AcceptError reports a failed accept attempt. Fatal is set when the
// listening socket is gone and the accept loop has terminated.
type AcceptError struct {
	Fatal bool
	Err   error
}

func (e *AcceptError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("accept (fatal): %v", e.Err)
	}
	return fmt.Sprintf("accept: %v", e.Err)
}

func (e *AcceptError) Unwrap() error { return e.Err }

// IOError reports a read or write failure on an established transport.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ClosedError reports an operation on a server or transport that has been
// torn down. Unsent counts frames not confirmed written: frames still queued
// plus frames buffered since the last successful flush. Some of the latter
// may have reached the socket when bufio flushed a full buffer on its own,
// so Unsent is an upper bound.
type ClosedError struct {
	Op     string
	Unsent int
}

func (e *ClosedError) Error() string {
	if e.Unsent > 0 {
		return fmt.Sprintf("%s: %v (%d frames not confirmed written)", e.Op, ErrClosed, e.Unsent)
	}
	return fmt.Sprintf("%s: %v", e.Op, ErrClosed)
}

func (e *ClosedError) Unwrap() error { return ErrClosed }

// ConfigurationError reports misuse of the server or transport contract.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// isTransientAcceptError reports whether the accept loop may continue after err.
func isTransientAcceptError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE),
		errors.Is(err, syscall.ENOBUFS),
		errors.Is(err, syscall.ENOMEM),
		errors.Is(err, syscall.EINTR):
		return true
	}
	return false
}
