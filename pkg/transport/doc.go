// Package transport provides the connection-oriented transport layer beneath
// the dosgi remote service framework.
//
// A TransportServer owns one listening socket. Its accept loop wraps every
// inbound connection into a Transport, a bidirectional frame channel, and
// hands it to the registered AcceptListener. Outbound transports are created
// with Connect. Both directions share the same Transport implementation.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Remote invocation payloads   │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│   TLS 1.3 (tls:// only)        │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Addresses
//
// Servers and transports are addressed by URI: tcp://host:port for plain TCP
// and tls://host:port for TLS 1.3 with ALPN "dosgi/1". Port 0 binds an
// ephemeral port.
//
// # Lifecycle
//
// Server: Created -> Started -> Stopped. The listening socket is acquired by
// Bind, the loop runs from Start, and Stop releases the socket immediately.
//
// Transport: Connecting -> Connected -> Disconnecting -> Disconnected.
// Reading begins on Start once a TransportListener is registered. Disconnect
// drains queued frames before closing; a failure of either I/O path tears
// the transport down and is reported once through OnFailure.
//
// # Callbacks
//
// Listener callbacks of one server never run concurrently. Frames of one
// transport are delivered in arrival order on that transport's read
// goroutine. Panics inside callbacks are recovered and reported as
// ErrListenerPanic.
package transport
