package log

import (
	"strings"
	"time"
)

// Event represents a protocol log event captured by a server or a transport.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport (UUID).
	// Empty for server-level events that are not tied to one connection.
	ConnectionID string `cbor:"2,keyasint,omitempty"`

	// Direction indicates frame flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Role tells whether the transport was accepted or dialed.
	Role Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// LocalAddr is the local address (IP:port), or the listen URI for server events.
	LocalAddr string `cbor:"8,keyasint,omitempty"`

	// TransportID is the process-local transport sequence number.
	TransportID uint64 `cbor:"9,keyasint,omitempty"`

	// Type-specific payload (at most one of these is set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Accept      *AcceptEvent      `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of frame flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which component captured the event.
type Layer uint8

const (
	// LayerTransport is a single connection (frames, state, I/O errors).
	LayerTransport Layer = 0
	// LayerServer is the listening socket and its accept loop.
	LayerServer Layer = 1
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryFrame indicates a frame was read or written.
	CategoryFrame Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryAccept indicates an accepted inbound connection.
	CategoryAccept Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryFrame:
		return "FRAME"
	case CategoryState:
		return "STATE"
	case CategoryAccept:
		return "ACCEPT"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseCategory converts a category name (case-insensitive) to a Category.
func ParseCategory(s string) (Category, bool) {
	for _, c := range []Category{CategoryFrame, CategoryState, CategoryAccept, CategoryError} {
		if strings.EqualFold(s, c.String()) {
			return c, true
		}
	}
	return 0, false
}

// Role indicates how the local end of a transport came to exist.
type Role uint8

const (
	// RoleUnknown is used for server-level events.
	RoleUnknown Role = 0
	// RoleAccepted indicates the transport was produced by a server.
	RoleAccepted Role = 1
	// RoleDialed indicates the transport was created by an outbound connect.
	RoleDialed Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleAccepted:
		return "ACCEPTED"
	case RoleDialed:
		return "DIALED"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a frame at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including the length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures server and transport lifecycle transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityTransport indicates a transport state change.
	StateEntityTransport StateEntity = 0
	// StateEntityServer indicates a server state change.
	StateEntityServer StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityTransport:
		return "TRANSPORT"
	case StateEntityServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// AcceptEvent captures the outcome of one accepted inbound connection.
type AcceptEvent struct {
	// ListenURI is the URI of the server that accepted the connection.
	ListenURI string `cbor:"1,keyasint"`

	// Outcome tells what happened to the connection.
	Outcome AcceptOutcome `cbor:"2,keyasint"`
}

// AcceptOutcome describes what the server did with an accepted connection.
type AcceptOutcome uint8

const (
	// AcceptDelivered means the transport was handed to the accept listener.
	AcceptDelivered AcceptOutcome = 0
	// AcceptRejected means the server closed the connection (limit, no listener).
	AcceptRejected AcceptOutcome = 1
)

// String returns the outcome name.
func (o AcceptOutcome) String() string {
	switch o {
	case AcceptDelivered:
		return "DELIVERED"
	case AcceptRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at either layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Fatal is set when the error terminated the loop or transport.
	Fatal bool `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
