package transport

// AcceptListener receives the outcome of accept attempts on a server.
//
// Callbacks of one server never run concurrently. OnAccept runs on the
// accept path, so a slow callback delays the next delivery.
type AcceptListener interface {
	// OnAccept receives a Connected transport. The listener owns it from
	// here on and must register a TransportListener and Start it, or
	// Disconnect it.
	OnAccept(server TransportServer, t Transport)

	// OnAcceptError reports a failed accept attempt. The error is an
	// *AcceptError; Fatal means the server has stopped.
	OnAcceptError(server TransportServer, err error)
}

// TransportListener receives frames and failures of a transport.
type TransportListener interface {
	// OnFrame receives each fully-read frame exactly once, in arrival order.
	OnFrame(t Transport, frame []byte)

	// OnFailure is called once when the transport is torn down by an error.
	// It is never called after a requested Disconnect.
	OnFailure(t Transport, err error)
}

// AcceptListenerFuncs adapts plain functions to AcceptListener.
// Nil fields are no-ops.
type AcceptListenerFuncs struct {
	Accept      func(server TransportServer, t Transport)
	AcceptError func(server TransportServer, err error)
}

func (f AcceptListenerFuncs) OnAccept(server TransportServer, t Transport) {
	if f.Accept != nil {
		f.Accept(server, t)
	}
}

func (f AcceptListenerFuncs) OnAcceptError(server TransportServer, err error) {
	if f.AcceptError != nil {
		f.AcceptError(server, err)
	}
}

// TransportListenerFuncs adapts plain functions to TransportListener.
// Nil fields are no-ops.
type TransportListenerFuncs struct {
	Frame   func(t Transport, frame []byte)
	Failure func(t Transport, err error)
}

func (f TransportListenerFuncs) OnFrame(t Transport, frame []byte) {
	if f.Frame != nil {
		f.Frame(t, frame)
	}
}

func (f TransportListenerFuncs) OnFailure(t Transport, err error) {
	if f.Failure != nil {
		f.Failure(t, err)
	}
}

// AcceptChannels is an AcceptListener that forwards events to channels,
// for owners that prefer a select loop over callbacks. Sends block, so the
// owner must keep draining both channels; events keep their order.
type AcceptChannels struct {
	Accepted chan Transport
	Errors   chan error
}

// NewAcceptChannels creates AcceptChannels with the given buffer size.
func NewAcceptChannels(buffer int) *AcceptChannels {
	return &AcceptChannels{
		Accepted: make(chan Transport, buffer),
		Errors:   make(chan error, buffer),
	}
}

func (c *AcceptChannels) OnAccept(_ TransportServer, t Transport) {
	c.Accepted <- t
}

func (c *AcceptChannels) OnAcceptError(_ TransportServer, err error) {
	c.Errors <- err
}

var (
	_ AcceptListener    = AcceptListenerFuncs{}
	_ AcceptListener    = (*AcceptChannels)(nil)
	_ TransportListener = TransportListenerFuncs{}
)
