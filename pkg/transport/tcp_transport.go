package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// State is the lifecycle state of a transport.
type State int32

const (
	// StateConnecting indicates the connection is being set up.
	StateConnecting State = iota

	// StateConnected indicates an established connection.
	StateConnected

	// StateDisconnecting indicates teardown in progress.
	StateDisconnecting

	// StateDisconnected indicates both I/O paths have stopped.
	StateDisconnected
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

var transportSeq atomic.Uint64

// TCPTransport is a Transport over a TCP or TLS connection.
//
// One goroutine reads frames and delivers them to the TransportListener,
// one goroutine writes the send queue, and a third waits for both to settle
// before reporting the outcome.
type TCPTransport struct {
	id     uint64
	connID string
	role   log.Role
	conn   net.Conn
	opts   Options
	reader *FrameReader
	writer *FrameWriter
	logger *slog.Logger
	plog   log.Logger

	state atomic.Int32

	// mu guards listener, started and hooks.
	mu       sync.Mutex
	listener TransportListener
	started  bool
	hooks    []func(*TCPTransport)

	sendQ chan []byte
	// sendMu is held shared by Send and exclusively by Disconnect, so that
	// Disconnect knows every concurrent Send has enqueued or given up.
	sendMu sync.RWMutex

	stopping   chan struct{}
	stopOnce   sync.Once
	drain      chan struct{}
	abort      chan struct{}
	readerDone chan struct{}
	writerDone chan struct{}
	done       chan struct{}

	requested atomic.Bool
	failErr   error
	unsent    atomic.Int64

	// pending counts frames buffered since the last flush. Writer only.
	pending int
}

// newTCPTransport wraps an established connection. The transport is
// Connected on return but does not read until Start.
func newTCPTransport(conn net.Conn, role log.Role, opts Options) *TCPTransport {
	t := &TCPTransport{
		id:         transportSeq.Add(1),
		connID:     uuid.New().String(),
		role:       role,
		conn:       conn,
		opts:       opts,
		plog:       opts.ProtocolLogger,
		sendQ:      make(chan []byte, opts.SendQueueSize),
		stopping:   make(chan struct{}),
		drain:      make(chan struct{}),
		abort:      make(chan struct{}),
		readerDone: make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	t.state.Store(int32(StateConnecting))

	if opts.Logger != nil {
		t.logger = opts.Logger.With(
			"transport_id", t.id,
			"conn_id", t.connID,
			"remote", addrString(conn.RemoteAddr()),
		)
	}

	configureConn(conn, &opts)

	base := t.eventBase()
	t.reader = NewFrameReaderWithMaxSize(conn, opts.MaxFrameSize)
	t.reader.SetLogger(t.plog, base)
	t.writer = NewFrameWriterWithMaxSize(conn, opts.MaxFrameSize)
	t.writer.SetLogger(t.plog, base)

	t.state.Store(int32(StateConnected))
	t.logState(StateConnecting, StateConnected, "")
	return t
}

// configureConn applies socket options to the TCP connection beneath conn.
func configureConn(conn net.Conn, o *Options) {
	if tc, ok := conn.(*tls.Conn); ok {
		conn = tc.NetConn()
	}
	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	_ = tcp.SetNoDelay(o.NoDelay)
	_ = tcp.SetKeepAlive(o.KeepAlive)
	if o.KeepAlive {
		_ = tcp.SetKeepAlivePeriod(o.KeepAlivePeriod)
	}
}

// ID returns the process-unique transport identifier.
func (t *TCPTransport) ID() uint64 { return t.id }

// ConnID returns the connection UUID.
func (t *TCPTransport) ConnID() string { return t.connID }

// State returns the current lifecycle state.
func (t *TCPTransport) State() State { return State(t.state.Load()) }

// LocalAddr returns the local network address.
func (t *TCPTransport) LocalAddr() net.Addr { return t.conn.LocalAddr() }

// RemoteAddr returns the peer network address.
func (t *TCPTransport) RemoteAddr() net.Addr { return t.conn.RemoteAddr() }

// Done is closed once the transport is Disconnected.
func (t *TCPTransport) Done() <-chan struct{} { return t.done }

// TLSState returns the TLS connection state for tls:// transports.
func (t *TCPTransport) TLSState() (tls.ConnectionState, bool) {
	if tc, ok := t.conn.(*tls.Conn); ok {
		return tc.ConnectionState(), true
	}
	return tls.ConnectionState{}, false
}

// Err returns the failure cause once Done is closed. It is nil while the
// transport is running and after a requested Disconnect.
func (t *TCPTransport) Err() error {
	select {
	case <-t.done:
		if t.requested.Load() {
			return nil
		}
		return t.failErr
	default:
		return nil
	}
}

// SetTransportListener registers the receiver of frames and failures.
func (t *TCPTransport) SetTransportListener(l TransportListener) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return &ConfigurationError{Op: "set transport listener", Err: ErrListenerLocked}
	}
	if l == nil {
		return &ConfigurationError{Op: "set transport listener", Err: ErrNoTransportListener}
	}
	t.listener = l
	return nil
}

// Start launches the read and write paths.
func (t *TCPTransport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return &ConfigurationError{Op: "start", Err: ErrAlreadyStarted}
	}
	if t.State() != StateConnected {
		return &ClosedError{Op: "start"}
	}
	if t.listener == nil {
		return &ConfigurationError{Op: "start", Err: ErrNoTransportListener}
	}
	t.started = true

	go t.readLoop()
	go t.writeLoop()
	go t.supervise()

	t.debugLog("transport started")
	return nil
}

// Send enqueues a frame. It blocks while the send queue is full and fails
// with a ClosedError once the transport is disconnecting.
func (t *TCPTransport) Send(frame []byte) error {
	return t.SendContext(context.Background(), frame)
}

// SendContext is Send bounded by ctx.
func (t *TCPTransport) SendContext(ctx context.Context, frame []byte) error {
	if len(frame) == 0 {
		return ErrFrameEmpty
	}
	if uint64(len(frame)) > uint64(t.opts.MaxFrameSize) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(frame), t.opts.MaxFrameSize)
	}

	t.sendMu.RLock()
	defer t.sendMu.RUnlock()

	if t.State() != StateConnected {
		return &ClosedError{Op: "send"}
	}

	select {
	case t.sendQ <- frame:
		return nil
	case <-t.stopping:
		return &ClosedError{Op: "send"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect stops accepting sends, writes every frame queued before the
// call, half-closes the connection and returns once the write path has
// finished. Frames that could not be written within DrainTimeout are
// reported in a *ClosedError. Calling Disconnect again is a no-op.
//
// Disconnect may be called from OnFrame.
func (t *TCPTransport) Disconnect() error {
	t.mu.Lock()
	if !t.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting)) {
		t.mu.Unlock()
		return nil
	}
	t.requested.Store(true)
	started := t.started
	t.mu.Unlock()

	t.logState(StateConnected, StateDisconnecting, "disconnect requested")
	t.closeStopping()

	// Wait out Sends that saw Connected.
	t.sendMu.Lock()
	t.sendMu.Unlock()

	if t.opts.DrainTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.opts.DrainTimeout))
	}
	close(t.drain)

	if !started {
		t.finishDrain()
		t.conn.Close()
		t.finish()
		return t.drainResult()
	}

	<-t.writerDone
	return t.drainResult()
}

func (t *TCPTransport) drainResult() error {
	if n := t.unsent.Load(); n > 0 {
		return &ClosedError{Op: "disconnect", Unsent: int(n)}
	}
	return nil
}

// onTerminate registers a hook that runs once the transport is Disconnected.
func (t *TCPTransport) onTerminate(hook func(*TCPTransport)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

func (t *TCPTransport) closeStopping() {
	t.stopOnce.Do(func() { close(t.stopping) })
}

func (t *TCPTransport) readLoop() {
	defer close(t.readerDone)

	for {
		if t.opts.ReadTimeout > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.opts.ReadTimeout))
		}

		frame, err := t.reader.ReadFrame()
		if err != nil {
			t.fail(&IOError{Op: "read", Err: err})
			return
		}

		if err := t.deliver(frame); err != nil {
			t.fail(err)
			return
		}
	}
}

// deliver hands one frame to the listener, converting a panic into an error.
func (t *TCPTransport) deliver(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.errorLog("OnFrame panicked", "panic", r)
			err = fmt.Errorf("%w: OnFrame: %v", ErrListenerPanic, r)
		}
	}()

	t.listener.OnFrame(t, frame)
	return nil
}

func (t *TCPTransport) writeLoop() {
	defer close(t.writerDone)

	for {
		select {
		case frame := <-t.sendQ:
			if err := t.writeBatch(frame); err != nil {
				if !t.fail(&IOError{Op: "write", Err: err}) {
					t.settleUnsent()
				}
				return
			}
		case <-t.drain:
			t.finishDrain()
			return
		case <-t.abort:
			return
		}
	}
}

// writeBatch writes frame and everything else already queued, then flushes once.
func (t *TCPTransport) writeBatch(frame []byte) error {
	for {
		t.pending++
		if err := t.writer.WriteFrame(frame); err != nil {
			return err
		}

		select {
		case frame = <-t.sendQ:
		default:
			if err := t.writer.Flush(); err != nil {
				return err
			}
			t.pending = 0
			return nil
		}
	}
}

// finishDrain writes the rest of the queue and half-closes the connection.
func (t *TCPTransport) finishDrain() {
	var err error
	select {
	case frame := <-t.sendQ:
		err = t.writeBatch(frame)
	default:
		err = t.writer.Flush()
	}
	if err != nil {
		t.debugLog("drain failed", "error", err)
		t.settleUnsent()
		return
	}

	if cw, ok := t.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err == nil {
			return
		}
	}
	t.conn.Close()
}

// settleUnsent counts queued frames and frames buffered since the last
// successful flush as unsent. It runs on the write path after an error,
// once teardown has been decided.
func (t *TCPTransport) settleUnsent() {
	select {
	case <-t.drain:
	case <-t.abort:
		return
	}

	n := t.pending
	t.pending = 0
	for {
		select {
		case <-t.sendQ:
			n++
		default:
			t.unsent.Add(int64(n))
			return
		}
	}
}

// fail tears the transport down after an I/O or listener error. Only the
// first caller wins; it reports whether this call did.
func (t *TCPTransport) fail(err error) bool {
	if !t.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting)) {
		return false
	}

	t.failErr = err
	t.logState(StateConnected, StateDisconnecting, err.Error())
	t.logError(err, "transport failure")
	t.closeStopping()
	close(t.abort)
	t.conn.Close()
	return true
}

// supervise waits for both I/O paths and reports the outcome.
func (t *TCPTransport) supervise() {
	<-t.writerDone

	// After a requested disconnect the peer gets a chance to close its side.
	if t.requested.Load() && t.opts.DrainTimeout > 0 {
		timer := time.NewTimer(t.opts.DrainTimeout)
		select {
		case <-t.readerDone:
		case <-timer.C:
		}
		timer.Stop()
	}

	t.conn.Close()
	<-t.readerDone
	t.finish()
}

func (t *TCPTransport) finish() {
	t.state.Store(int32(StateDisconnected))

	reason := "disconnect requested"
	if !t.requested.Load() {
		reason = t.failErr.Error()
	}
	t.logState(StateDisconnecting, StateDisconnected, reason)
	close(t.done)

	t.mu.Lock()
	hooks := t.hooks
	l := t.listener
	t.mu.Unlock()

	for _, hook := range hooks {
		hook(t)
	}

	if !t.requested.Load() && l != nil {
		t.notifyFailure(l, t.failErr)
	}
}

func (t *TCPTransport) notifyFailure(l TransportListener, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.errorLog("OnFailure panicked", "panic", r)
		}
	}()
	l.OnFailure(t, err)
}

func (t *TCPTransport) eventBase() log.Event {
	return log.Event{
		ConnectionID: t.connID,
		TransportID:  t.id,
		Role:         t.role,
		RemoteAddr:   addrString(t.conn.RemoteAddr()),
		LocalAddr:    addrString(t.conn.LocalAddr()),
	}
}

func (t *TCPTransport) logState(from, to State, reason string) {
	t.debugLog("transport state changed", "from", from, "to", to, "reason", reason)

	if t.plog == nil {
		return
	}
	event := t.eventBase()
	event.Timestamp = time.Now()
	event.Layer = log.LayerTransport
	event.Category = log.CategoryState
	event.StateChange = &log.StateChangeEvent{
		Entity:   log.StateEntityTransport,
		OldState: from.String(),
		NewState: to.String(),
		Reason:   reason,
	}
	t.plog.Log(event)
}

func (t *TCPTransport) logError(err error, op string) {
	t.debugLog(op, "error", err)

	if t.plog == nil {
		return
	}
	event := t.eventBase()
	event.Timestamp = time.Now()
	event.Layer = log.LayerTransport
	event.Category = log.CategoryError
	event.Error = &log.ErrorEventData{
		Layer:   log.LayerTransport,
		Message: err.Error(),
		Fatal:   true,
		Context: op,
	}
	t.plog.Log(event)
}

func (t *TCPTransport) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

func (t *TCPTransport) errorLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Error(msg, args...)
	}
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}
