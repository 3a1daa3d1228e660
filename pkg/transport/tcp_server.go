package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// ServerState is the lifecycle state of a server.
type ServerState int32

const (
	// ServerCreated indicates a bound server that is not accepting yet.
	ServerCreated ServerState = iota

	// ServerStarted indicates a running accept loop.
	ServerStarted

	// ServerStopped indicates the listening socket has been released.
	ServerStopped
)

// String returns the state name.
func (s ServerState) String() string {
	switch s {
	case ServerCreated:
		return "CREATED"
	case ServerStarted:
		return "STARTED"
	case ServerStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Accept loop back-off after transient errors.
const (
	minAcceptPause = 5 * time.Millisecond
	maxAcceptPause = time.Second
)

// ServerStats is a snapshot of server counters.
type ServerStats struct {
	// Accepted counts transports handed to OnAccept.
	Accepted uint64

	// Rejected counts connections the server closed itself (connection
	// limit, no listener, server stopping).
	Rejected uint64

	// AcceptErrors counts OnAcceptError notifications.
	AcceptErrors uint64

	// Active is the number of accepted transports not yet Disconnected.
	Active int64
}

// acceptEvent is one entry of the async dispatch queue. Exactly one of
// t and err is set.
type acceptEvent struct {
	t   *TCPTransport
	err *AcceptError
}

// TCPServer is a TransportServer for tcp:// and tls:// addresses.
type TCPServer struct {
	addr    Address
	ln      net.Listener
	upgrade Upgrader
	opts    Options
	logger  *slog.Logger
	plog    log.Logger

	mu    sync.Mutex
	state ServerState

	listener atomic.Pointer[AcceptListener]

	// ctx is cancelled by Stop.
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}

	// callbackMu serializes listener callbacks.
	callbackMu sync.Mutex

	dispatchQ      chan acceptEvent
	dispatcherDone chan struct{}
	handshakes     sync.WaitGroup

	// fatal is owned by the accept loop goroutine.
	fatal *AcceptError

	accepted     atomic.Uint64
	rejected     atomic.Uint64
	acceptErrors atomic.Uint64
	active       atomic.Int64
}

func newTCPServer(addr Address, ln net.Listener, upgrade Upgrader, opts Options) *TCPServer {
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		addr.Port = tcpAddr.Port
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &TCPServer{
		addr:    addr,
		ln:      ln,
		upgrade: upgrade,
		opts:    opts,
		plog:    opts.ProtocolLogger,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With("listen", addr.String())
	}

	s.logState("", ServerCreated, "bound")
	return s
}

// Addr returns the bound listen address.
func (s *TCPServer) Addr() net.Addr {
	return s.ln.Addr()
}

// URI returns the bound address with the ephemeral port resolved.
func (s *TCPServer) URI() string {
	return s.addr.String()
}

// State returns the current lifecycle state.
func (s *TCPServer) State() ServerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the accept loop and dispatcher have exited, or at
// Stop if the server was never started.
func (s *TCPServer) Done() <-chan struct{} {
	return s.done
}

// Stats returns a snapshot of the server counters.
func (s *TCPServer) Stats() ServerStats {
	return ServerStats{
		Accepted:     s.accepted.Load(),
		Rejected:     s.rejected.Load(),
		AcceptErrors: s.acceptErrors.Load(),
		Active:       s.active.Load(),
	}
}

// SetAcceptListener registers the accept listener. It fails with
// ErrListenerLocked once the server has been started.
func (s *TCPServer) SetAcceptListener(l AcceptListener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ServerCreated {
		return &ConfigurationError{Op: "set accept listener", Err: ErrListenerLocked}
	}
	if l == nil {
		return &ConfigurationError{Op: "set accept listener", Err: ErrNoAcceptListener}
	}
	s.listener.Store(&l)
	return nil
}

// RemoveAcceptListener unregisters the accept listener. A callback already
// running completes; connections accepted afterwards are closed.
func (s *TCPServer) RemoveAcceptListener() {
	s.listener.Store(nil)
}

// Start launches the accept loop.
func (s *TCPServer) Start() error {
	s.mu.Lock()
	switch s.state {
	case ServerStarted:
		s.mu.Unlock()
		return &ConfigurationError{Op: "start", Err: ErrAlreadyStarted}
	case ServerStopped:
		s.mu.Unlock()
		return &ClosedError{Op: "start"}
	}
	if s.listener.Load() == nil {
		s.mu.Unlock()
		return &ConfigurationError{Op: "start", Err: ErrNoAcceptListener}
	}

	s.state = ServerStarted
	if s.opts.AsyncDispatch > 0 {
		s.dispatchQ = make(chan acceptEvent, s.opts.AsyncDispatch)
		s.dispatcherDone = make(chan struct{})
	}
	s.mu.Unlock()

	s.logState(ServerCreated.String(), ServerStarted, "")
	if s.dispatchQ != nil {
		go s.dispatchLoop()
	}
	go s.acceptLoop()
	return nil
}

// Stop closes the listening socket and returns without waiting for the
// accept loop; use Done for that. Stop may be called any number of times,
// from any goroutine, including from inside a listener callback.
// Transports already delivered are not affected.
func (s *TCPServer) Stop() error {
	s.shutdown("stop requested")
	return nil
}

func (s *TCPServer) shutdown(reason string) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = ServerStopped
		s.mu.Unlock()

		s.cancel()
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.debugLog("close listener", "error", err)
		}
		if prev != ServerStarted {
			close(s.done)
		}

		s.logState(prev.String(), ServerStopped, reason)
	})
}

func (s *TCPServer) stopping() bool {
	return s.ctx.Err() != nil
}

func (s *TCPServer) acceptLoop() {
	defer s.finishLoop()

	var pause time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.stopping() {
				return
			}

			if isTransientAcceptError(err) {
				pause = nextAcceptPause(pause)
				s.reportAcceptError(&AcceptError{Err: err})

				timer := time.NewTimer(pause)
				select {
				case <-timer.C:
				case <-s.ctx.Done():
					timer.Stop()
					return
				}
				continue
			}

			// Reported by finishLoop once queued events are delivered.
			s.fatal = &AcceptError{Fatal: true, Err: err}
			s.shutdown("listener failed: " + err.Error())
			return
		}

		pause = 0
		s.handle(conn)
	}
}

func nextAcceptPause(pause time.Duration) time.Duration {
	if pause == 0 {
		return minAcceptPause
	}
	return min(pause*2, maxAcceptPause)
}

// finishLoop releases the listening socket and waits for in-flight
// handshakes and queued events before closing done. A fatal accept error
// is always the last notification.
func (s *TCPServer) finishLoop() {
	s.ln.Close()
	s.handshakes.Wait()
	if s.dispatchQ != nil {
		close(s.dispatchQ)
		<-s.dispatcherDone
	}
	if s.fatal != nil {
		s.notifyNow(s.fatal)
	}
	close(s.done)
	s.debugLog("accept loop exited")
}

func (s *TCPServer) handle(conn net.Conn) {
	if limit := s.opts.MaxConnections; limit > 0 && s.active.Load() >= int64(limit) {
		conn.Close()
		s.rejected.Add(1)
		s.logAccept(nil, conn.RemoteAddr(), log.AcceptRejected)
		s.reportAcceptError(&AcceptError{Err: fmt.Errorf("%w: limit %d reached, closed %s",
			ErrTooManyConnections, limit, addrString(conn.RemoteAddr()))})
		return
	}
	s.active.Add(1)

	if s.upgrade == nil {
		s.dispatch(s.wrap(conn))
		return
	}

	s.handshakes.Add(1)
	go func() {
		defer s.handshakes.Done()

		ctx, cancel := context.WithTimeout(s.ctx, s.opts.HandshakeTimeout)
		defer cancel()

		upgraded, err := s.upgrade(ctx, conn)
		if err != nil {
			conn.Close()
			s.active.Add(-1)
			if !s.stopping() {
				s.reportAcceptError(&AcceptError{Err: fmt.Errorf("%s: %w", addrString(conn.RemoteAddr()), err)})
			}
			return
		}
		s.dispatch(s.wrap(upgraded))
	}()
}

func (s *TCPServer) wrap(conn net.Conn) *TCPTransport {
	t := newTCPTransport(conn, log.RoleAccepted, s.opts)
	t.onTerminate(func(*TCPTransport) {
		s.active.Add(-1)
	})
	return t
}

func (s *TCPServer) dispatch(t *TCPTransport) {
	if s.dispatchQ == nil {
		s.deliver(t)
		return
	}

	select {
	case s.dispatchQ <- acceptEvent{t: t}:
	case <-s.ctx.Done():
		s.reject(t, "server stopped")
	}
}

func (s *TCPServer) dispatchLoop() {
	defer close(s.dispatcherDone)
	for ev := range s.dispatchQ {
		if ev.err != nil {
			s.notifyNow(ev.err)
			continue
		}
		s.deliver(ev.t)
	}
}

// deliver hands a transport to the accept listener.
func (s *TCPServer) deliver(t *TCPTransport) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	if s.stopping() {
		s.reject(t, "server stopped")
		return
	}
	lp := s.listener.Load()
	if lp == nil {
		s.reject(t, "no accept listener")
		return
	}

	s.accepted.Add(1)
	s.logAccept(t, t.RemoteAddr(), log.AcceptDelivered)
	s.debugLog("connection accepted", "transport_id", t.ID(), "remote", addrString(t.RemoteAddr()))

	if err := s.callOnAccept(*lp, t); err != nil {
		_ = t.Disconnect()
		s.notifyAcceptError(*lp, &AcceptError{Err: err})
	}
}

func (s *TCPServer) reject(t *TCPTransport, reason string) {
	s.rejected.Add(1)
	s.logAccept(t, t.RemoteAddr(), log.AcceptRejected)
	s.debugLog("closing accepted connection", "reason", reason, "remote", addrString(t.RemoteAddr()))
	_ = t.Disconnect()
}

func (s *TCPServer) callOnAccept(l AcceptListener, t Transport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.errorLog("OnAccept panicked", "panic", r)
			err = fmt.Errorf("%w: OnAccept: %v", ErrListenerPanic, r)
		}
	}()

	l.OnAccept(s, t)
	return nil
}

// reportAcceptError queues err behind pending deliveries when dispatch is
// async, so the listener sees events in the order they happened.
func (s *TCPServer) reportAcceptError(err *AcceptError) {
	if s.dispatchQ != nil {
		select {
		case s.dispatchQ <- acceptEvent{err: err}:
			return
		case <-s.ctx.Done():
		}
	}
	s.notifyNow(err)
}

func (s *TCPServer) notifyNow(err *AcceptError) {
	s.callbackMu.Lock()
	defer s.callbackMu.Unlock()

	var l AcceptListener
	if lp := s.listener.Load(); lp != nil {
		l = *lp
	}
	s.notifyAcceptError(l, err)
}

// notifyAcceptError must be called with callbackMu held. l may be nil.
func (s *TCPServer) notifyAcceptError(l AcceptListener, err *AcceptError) {
	s.acceptErrors.Add(1)
	s.logAcceptError(err)

	if l == nil {
		s.debugLog("accept error without listener", "error", err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.errorLog("OnAcceptError panicked", "panic", r)
		}
	}()
	l.OnAcceptError(s, err)
}

func (s *TCPServer) logState(from string, to ServerState, reason string) {
	s.debugLog("server state changed", "from", from, "to", to, "reason", reason)

	if s.plog == nil {
		return
	}
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerServer,
		Category:  log.CategoryState,
		LocalAddr: s.addr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			OldState: from,
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

func (s *TCPServer) logAccept(t *TCPTransport, remote net.Addr, outcome log.AcceptOutcome) {
	if s.plog == nil {
		return
	}
	event := log.Event{
		Timestamp:  time.Now(),
		Layer:      log.LayerServer,
		Category:   log.CategoryAccept,
		Role:       log.RoleAccepted,
		RemoteAddr: addrString(remote),
		LocalAddr:  s.addr.String(),
		Accept: &log.AcceptEvent{
			ListenURI: s.addr.String(),
			Outcome:   outcome,
		},
	}
	if t != nil {
		event.ConnectionID = t.ConnID()
		event.TransportID = t.ID()
	}
	s.plog.Log(event)
}

func (s *TCPServer) logAcceptError(err *AcceptError) {
	if err.Fatal {
		s.errorLog("accept failed", "error", err)
	} else {
		s.debugLog("accept failed", "error", err)
	}

	if s.plog == nil {
		return
	}
	s.plog.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerServer,
		Category:  log.CategoryError,
		LocalAddr: s.addr.String(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerServer,
			Message: err.Error(),
			Fatal:   err.Fatal,
			Context: "accept",
		},
	})
}

func (s *TCPServer) debugLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *TCPServer) errorLog(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
