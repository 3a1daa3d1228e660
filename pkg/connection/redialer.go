package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/multierr"

	"github.com/fabric-dosgi/dosgi-go/pkg/transport"
)

// Redialer errors.
var (
	ErrClosed           = errors.New("redialer closed")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotConnected     = errors.New("not connected")
	ErrNoURIs           = errors.New("no URIs configured")
)

// State is the redialer state.
type State uint8

const (
	// StateDisconnected indicates no transport and no redial in progress.
	StateDisconnected State = iota

	// StateConnecting indicates the initial Connect is dialing.
	StateConnecting

	// StateConnected indicates a started transport.
	StateConnected

	// StateReconnecting indicates the transport failed and redials are running.
	StateReconnecting

	// StateClosed indicates Close has been called.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Dialer creates outbound transports. *transport.Factory implements it.
type Dialer interface {
	Connect(ctx context.Context, uri string, opts ...transport.Option) (*transport.TCPTransport, error)
}

// Config configures a Redialer.
type Config struct {
	// URIs are tried in order on every attempt.
	URIs []string

	// Dialer creates the transports. Defaults to transport.NewFactory().
	Dialer Dialer

	// Options are passed to every Connect.
	Options []transport.Option

	// Listener receives the frames and failures of every transport.
	Listener transport.TransportListener

	// Backoff paces redials. The zero value uses NewBackoff.
	Backoff BackoffConfig

	// DisableReconnect stops the redialer from replacing a failed transport.
	DisableReconnect bool

	// Logger is used for operational logging. Nil disables it.
	Logger *slog.Logger
}

// Redialer keeps one outbound transport alive.
type Redialer struct {
	uris     []string
	dialer   Dialer
	opts     []transport.Option
	listener transport.TransportListener
	backoff  *Backoff
	logger   *slog.Logger

	mu            sync.RWMutex
	state         State
	current       transport.Transport
	autoReconnect bool

	onStateChange  func(oldState, newState State)
	onConnected    func(t transport.Transport)
	onReconnecting func(attempt int, err error)

	ctx         context.Context
	cancel      context.CancelFunc
	loopOnce    sync.Once
	wg          sync.WaitGroup
	reconnectCh chan struct{}
}

// NewRedialer creates a Redialer in the Disconnected state.
func NewRedialer(cfg Config) *Redialer {
	if cfg.Dialer == nil {
		cfg.Dialer = transport.NewFactory()
	}
	if cfg.Listener == nil {
		cfg.Listener = transport.TransportListenerFuncs{}
	}

	backoff := NewBackoff()
	if cfg.Backoff != (BackoffConfig{}) {
		backoff = NewBackoffWithConfig(cfg.Backoff)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Redialer{
		uris:          cfg.URIs,
		dialer:        cfg.Dialer,
		opts:          cfg.Options,
		listener:      cfg.Listener,
		backoff:       backoff,
		logger:        cfg.Logger,
		state:         StateDisconnected,
		autoReconnect: !cfg.DisableReconnect,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// State returns the current state.
func (r *Redialer) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Transport returns the live transport, or nil.
func (r *Redialer) Transport() transport.Transport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// SetAutoReconnect enables or disables redialing after a failure.
func (r *Redialer) SetAutoReconnect(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.autoReconnect = enabled
}

// OnStateChange sets a callback for state changes.
func (r *Redialer) OnStateChange(fn func(oldState, newState State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStateChange = fn
}

// OnConnected sets a callback for every started transport.
func (r *Redialer) OnConnected(fn func(t transport.Transport)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnected = fn
}

// OnReconnecting sets a callback for failed redial attempts.
func (r *Redialer) OnReconnecting(fn func(attempt int, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReconnecting = fn
}

// Connect dials once. A failure is returned to the caller without retrying;
// redials only follow the loss of a transport that was Connected.
func (r *Redialer) Connect(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateConnected:
		r.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		r.mu.Unlock()
		return ErrClosed
	}
	old := r.state
	r.state = StateConnecting
	r.mu.Unlock()
	r.notifyState(old, StateConnecting)

	r.loopOnce.Do(func() {
		r.wg.Add(1)
		go r.reconnectLoop()
	})

	t, err := r.dial(ctx)
	if err == nil {
		err = r.attach(t)
	}
	if err != nil {
		if r.setState(StateConnecting, StateDisconnected) {
			r.notifyState(StateConnecting, StateDisconnected)
		}
		return err
	}
	return nil
}

// Send sends a frame on the live transport.
func (r *Redialer) Send(frame []byte) error {
	t := r.Transport()
	if t == nil {
		return ErrNotConnected
	}
	return t.Send(frame)
}

// Close stops redialing and disconnects the live transport. It must not be
// called from the redialer's own callbacks.
func (r *Redialer) Close() error {
	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		return nil
	}
	old := r.state
	r.state = StateClosed
	t := r.current
	r.current = nil
	r.mu.Unlock()

	r.notifyState(old, StateClosed)

	r.cancel()
	r.wg.Wait()

	if t != nil {
		return t.Disconnect()
	}
	return nil
}

// dial tries every URI in order. The error combines all attempts.
func (r *Redialer) dial(ctx context.Context) (*transport.TCPTransport, error) {
	if len(r.uris) == 0 {
		return nil, ErrNoURIs
	}

	var errs error
	for _, uri := range r.uris {
		t, err := r.dialer.Connect(ctx, uri, r.opts...)
		if err == nil {
			return t, nil
		}
		errs = multierr.Append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errs
}

// attach starts t and makes it the live transport.
func (r *Redialer) attach(t *transport.TCPTransport) error {
	if err := t.SetTransportListener(&redialListener{r: r}); err != nil {
		t.Disconnect()
		return err
	}

	r.mu.Lock()
	if r.state == StateClosed {
		r.mu.Unlock()
		t.Disconnect()
		return ErrClosed
	}
	old := r.state
	r.state = StateConnected
	r.current = t
	onConnected := r.onConnected
	r.mu.Unlock()

	// Start after publishing t so a failure right away finds it current.
	if err := t.Start(); err != nil {
		r.mu.Lock()
		if r.current == t {
			r.current = nil
			r.state = old
		}
		r.mu.Unlock()
		t.Disconnect()
		return fmt.Errorf("start transport: %w", err)
	}

	r.backoff.Reset()
	r.notifyState(old, StateConnected)
	r.debugLog("transport connected", "remote", t.RemoteAddr().String(), "transport_id", t.ID())

	if onConnected != nil {
		onConnected(t)
	}
	return nil
}

// transportLost is called when the live transport fails.
func (r *Redialer) transportLost(t transport.Transport, err error) {
	r.mu.Lock()
	if r.current != t || r.state != StateConnected {
		r.mu.Unlock()
		return
	}
	r.current = nil
	next := StateDisconnected
	if r.autoReconnect {
		next = StateReconnecting
	}
	r.state = next
	r.mu.Unlock()

	r.debugLog("transport lost", "error", err, "next", next)
	r.notifyState(StateConnected, next)

	if next == StateReconnecting {
		r.triggerReconnect()
	}
}

func (r *Redialer) triggerReconnect() {
	select {
	case r.reconnectCh <- struct{}{}:
	default:
	}
}

func (r *Redialer) reconnectLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.reconnectCh:
			r.reconnect()
		}
	}
}

// reconnect dials with backoff until a transport is attached or the
// redialer is closed.
func (r *Redialer) reconnect() {
	for {
		if r.State() != StateReconnecting {
			return
		}
		if err := r.backoff.Wait(r.ctx); err != nil {
			return
		}

		t, err := r.dial(r.ctx)
		if err == nil {
			err = r.attach(t)
		}
		if err == nil || errors.Is(err, ErrClosed) {
			return
		}

		attempt := r.backoff.Attempts()
		r.debugLog("redial failed", "attempt", attempt, "error", err)

		r.mu.RLock()
		onReconnecting := r.onReconnecting
		r.mu.RUnlock()
		if onReconnecting != nil {
			onReconnecting(attempt, err)
		}
	}
}

// setState moves from one state to another if the redialer is still in from.
func (r *Redialer) setState(from, to State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != from {
		return false
	}
	r.state = to
	return true
}

func (r *Redialer) notifyState(oldState, newState State) {
	r.mu.RLock()
	fn := r.onStateChange
	r.mu.RUnlock()
	if fn != nil {
		fn(oldState, newState)
	}
}

func (r *Redialer) debugLog(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

// redialListener forwards transport events to the owner's listener and
// reports failures back to the redialer.
type redialListener struct {
	r *Redialer
}

func (l *redialListener) OnFrame(t transport.Transport, frame []byte) {
	l.r.listener.OnFrame(t, frame)
}

func (l *redialListener) OnFailure(t transport.Transport, err error) {
	l.r.listener.OnFailure(t, err)
	l.r.transportLost(t, err)
}
