package transport

import (
	"log/slog"
	"time"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// Default option values.
const (
	DefaultMaxFrameSize     = 16 << 20
	DefaultSendQueueSize    = 256
	DefaultDrainTimeout     = 5 * time.Second
	DefaultDialTimeout      = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultKeepAlivePeriod  = 30 * time.Second
)

// Options configures servers and transports.
// Fields marked server-only are ignored by Connect.
type Options struct {
	// MaxFrameSize is the largest frame payload accepted in either direction.
	MaxFrameSize uint32

	// SendQueueSize bounds the frames waiting to be written. Send blocks
	// while the queue is full.
	SendQueueSize int

	// DrainTimeout bounds how long Disconnect waits for queued frames to be
	// written (0 = no limit).
	DrainTimeout time.Duration

	// ReadTimeout fails a transport when no frame arrives for this long
	// (0 = no idle detection).
	ReadTimeout time.Duration

	// DialTimeout bounds TCP connection establishment for Connect.
	DialTimeout time.Duration

	// HandshakeTimeout bounds the TLS handshake on both sides.
	HandshakeTimeout time.Duration

	// KeepAlive enables TCP keep-alive probes every KeepAlivePeriod.
	KeepAlive       bool
	KeepAlivePeriod time.Duration

	// NoDelay sets TCP_NODELAY.
	NoDelay bool

	// TLS is required for tls:// addresses.
	TLS *TLSConfig

	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events. Nil disables capture.
	ProtocolLogger log.Logger

	// MaxConnections limits live accepted transports (server-only, 0 = unlimited).
	MaxConnections int

	// AsyncDispatch, when > 0, hands accepted transports and accept errors
	// to a single dispatcher goroutine through a FIFO queue of this size
	// (server-only). The listener observes both in accept order. Zero
	// dispatches synchronously from the accept path.
	AsyncDispatch int
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		MaxFrameSize:     DefaultMaxFrameSize,
		SendQueueSize:    DefaultSendQueueSize,
		DrainTimeout:     DefaultDrainTimeout,
		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		KeepAlive:        true,
		KeepAlivePeriod:  DefaultKeepAlivePeriod,
		NoDelay:          true,
	}
}

// Option mutates Options.
type Option func(*Options)

func WithMaxFrameSize(n uint32) Option {
	return func(o *Options) {
		o.MaxFrameSize = n
	}
}

func WithSendQueueSize(n int) Option {
	return func(o *Options) {
		o.SendQueueSize = n
	}
}

func WithDrainTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DrainTimeout = d
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = d
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DialTimeout = d
	}
}

func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.HandshakeTimeout = d
	}
}

// WithKeepAlive enables TCP keep-alive with the given period, or disables it
// when period is zero or negative.
func WithKeepAlive(period time.Duration) Option {
	return func(o *Options) {
		o.KeepAlive = period > 0
		o.KeepAlivePeriod = period
	}
}

func WithNoDelay(noDelay bool) Option {
	return func(o *Options) {
		o.NoDelay = noDelay
	}
}

func WithTLS(cfg *TLSConfig) Option {
	return func(o *Options) {
		o.TLS = cfg
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithProtocolLogger(logger log.Logger) Option {
	return func(o *Options) {
		o.ProtocolLogger = logger
	}
}

func WithMaxConnections(n int) Option {
	return func(o *Options) {
		o.MaxConnections = n
	}
}

func WithAsyncDispatch(queueSize int) Option {
	return func(o *Options) {
		o.AsyncDispatch = queueSize
	}
}

// normalize replaces unusable values with defaults.
func (o *Options) normalize() {
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = DefaultSendQueueSize
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.KeepAlive && o.KeepAlivePeriod <= 0 {
		o.KeepAlivePeriod = DefaultKeepAlivePeriod
	}
}

func buildOptions(base Options, opts []Option) Options {
	for _, opt := range opts {
		if opt != nil {
			opt(&base)
		}
	}
	base.normalize()
	return base
}
