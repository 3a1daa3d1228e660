package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// Upgrader performs the per-connection handshake of an accepted connection,
// such as TLS. It runs off the accept loop.
type Upgrader func(ctx context.Context, conn net.Conn) (net.Conn, error)

// schemeDriver binds and dials one URI scheme.
type schemeDriver struct {
	listen func(addr Address, o *Options) (net.Listener, Upgrader, error)
	dial   func(ctx context.Context, addr Address, o *Options) (net.Conn, error)
}

// Factory creates servers and outbound transports from URIs.
// It holds default options that per-call options override.
type Factory struct {
	defaults Options
	drivers  map[Scheme]schemeDriver
}

// NewFactory creates a Factory for the tcp and tls schemes.
func NewFactory(opts ...Option) *Factory {
	return &Factory{
		defaults: buildOptions(DefaultOptions(), opts),
		drivers: map[Scheme]schemeDriver{
			SchemeTCP: {listen: listenTCP, dial: dialTCP},
			SchemeTLS: {listen: listenTLS, dial: dialTLS},
		},
	}
}

// Options returns a copy of the factory defaults.
func (f *Factory) Options() Options {
	return f.defaults
}

// Bind parses uri and acquires the listening socket. The returned server is
// in the Created state.
func (f *Factory) Bind(uri string, opts ...Option) (*TCPServer, error) {
	addr, err := ParseAddress(uri)
	if err != nil {
		return nil, &BindError{Address: uri, Err: err}
	}
	drv, ok := f.drivers[addr.Scheme]
	if !ok {
		return nil, &BindError{Address: uri, Err: ErrUnsupportedScheme}
	}

	o := buildOptions(f.defaults, opts)
	ln, upgrade, err := drv.listen(addr, &o)
	if err != nil {
		return nil, &BindError{Address: addr.String(), Err: err}
	}

	return newTCPServer(addr, ln, upgrade, o), nil
}

// Connect dials uri and returns a Connected transport.
func (f *Factory) Connect(ctx context.Context, uri string, opts ...Option) (*TCPTransport, error) {
	addr, err := ParseAddress(uri)
	if err != nil {
		return nil, &ConnectError{Address: uri, Err: err}
	}
	if addr.Port == 0 {
		return nil, &ConnectError{Address: uri, Err: fmt.Errorf("%w: port 0", ErrInvalidAddress)}
	}
	drv, ok := f.drivers[addr.Scheme]
	if !ok {
		return nil, &ConnectError{Address: uri, Err: ErrUnsupportedScheme}
	}

	o := buildOptions(f.defaults, opts)
	conn, err := drv.dial(ctx, addr, &o)
	if err != nil {
		return nil, &ConnectError{Address: addr.String(), Err: err}
	}

	return newTCPTransport(conn, log.RoleDialed, o), nil
}

// Bind acquires a listening socket with default options.
func Bind(uri string, opts ...Option) (*TCPServer, error) {
	return NewFactory().Bind(uri, opts...)
}

// Connect dials uri with default options.
func Connect(ctx context.Context, uri string, opts ...Option) (*TCPTransport, error) {
	return NewFactory().Connect(ctx, uri, opts...)
}

func keepAlivePeriod(o *Options) time.Duration {
	if !o.KeepAlive {
		return -1
	}
	return o.KeepAlivePeriod
}

func listenTCP(addr Address, o *Options) (net.Listener, Upgrader, error) {
	lc := net.ListenConfig{KeepAlive: keepAlivePeriod(o)}
	ln, err := lc.Listen(context.Background(), "tcp", addr.HostPort())
	if err != nil {
		return nil, nil, err
	}
	return ln, nil, nil
}

func listenTLS(addr Address, o *Options) (net.Listener, Upgrader, error) {
	config, err := NewServerTLSConfig(o.TLS)
	if err != nil {
		return nil, nil, err
	}
	ln, _, err := listenTCP(addr, o)
	if err != nil {
		return nil, nil, err
	}
	return ln, tlsServerUpgrader(config), nil
}

func dialTCP(ctx context.Context, addr Address, o *Options) (net.Conn, error) {
	d := net.Dialer{
		Timeout:   o.DialTimeout,
		KeepAlive: keepAlivePeriod(o),
	}
	return d.DialContext(ctx, "tcp", addr.HostPort())
}

func dialTLS(ctx context.Context, addr Address, o *Options) (net.Conn, error) {
	config, err := NewClientTLSConfig(o.TLS, addr.Host)
	if err != nil {
		return nil, err
	}

	conn, err := dialTCP(ctx, addr, o)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, o.HandshakeTimeout)
	defer cancel()

	tlsConn := tls.Client(conn, config)
	if err := tlsConn.HandshakeContext(hctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("TLS handshake failed: %w", err)
	}
	return tlsConn, nil
}
