package transport_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
	"github.com/fabric-dosgi/dosgi-go/pkg/transport"
)

const testTimeout = 5 * time.Second

// generateTestCert creates a self-signed certificate for 127.0.0.1 and a
// pool that trusts it.
func generateTestCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	return tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, pool
}

// startServer binds an ephemeral loopback port, registers l and starts the
// server. The server is stopped when the test ends.
func startServer(t *testing.T, l transport.AcceptListener, opts ...transport.Option) *transport.TCPServer {
	t.Helper()
	return startServerURI(t, "tcp://127.0.0.1:0", l, opts...)
}

func startServerURI(t *testing.T, uri string, l transport.AcceptListener, opts ...transport.Option) *transport.TCPServer {
	t.Helper()

	srv, err := transport.Bind(uri, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.SetAcceptListener(l))
	require.NoError(t, srv.Start())

	t.Cleanup(func() {
		srv.Stop()
		select {
		case <-srv.Done():
		case <-time.After(testTimeout):
			t.Errorf("server did not finish")
		}
	})
	return srv
}

// connectedPair returns a dialed transport and the server-side transport
// accepted for it. Neither is started.
func connectedPair(t *testing.T, opts ...transport.Option) (*transport.TCPTransport, transport.Transport) {
	t.Helper()

	accepts := transport.NewAcceptChannels(1)
	srv := startServer(t, accepts, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client, err := transport.Connect(ctx, srv.URI(), opts...)
	require.NoError(t, err)

	var accepted transport.Transport
	select {
	case accepted = <-accepts.Accepted:
	case err := <-accepts.Errors:
		t.Fatalf("unexpected accept error: %v", err)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for accept")
	}

	t.Cleanup(func() {
		client.Disconnect()
		accepted.Disconnect()
	})
	return client, accepted
}

// frameRecorder is a TransportListener that forwards to channels.
type frameRecorder struct {
	frames   chan []byte
	failures chan error
}

func newFrameRecorder() *frameRecorder {
	return &frameRecorder{
		frames:   make(chan []byte, 1024),
		failures: make(chan error, 16),
	}
}

func (r *frameRecorder) OnFrame(_ transport.Transport, frame []byte) {
	r.frames <- frame
}

func (r *frameRecorder) OnFailure(_ transport.Transport, err error) {
	r.failures <- err
}

func (r *frameRecorder) nextFrame(t *testing.T) []byte {
	t.Helper()
	select {
	case f := <-r.frames:
		return f
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func (r *frameRecorder) nextFailure(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.failures:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for failure")
		return nil
	}
}

// startWith registers l and starts tr.
func startWith(t *testing.T, tr transport.Transport, l transport.TransportListener) {
	t.Helper()
	require.NoError(t, tr.SetTransportListener(l))
	require.NoError(t, tr.Start())
}

func waitClosed(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

// eventLog captures protocol events.
type eventLog struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *eventLog) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) count(c log.Category) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Category == c {
			n++
		}
	}
	return n
}
