package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/fabric-dosgi/dosgi-go/pkg/version"
)

// ALPNProtocol is the ALPN identifier negotiated on tls:// transports.
var ALPNProtocol = version.MustCurrent().ALPN()

// TLSConfig holds certificate material for tls:// servers and transports.
type TLSConfig struct {
	// Certificate is the TLS certificate for this endpoint.
	// Required for servers, optional for clients unless the server demands one.
	Certificate tls.Certificate

	// RootCAs is the pool of CA certificates used to verify servers.
	// Nil uses the host's root pool.
	RootCAs *x509.CertPool

	// ClientCAs is the pool of CA certificates used to verify clients.
	// Servers only.
	ClientCAs *x509.CertPool

	// RequireClientCert makes servers reject clients without a certificate
	// that verifies against ClientCAs.
	RequireClientCert bool

	// ServerName is the expected server name for client connections.
	// Empty uses the host of the URI.
	ServerName string

	// InsecureSkipVerify disables certificate verification.
	// Only for testing - never use in production!
	InsecureSkipVerify bool
}

// NewServerTLSConfig creates a TLS 1.3 configuration for a server.
func NewServerTLSConfig(cfg *TLSConfig) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrTLSConfigRequired
	}
	if len(cfg.Certificate.Certificate) == 0 {
		return nil, fmt.Errorf("server certificate is required")
	}

	clientAuth := tls.NoClientCert
	switch {
	case cfg.RequireClientCert:
		clientAuth = tls.RequireAndVerifyClientCert
	case cfg.ClientCAs != nil:
		clientAuth = tls.VerifyClientCertIfGiven
	}

	return &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{cfg.Certificate},
		ClientAuth:   clientAuth,
		ClientCAs:    cfg.ClientCAs,
		NextProtos:   version.SupportedALPNProtocols(),

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		SessionTicketsDisabled: true,
		VerifyConnection:       VerifyConnection,
	}, nil
}

// NewClientTLSConfig creates a TLS 1.3 configuration for outbound transports.
func NewClientTLSConfig(cfg *TLSConfig, serverName string) (*tls.Config, error) {
	if cfg == nil {
		return nil, ErrTLSConfigRequired
	}
	if cfg.ServerName != "" {
		serverName = cfg.ServerName
	}

	tlsConfig := &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		RootCAs:    cfg.RootCAs,
		ServerName: serverName,
		NextProtos: version.SupportedALPNProtocols(),

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		SessionTicketsDisabled: true,
		VerifyConnection:       VerifyConnection,

		// For testing only
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}
	if len(cfg.Certificate.Certificate) > 0 {
		tlsConfig.Certificates = []tls.Certificate{cfg.Certificate}
	}

	return tlsConfig, nil
}

// VerifyTLS13 checks that a TLS connection is using TLS 1.3.
func VerifyTLS13(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is not TLS 1.3 (0x0304)", state.Version)
	}
	return nil
}

// VerifyALPN checks that the negotiated ALPN protocol carries a major
// revision compatible with this implementation.
func VerifyALPN(state tls.ConnectionState) error {
	major, err := version.MajorFromALPN(state.NegotiatedProtocol)
	if err != nil {
		return err
	}
	if current := version.MustCurrent(); major != current.Major {
		return fmt.Errorf("ALPN protocol %q is not compatible with %s", state.NegotiatedProtocol, current.ALPN())
	}
	return nil
}

// VerifyConnection checks the TLS version and the negotiated ALPN protocol.
func VerifyConnection(state tls.ConnectionState) error {
	if err := VerifyTLS13(state); err != nil {
		return err
	}
	return VerifyALPN(state)
}

// tlsServerUpgrader returns the per-connection handshake of a tls:// server.
func tlsServerUpgrader(config *tls.Config) Upgrader {
	return func(ctx context.Context, conn net.Conn) (net.Conn, error) {
		tlsConn := tls.Server(conn, config)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		return tlsConn, nil
	}
}
