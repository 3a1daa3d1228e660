package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Scheme selects the wire protocol of an address.
type Scheme string

// Supported schemes.
const (
	// SchemeTCP is plain TCP.
	SchemeTCP Scheme = "tcp"

	// SchemeTLS is TCP with TLS 1.3.
	SchemeTLS Scheme = "tls"
)

// Secure reports whether the scheme runs TLS.
func (s Scheme) Secure() bool {
	return s == SchemeTLS
}

// Address is a parsed transport URI.
type Address struct {
	Scheme Scheme

	// Host is a hostname or IP literal without brackets. Empty binds all interfaces.
	Host string

	// Port is 0..65535. Port 0 requests an ephemeral port and is only valid for Bind.
	Port int
}

// ParseAddress parses a URI of the form scheme://host:port.
func ParseAddress(uri string) (Address, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	scheme := Scheme(u.Scheme)
	switch scheme {
	case SchemeTCP, SchemeTLS:
	case "":
		return Address{}, fmt.Errorf("%w: missing scheme in %q", ErrInvalidAddress, uri)
	default:
		return Address{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	if u.Opaque != "" || u.User != nil {
		return Address{}, fmt.Errorf("%w: %q is not scheme://host:port", ErrInvalidAddress, uri)
	}
	if u.Path != "" || u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return Address{}, fmt.Errorf("%w: path, query and fragment are not allowed in %q", ErrInvalidAddress, uri)
	}

	portStr := u.Port()
	if portStr == "" {
		return Address{}, fmt.Errorf("%w: missing port in %q", ErrInvalidAddress, uri)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return Address{}, fmt.Errorf("%w: port %q out of range", ErrInvalidAddress, portStr)
	}

	return Address{
		Scheme: scheme,
		Host:   u.Hostname(),
		Port:   port,
	}, nil
}

// HostPort returns host:port in the form expected by the net package.
func (a Address) HostPort() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// String returns the canonical URI.
func (a Address) String() string {
	return string(a.Scheme) + "://" + a.HostPort()
}
