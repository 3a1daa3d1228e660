package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		uri     string
		want    Address
		wantErr error
	}{
		{uri: "tcp://127.0.0.1:4000", want: Address{Scheme: SchemeTCP, Host: "127.0.0.1", Port: 4000}},
		{uri: "tls://example.org:8443", want: Address{Scheme: SchemeTLS, Host: "example.org", Port: 8443}},
		{uri: "tcp://[::1]:0", want: Address{Scheme: SchemeTCP, Host: "::1", Port: 0}},
		{uri: "tcp://:4000", want: Address{Scheme: SchemeTCP, Host: "", Port: 4000}},
		{uri: "tcp://127.0.0.1:65535", want: Address{Scheme: SchemeTCP, Host: "127.0.0.1", Port: 65535}},

		{uri: "127.0.0.1:4000", wantErr: ErrInvalidAddress},
		{uri: "tcp://127.0.0.1", wantErr: ErrInvalidAddress},
		{uri: "tcp://127.0.0.1:65536", wantErr: ErrInvalidAddress},
		{uri: "tcp://127.0.0.1:port", wantErr: ErrInvalidAddress},
		{uri: "tcp://user@127.0.0.1:4000", wantErr: ErrInvalidAddress},
		{uri: "tcp://127.0.0.1:4000/path", wantErr: ErrInvalidAddress},
		{uri: "tcp://127.0.0.1:4000?x=1", wantErr: ErrInvalidAddress},
		{uri: "tcp://127.0.0.1:4000#frag", wantErr: ErrInvalidAddress},
		{uri: "tcp:127.0.0.1:4000", wantErr: ErrInvalidAddress},
		{uri: "", wantErr: ErrInvalidAddress},
		{uri: "udp://127.0.0.1:4000", wantErr: ErrUnsupportedScheme},
		{uri: "http://127.0.0.1:80", wantErr: ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := ParseAddress(tt.uri)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "tcp://127.0.0.1:4000", Address{Scheme: SchemeTCP, Host: "127.0.0.1", Port: 4000}.String())
	assert.Equal(t, "tls://[::1]:8443", Address{Scheme: SchemeTLS, Host: "::1", Port: 8443}.String())
	assert.Equal(t, "[::1]:8443", Address{Scheme: SchemeTLS, Host: "::1", Port: 8443}.HostPort())

	addr, err := ParseAddress("tls://[::1]:8443")
	require.NoError(t, err)
	assert.Equal(t, "tls://[::1]:8443", addr.String())
}

func TestSchemeSecure(t *testing.T) {
	assert.False(t, SchemeTCP.Secure())
	assert.True(t, SchemeTLS.Secure())
}
