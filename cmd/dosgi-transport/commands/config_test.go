package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabric-dosgi/dosgi-go/pkg/cert"
	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
listen: tcp://0.0.0.0:7100
connect:
  - tcp://10.0.0.1:7100
  - tcp://10.0.0.2:7100
log_level: debug
protocol_log: /tmp/capture.dlog
trace: true
transport:
  max_frame_size: 1048576
  send_queue_size: 64
  drain_timeout: 2s
  read_timeout: 1m
  max_connections: 100
  async_dispatch: 32
reconnect:
  enabled: true
  backoff:
    initial: 500ms
    max: 30s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://0.0.0.0:7100", cfg.Listen)
	assert.Equal(t, []string{"tcp://10.0.0.1:7100", "tcp://10.0.0.2:7100"}, cfg.Connect)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/capture.dlog", cfg.ProtocolLog)
	assert.True(t, cfg.Trace)
	assert.Equal(t, uint32(1048576), cfg.Transport.MaxFrameSize)
	assert.Equal(t, 64, cfg.Transport.SendQueueSize)
	assert.Equal(t, 2*time.Second, cfg.Transport.DrainTimeout)
	assert.Equal(t, time.Minute, cfg.Transport.ReadTimeout)
	assert.Equal(t, 100, cfg.Transport.MaxConnections)
	assert.Equal(t, 32, cfg.Transport.AsyncDispatch)
	assert.True(t, cfg.Reconnect.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Reconnect.Backoff.Initial)
	assert.Equal(t, 30*time.Second, cfg.Reconnect.Backoff.Max)
	assert.Nil(t, cfg.TLS)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "listen: [unterminated"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "log_level: loud"))
	assert.ErrorContains(t, err, "invalid log level")
}

func TestTransportOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts, err := cfg.TransportOptions(discardLogger(), log.NoopLogger{})
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestTransportOptionsTLSErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS = &TLSFiles{CertFile: "missing.pem", KeyFile: "missing.key"}
	_, err := cfg.TransportOptions(discardLogger(), nil)
	assert.ErrorContains(t, err, "certificate")

	badCA := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))
	cfg.TLS = &TLSFiles{CAFile: badCA}
	_, err = cfg.TransportOptions(discardLogger(), nil)
	assert.ErrorIs(t, err, cert.ErrNoCertificates)
	assert.ErrorContains(t, err, badCA)
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", "", "warn", "warning", "error"} {
		_, err := parseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := parseLevel("verbose")
	assert.Error(t, err)
}
