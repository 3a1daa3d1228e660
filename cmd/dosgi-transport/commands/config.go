package commands

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fabric-dosgi/dosgi-go/pkg/cert"
	"github.com/fabric-dosgi/dosgi-go/pkg/connection"
	"github.com/fabric-dosgi/dosgi-go/pkg/log"
	"github.com/fabric-dosgi/dosgi-go/pkg/transport"
)

// Config is the YAML configuration file of dosgi-transport. Command-line
// flags override the values read from it.
type Config struct {
	// Listen is the URI served by the serve command.
	Listen string `yaml:"listen"`

	// Connect lists the URIs tried in order by the connect command.
	Connect []string `yaml:"connect"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level"`

	// ProtocolLog is the path of a CBOR capture file. Empty disables capture.
	ProtocolLog string `yaml:"protocol_log"`

	// Trace prints every protocol event through the operational logger.
	Trace bool `yaml:"trace"`

	Transport TransportConfig `yaml:"transport"`
	TLS       *TLSFiles       `yaml:"tls"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// TransportConfig mirrors transport.Options. Zero values keep the defaults.
type TransportConfig struct {
	MaxFrameSize   uint32        `yaml:"max_frame_size"`
	SendQueueSize  int           `yaml:"send_queue_size"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
	MaxConnections int           `yaml:"max_connections"`
	AsyncDispatch  int           `yaml:"async_dispatch"`
}

// TLSFiles locates PEM material for tls:// URIs.
type TLSFiles struct {
	CertFile           string `yaml:"cert_file"`
	KeyFile            string `yaml:"key_file"`
	CAFile             string `yaml:"ca_file"`
	RequireClientCert  bool   `yaml:"require_client_cert"`
	ServerName         string `yaml:"server_name"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// ReconnectConfig configures the connect command's redialer.
type ReconnectConfig struct {
	Enabled bool                     `yaml:"enabled"`
	Backoff connection.BackoffConfig `yaml:"backoff"`
}

// DefaultConfig returns the configuration used without a config file.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "tcp://127.0.0.1:7000",
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Logger builds the operational logger.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// TransportOptions converts the configuration to transport options.
func (c *Config) TransportOptions(logger *slog.Logger, plog log.Logger) ([]transport.Option, error) {
	t := c.Transport
	opts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithMaxFrameSize(t.MaxFrameSize),
		transport.WithSendQueueSize(t.SendQueueSize),
		transport.WithReadTimeout(t.ReadTimeout),
		transport.WithMaxConnections(t.MaxConnections),
		transport.WithAsyncDispatch(t.AsyncDispatch),
	}
	if t.DrainTimeout > 0 {
		opts = append(opts, transport.WithDrainTimeout(t.DrainTimeout))
	}
	if t.DialTimeout > 0 {
		opts = append(opts, transport.WithDialTimeout(t.DialTimeout))
	}
	if t.KeepAlive != 0 {
		opts = append(opts, transport.WithKeepAlive(t.KeepAlive))
	}
	if plog != nil {
		opts = append(opts, transport.WithProtocolLogger(plog))
	}

	if c.TLS != nil {
		tlsCfg, err := c.TLS.load()
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithTLS(tlsCfg))
	}
	return opts, nil
}

func (f *TLSFiles) load() (*transport.TLSConfig, error) {
	cfg := &transport.TLSConfig{
		RequireClientCert:  f.RequireClientCert,
		ServerName:         f.ServerName,
		InsecureSkipVerify: f.InsecureSkipVerify,
	}

	if f.CertFile != "" || f.KeyFile != "" {
		pair, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate: %w", err)
		}
		cfg.Certificate = pair
	}

	if f.CAFile != "" {
		pool, err := cert.ReadCertPoolFile(f.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load CA file: %w", err)
		}
		cfg.RootCAs = pool
		cfg.ClientCAs = pool
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}
