package transport

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()

	assert.Equal(t, uint32(DefaultMaxFrameSize), o.MaxFrameSize)
	assert.Equal(t, DefaultSendQueueSize, o.SendQueueSize)
	assert.Equal(t, DefaultDrainTimeout, o.DrainTimeout)
	assert.Zero(t, o.ReadTimeout)
	assert.True(t, o.KeepAlive)
	assert.True(t, o.NoDelay)
	assert.Nil(t, o.TLS)
	assert.Zero(t, o.MaxConnections)
	assert.Zero(t, o.AsyncDispatch)
}

func TestBuildOptions(t *testing.T) {
	plog := log.NoopLogger{}
	logger := slog.Default()

	o := buildOptions(DefaultOptions(), []Option{
		WithMaxFrameSize(1024),
		WithSendQueueSize(8),
		WithDrainTimeout(time.Second),
		WithReadTimeout(2 * time.Second),
		WithDialTimeout(3 * time.Second),
		WithHandshakeTimeout(4 * time.Second),
		WithKeepAlive(0),
		WithNoDelay(false),
		WithLogger(logger),
		WithProtocolLogger(plog),
		WithMaxConnections(10),
		WithAsyncDispatch(32),
		nil,
	})

	assert.Equal(t, uint32(1024), o.MaxFrameSize)
	assert.Equal(t, 8, o.SendQueueSize)
	assert.Equal(t, time.Second, o.DrainTimeout)
	assert.Equal(t, 2*time.Second, o.ReadTimeout)
	assert.Equal(t, 3*time.Second, o.DialTimeout)
	assert.Equal(t, 4*time.Second, o.HandshakeTimeout)
	assert.False(t, o.KeepAlive)
	assert.False(t, o.NoDelay)
	assert.Same(t, logger, o.Logger)
	assert.Equal(t, plog, o.ProtocolLogger)
	assert.Equal(t, 10, o.MaxConnections)
	assert.Equal(t, 32, o.AsyncDispatch)
}

func TestBuildOptionsNormalizes(t *testing.T) {
	o := buildOptions(Options{KeepAlive: true}, []Option{
		WithMaxFrameSize(0),
		WithSendQueueSize(-1),
		WithDialTimeout(0),
	})

	assert.Equal(t, uint32(DefaultMaxFrameSize), o.MaxFrameSize)
	assert.Equal(t, DefaultSendQueueSize, o.SendQueueSize)
	assert.Equal(t, DefaultDialTimeout, o.DialTimeout)
	assert.Equal(t, DefaultHandshakeTimeout, o.HandshakeTimeout)
	assert.Equal(t, DefaultKeepAlivePeriod, o.KeepAlivePeriod)
	assert.Zero(t, o.DrainTimeout, "zero drain timeout waits without deadline")
}

func TestFactoryOptionsOverride(t *testing.T) {
	f := NewFactory(WithSendQueueSize(4), WithReadTimeout(time.Minute))

	defaults := f.Options()
	assert.Equal(t, 4, defaults.SendQueueSize)
	assert.Equal(t, time.Minute, defaults.ReadTimeout)

	perCall := buildOptions(f.Options(), []Option{WithSendQueueSize(16)})
	assert.Equal(t, 16, perCall.SendQueueSize)
	assert.Equal(t, time.Minute, perCall.ReadTimeout)
	assert.Equal(t, 4, f.Options().SendQueueSize, "per-call options must not leak into the factory")
}

func TestNextAcceptPause(t *testing.T) {
	pause := time.Duration(0)
	pause = nextAcceptPause(pause)
	assert.Equal(t, minAcceptPause, pause)

	pause = nextAcceptPause(pause)
	assert.Equal(t, 2*minAcceptPause, pause)

	for i := 0; i < 20; i++ {
		pause = nextAcceptPause(pause)
	}
	assert.Equal(t, maxAcceptPause, pause)
}
