package commands

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const testTimeout = 5 * time.Second

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) contains(s string) bool {
	return strings.Contains(b.String(), s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedInput is a LineReader fed through a channel.
type scriptedInput struct {
	lines     chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptedInput() *scriptedInput {
	return &scriptedInput{
		lines:  make(chan string, 16),
		closed: make(chan struct{}),
	}
}

func (s *scriptedInput) Readline() (string, error) {
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-s.closed:
		return "", io.EOF
	}
}

func (s *scriptedInput) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedInput) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func fmtTo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
