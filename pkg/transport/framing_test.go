package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// writeFrames encodes payloads into a buffer through a FrameWriter.
func writeFrames(t testing.TB, payloads ...[]byte) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)
	for _, p := range payloads {
		if err := writer.WriteFrame(p); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	return buf
}

func TestFrameWriterReader(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{
			name:    "small frame",
			payload: []byte("hello"),
		},
		{
			name:    "larger than the buffer",
			payload: bytes.Repeat([]byte("x"), 3*frameBufferSize+7),
		},
		{
			name:    "single byte",
			payload: []byte{0x42},
		},
		{
			name:    "binary data",
			payload: []byte{0x00, 0xFF, 0x7F, 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := writeFrames(t, tt.payload)

			expectedSize := LengthPrefixSize + len(tt.payload)
			if buf.Len() != expectedSize {
				t.Errorf("frame size = %d, want %d", buf.Len(), expectedSize)
			}

			got, err := NewFrameReader(buf).ReadFrame()
			if err != nil {
				t.Fatalf("ReadFrame failed: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %d bytes, want %d bytes", len(got), len(tt.payload))
			}
		})
	}
}

func TestFrameWriterBuffersUntilFlush(t *testing.T) {
	buf := new(bytes.Buffer)
	writer := NewFrameWriter(buf)

	if err := writer.WriteFrame([]byte("queued")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("underlying writer saw %d bytes before Flush", buf.Len())
	}
	if writer.Buffered() != FrameSize(len("queued")) {
		t.Errorf("Buffered = %d, want %d", writer.Buffered(), FrameSize(len("queued")))
	}

	if err := writer.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if buf.Len() != FrameSize(len("queued")) {
		t.Errorf("after Flush: %d bytes, want %d", buf.Len(), FrameSize(len("queued")))
	}
}

func TestFrameWriterEmptyFrame(t *testing.T) {
	writer := NewFrameWriter(new(bytes.Buffer))

	if err := writer.WriteFrame([]byte{}); !errors.Is(err, ErrFrameEmpty) {
		t.Errorf("expected ErrFrameEmpty, got %v", err)
	}
	if err := writer.WriteFrame(nil); !errors.Is(err, ErrFrameEmpty) {
		t.Errorf("expected ErrFrameEmpty for nil, got %v", err)
	}
}

func TestFrameWriterFrameTooLarge(t *testing.T) {
	writer := NewFrameWriterWithMaxSize(new(bytes.Buffer), 100)

	err := writer.WriteFrame(bytes.Repeat([]byte("x"), 101))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameReaderFrameTooLarge(t *testing.T) {
	buf := new(bytes.Buffer)

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 1000)
	buf.Write(lengthBuf[:])
	buf.Write(bytes.Repeat([]byte("x"), 1000))

	_, err := NewFrameReaderWithMaxSize(buf, 100).ReadFrame()
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameReaderEmptyLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})

	_, err := NewFrameReader(buf).ReadFrame()
	if !errors.Is(err, ErrFrameEmpty) {
		t.Errorf("expected ErrFrameEmpty, got %v", err)
	}
}

func TestFrameReaderTruncated(t *testing.T) {
	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], 100)

	tests := []struct {
		name string
		data []byte
	}{
		{"partial length prefix", []byte{0x00, 0x01}},
		{"partial payload", append(lengthBuf[:], bytes.Repeat([]byte("x"), 50)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrameReader(bytes.NewReader(tt.data)).ReadFrame()
			if !errors.Is(err, ErrFrameTruncated) {
				t.Errorf("expected ErrFrameTruncated, got %v", err)
			}
		})
	}
}

func TestFrameReaderEOF(t *testing.T) {
	_, err := NewFrameReader(new(bytes.Buffer)).ReadFrame()
	if err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFramerBidirectional(t *testing.T) {
	r, w := io.Pipe()
	defer r.Close()
	defer w.Close()

	done := make(chan struct{})
	payload := []byte("test frame")

	go func() {
		defer close(done)
		framer := NewFramer(&readWriter{r: r, w: w})
		if err := framer.WriteFrame(payload); err != nil {
			t.Errorf("WriteFrame failed: %v", err)
		}
	}()

	framer := NewFramer(&readWriter{r: r, w: w})
	got, err := framer.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch")
	}

	<-done
}

// readWriter combines a reader and writer for testing.
type readWriter struct {
	r io.Reader
	w io.Writer
}

func (rw *readWriter) Read(p []byte) (n int, err error) {
	return rw.r.Read(p)
}

func (rw *readWriter) Write(p []byte) (n int, err error) {
	return rw.w.Write(p)
}

func TestMultipleFramesKeepOrder(t *testing.T) {
	frames := [][]byte{
		[]byte("first"),
		[]byte("second"),
		[]byte("third"),
	}
	reader := NewFrameReader(writeFrames(t, frames...))

	for i, want := range frames {
		got, err := reader.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d mismatch: got %q, want %q", i, got, want)
		}
	}

	if _, err := reader.ReadFrame(); err != io.EOF {
		t.Errorf("expected EOF after all frames, got %v", err)
	}
}

func TestFrameSize(t *testing.T) {
	if got := FrameSize(100); got != 104 {
		t.Errorf("FrameSize(100) = %d, want 104", got)
	}
	if got := FrameSize(0); got != 4 {
		t.Errorf("FrameSize(0) = %d, want 4", got)
	}
}

func BenchmarkFrameWrite(b *testing.B) {
	writer := NewFrameWriter(io.Discard)
	payload := bytes.Repeat([]byte("x"), 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		writer.WriteFrame(payload)
	}
	writer.Flush()
}

func BenchmarkFrameRead(b *testing.B) {
	payloads := make([][]byte, 1000)
	for i := range payloads {
		payloads[i] = bytes.Repeat([]byte("x"), 1000)
	}
	data := writeFrames(b, payloads...).Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reader := NewFrameReader(bytes.NewReader(data))
		for {
			_, err := reader.ReadFrame()
			if err == io.EOF {
				break
			}
			if err != nil {
				b.Fatal(err)
			}
		}
	}
}

// capturingLogger captures log events for testing.
type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestFrameWriterLogsOnWrite(t *testing.T) {
	logger := &capturingLogger{}

	writer := NewFrameWriter(new(bytes.Buffer))
	writer.SetLogger(logger, log.Event{ConnectionID: "conn-123", TransportID: 9, Role: log.RoleDialed})

	payload := []byte("hello")
	if err := writer.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.ConnectionID != "conn-123" || e.TransportID != 9 || e.Role != log.RoleDialed {
		t.Errorf("connection fields not copied: %+v", e)
	}
	if e.Direction != log.DirectionOut {
		t.Errorf("Direction = %v, want DirectionOut", e.Direction)
	}
	if e.Layer != log.LayerTransport {
		t.Errorf("Layer = %v, want LayerTransport", e.Layer)
	}
	if e.Category != log.CategoryFrame {
		t.Errorf("Category = %v, want CategoryFrame", e.Category)
	}
	if e.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if e.Frame.Size != FrameSize(len(payload)) {
		t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(payload)))
	}
	if !bytes.Equal(e.Frame.Data, payload) {
		t.Errorf("Frame.Data = %v, want %v", e.Frame.Data, payload)
	}
}

func TestFrameReaderLogsOnRead(t *testing.T) {
	payload := []byte("world")
	logger := &capturingLogger{}

	reader := NewFrameReader(writeFrames(t, payload))
	reader.SetLogger(logger, log.Event{ConnectionID: "conn-456"})

	if _, err := reader.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ConnectionID != "conn-456" {
		t.Errorf("ConnectionID = %q, want %q", events[0].ConnectionID, "conn-456")
	}
	if events[0].Direction != log.DirectionIn {
		t.Errorf("Direction = %v, want DirectionIn", events[0].Direction)
	}
}

func TestFramerNoLoggerNoPanic(t *testing.T) {
	buf := new(bytes.Buffer)
	framer := NewFramer(buf)

	if err := framer.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if _, err := framer.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	framer.SetLogger(nil, log.Event{ConnectionID: "conn-id"})
	if err := framer.WriteFrame([]byte("world")); err != nil {
		t.Fatalf("WriteFrame with nil logger failed: %v", err)
	}
}

func TestFramerLogsTruncatedData(t *testing.T) {
	logger := &capturingLogger{}

	writer := NewFrameWriter(new(bytes.Buffer))
	writer.SetLogger(logger, log.Event{ConnectionID: "conn-trunc"})

	largePayload := bytes.Repeat([]byte("x"), 5000)
	if err := writer.WriteFrame(largePayload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	events := logger.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	e := events[0]
	if e.Frame.Size != FrameSize(len(largePayload)) {
		t.Errorf("Frame.Size = %d, want %d", e.Frame.Size, FrameSize(len(largePayload)))
	}
	if len(e.Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("Frame.Data length = %d, want %d", len(e.Frame.Data), MaxLogFrameDataSize)
	}
	if !e.Frame.Truncated {
		t.Error("Frame.Truncated = false, want true")
	}
}
