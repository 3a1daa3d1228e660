package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// MaxLogFrameDataSize is the maximum frame data size to include in logs (4 KB).
	// Larger frames are truncated in log events to avoid excessive memory usage.
	MaxLogFrameDataSize = 4096

	frameBufferSize = 32 << 10
)

// Framing errors.
var (
	// ErrFrameTooLarge indicates the frame exceeds the maximum size.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrFrameEmpty indicates a zero-length frame.
	ErrFrameEmpty = errors.New("frame is empty")

	// ErrFrameTruncated indicates the stream ended inside a frame.
	ErrFrameTruncated = errors.New("frame truncated")
)

// frameLog attaches protocol capture to a frame reader or writer.
type frameLog struct {
	logger log.Logger
	base   log.Event
}

func (fl *frameLog) emit(data []byte, direction log.Direction) {
	if fl.logger == nil {
		return
	}

	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	event := fl.base
	event.Timestamp = time.Now()
	event.Direction = direction
	event.Layer = log.LayerTransport
	event.Category = log.CategoryFrame
	event.Frame = &log.FrameEvent{
		Size:      FrameSize(len(data)),
		Data:      frameData,
		Truncated: truncated,
	}
	fl.logger.Log(event)
}

// FrameWriter writes length-prefixed frames through a buffer.
// Frames reach the underlying writer on Flush or when the buffer fills.
// A FrameWriter is not safe for concurrent use.
type FrameWriter struct {
	w            *bufio.Writer
	maxFrameSize uint32
	lengthBuf    [LengthPrefixSize]byte
	log          frameLog
}

// NewFrameWriter creates a frame writer with the default maximum frame size.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return NewFrameWriterWithMaxSize(w, DefaultMaxFrameSize)
}

// NewFrameWriterWithMaxSize creates a frame writer with a custom max size.
func NewFrameWriterWithMaxSize(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{
		w:            bufio.NewWriterSize(w, frameBufferSize),
		maxFrameSize: maxSize,
	}
}

// SetLogger configures protocol capture for this writer. base supplies the
// connection fields copied into every event. Pass a nil logger to disable.
func (fw *FrameWriter) SetLogger(logger log.Logger, base log.Event) {
	fw.log = frameLog{logger: logger, base: base}
}

// WriteFrame buffers a length-prefixed frame.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if len(data) == 0 {
		return ErrFrameEmpty
	}
	if uint64(len(data)) > uint64(fw.maxFrameSize) {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), fw.maxFrameSize)
	}

	binary.BigEndian.PutUint32(fw.lengthBuf[:], uint32(len(data)))

	if _, err := fw.w.Write(fw.lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	fw.log.emit(data, log.DirectionOut)
	return nil
}

// Flush writes buffered frames to the underlying writer.
func (fw *FrameWriter) Flush() error {
	return fw.w.Flush()
}

// Buffered returns the number of bytes not yet flushed.
func (fw *FrameWriter) Buffered() int {
	return fw.w.Buffered()
}

// FrameReader reads length-prefixed frames from a buffered reader.
type FrameReader struct {
	r            *bufio.Reader
	maxFrameSize uint32
	lengthBuf    [LengthPrefixSize]byte
	log          frameLog
}

// NewFrameReader creates a frame reader with the default maximum frame size.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxSize(r, DefaultMaxFrameSize)
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:            bufio.NewReaderSize(r, frameBufferSize),
		maxFrameSize: maxSize,
	}
}

// SetLogger configures protocol capture for this reader. base supplies the
// connection fields copied into every event. Pass a nil logger to disable.
func (fr *FrameReader) SetLogger(logger log.Logger, base log.Event) {
	fr.log = frameLog{logger: logger, base: base}
}

// ReadFrame reads one length-prefixed frame and returns its payload.
// io.EOF is returned only when the stream ends on a frame boundary.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])
	if length == 0 {
		return nil, ErrFrameEmpty
	}
	if length > fr.maxFrameSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, length, fr.maxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	fr.log.emit(payload, log.DirectionIn)
	return payload, nil
}

// SetMaxFrameSize updates the maximum frame size.
func (fr *FrameReader) SetMaxFrameSize(size uint32) {
	fr.maxFrameSize = size
}

// Framer combines frame reading and writing.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a framer for bidirectional communication.
func NewFramer(rw io.ReadWriter) *Framer {
	return NewFramerWithMaxSize(rw, DefaultMaxFrameSize)
}

// NewFramerWithMaxSize creates a framer with a custom max frame size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures protocol capture for both directions.
func (f *Framer) SetLogger(logger log.Logger, base log.Event) {
	f.FrameReader.SetLogger(logger, base)
	f.FrameWriter.SetLogger(logger, base)
}

// WriteFrame buffers a frame and flushes it immediately.
func (f *Framer) WriteFrame(data []byte) error {
	if err := f.FrameWriter.WriteFrame(data); err != nil {
		return err
	}
	return f.FrameWriter.Flush()
}

// FrameSize returns the total frame size including the length prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
