package streamio

import (
	"errors"
	"fmt"

	"github.com/valyala/bytebufferpool"
)

// DefaultChunkSize is the size of the chunks delivered to a BlockWriter.
const DefaultChunkSize = 64 << 10

var (
	ErrWriteCallback = errors.New("write callback failed")
	ErrSinkClosed    = errors.New("sink is closed")
)

// BlockWriter is the host side of a Block Sink. WriteBlock consumes data and
// returns 1 on success; any other value is a failure. data is only valid for
// the duration of the call.
type BlockWriter interface {
	WriteBlock(data []byte) int
}

// WriteBlockFunc adapts a plain function to a BlockWriter.
type WriteBlockFunc func(data []byte) int

// WriteBlock calls f(data).
func (f WriteBlockFunc) WriteBlock(data []byte) int {
	return f(data)
}

var stagingPool bytebufferpool.Pool

// Sink stages written bytes and delivers them to a BlockWriter in chunks of
// a fixed size. After the first callback failure the sink is poisoned: the
// callback is not invoked again and every later call returns the same error.
//
// A Sink is not safe for concurrent use.
type Sink struct {
	w     BlockWriter
	buf   *bytebufferpool.ByteBuffer
	chunk int

	written int64
	chunks  int
	err     error
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithChunkSize sets the delivery chunk size. Values outside
// [MinBlockSize, MaxBlockSize] are clamped.
func WithChunkSize(n int) SinkOption {
	return func(s *Sink) {
		s.chunk = clampBlock(n)
	}
}

// NewSink creates a Sink. No callback is invoked.
func NewSink(w BlockWriter, opts ...SinkOption) (*Sink, error) {
	if w == nil {
		return nil, fmt.Errorf("sink: %w", ErrNilCallback)
	}

	s := &Sink{w: w, chunk: DefaultChunkSize}
	for _, opt := range opts {
		opt(s)
	}
	s.buf = stagingPool.Get()
	return s, nil
}

// Write stages p, delivering a chunk each time the staging buffer fills.
func (s *Sink) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}

	n := 0
	for len(p) > 0 {
		k := s.chunk - s.buf.Len()
		if k > len(p) {
			k = len(p)
		}
		s.buf.B = append(s.buf.B, p[:k]...)
		n += k
		p = p[k:]

		if s.buf.Len() == s.chunk {
			if err := s.drain(); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Flush delivers any staged bytes as a final, possibly short, chunk.
func (s *Sink) Flush() error {
	if s.err != nil {
		return s.err
	}
	return s.drain()
}

// Close flushes staged bytes and returns the staging buffer to the pool.
// Calling Close on a closed sink returns ErrSinkClosed.
func (s *Sink) Close() error {
	if s.buf == nil {
		return ErrSinkClosed
	}
	err := s.Flush()
	s.release()
	if err != nil {
		return err
	}
	s.err = ErrSinkClosed
	return nil
}

// Discard releases the staging buffer without delivering staged bytes.
// Chunks already delivered are not retracted.
func (s *Sink) Discard() {
	if s.buf == nil {
		return
	}
	s.release()
	if s.err == nil {
		s.err = ErrSinkClosed
	}
}

// Err returns the error that poisoned the sink, if any.
func (s *Sink) Err() error {
	if errors.Is(s.err, ErrSinkClosed) {
		return nil
	}
	return s.err
}

// Written returns the number of bytes delivered to the callback.
func (s *Sink) Written() int64 {
	return s.written
}

// Chunks returns the number of successful callback invocations.
func (s *Sink) Chunks() int {
	return s.chunks
}

func (s *Sink) drain() error {
	if s.buf.Len() == 0 {
		return nil
	}
	if rc := s.w.WriteBlock(s.buf.B); rc != 1 {
		s.err = fmt.Errorf("%w after %d bytes (chunk %d)", ErrWriteCallback, s.written, s.chunks+1)
		return s.err
	}
	s.written += int64(s.buf.Len())
	s.chunks++
	s.buf.Reset()
	return nil
}

func (s *Sink) release() {
	stagingPool.Put(s.buf)
	s.buf = nil
}
