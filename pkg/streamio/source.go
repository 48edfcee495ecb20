// Package streamio adapts host-supplied block callbacks to the io interfaces
// consumed by the PDF libraries.
package streamio

import (
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// MaxSize is the largest source that 32-bit signed callback positions can address.
	MaxSize = math.MaxInt32

	// DefaultWindowSize is the size of the retained window used by sequential reads.
	DefaultWindowSize = 4 << 10

	// MinBlockSize and MaxBlockSize bound both the read window and the sink chunk size.
	MinBlockSize = 1 << 10
	MaxBlockSize = 1 << 20
)

var (
	ErrReadCallback   = errors.New("read callback failed")
	ErrInvalidSize    = errors.New("invalid source size")
	ErrNilCallback    = errors.New("nil callback")
	ErrSourceClosed   = errors.New("source is closed")
	ErrNegativeOffset = errors.New("negative offset")
)

// BlockReader is the host side of a Block Source. ReadBlock fills buf with the
// bytes starting at position and returns the number of bytes written, or -1
// on failure. Implementations must support random access.
type BlockReader interface {
	ReadBlock(position int32, buf []byte) int
}

// ReadBlockFunc adapts a plain function to a BlockReader. Any user context is
// carried by the closure.
type ReadBlockFunc func(position int32, buf []byte) int

// ReadBlock calls f(position, buf).
func (f ReadBlockFunc) ReadBlock(position int32, buf []byte) int {
	return f(position, buf)
}

// Stats describes the traffic a Source sent to its callback.
type Stats struct {
	Calls          int
	BytesRequested int64
	// MinOffset and MaxEnd are -1 until the first callback invocation.
	MinOffset int64
	MaxEnd    int64
}

// Source is a random-access byte source backed by a BlockReader. It
// implements io.ReaderAt for parsers that seek freely and io.ReadSeeker for
// parsers that read sequentially from a cursor.
//
// A Source is not safe for concurrent use.
type Source struct {
	size   int64
	r      BlockReader
	closer io.Closer

	pos    int64
	buf    []byte
	win    []byte
	winOff int64

	stats Stats
	err   error
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithWindowSize sets the size of the retained window. Values outside
// [MinBlockSize, MaxBlockSize] are clamped.
func WithWindowSize(n int) SourceOption {
	return func(s *Source) {
		s.buf = make([]byte, clampBlock(n))
	}
}

// WithCloser registers c to be closed together with the Source.
func WithCloser(c io.Closer) SourceOption {
	return func(s *Source) {
		s.closer = c
	}
}

// NewSource creates a Source of the given size. No callback is invoked.
func NewSource(size int64, r BlockReader, opts ...SourceOption) (*Source, error) {
	if size <= 0 || size > MaxSize {
		return nil, fmt.Errorf("%w: %d bytes (must be in 1..%d)", ErrInvalidSize, size, MaxSize)
	}
	if r == nil {
		return nil, fmt.Errorf("source: %w", ErrNilCallback)
	}

	s := &Source{
		size:  size,
		r:     r,
		stats: Stats{MinOffset: -1, MaxEnd: -1},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.buf == nil {
		s.buf = make([]byte, DefaultWindowSize)
	}
	return s, nil
}

// Size returns the declared size of the source.
func (s *Source) Size() int64 {
	return s.size
}

// Stats returns a snapshot of the callback traffic so far.
func (s *Source) Stats() Stats {
	return s.stats
}

// Err returns the first callback failure seen by the Source. Parsers do not
// always propagate the errors of the readers they consume, so callers check
// Err to tell an I/O failure from malformed input. Once set, every further
// read fails with it without invoking the callback.
func (s *Source) Err() error {
	return s.err
}

// ReadAt reads len(p) bytes at off. Requests are forwarded to the callback
// verbatim, clamped to the declared size, unless the whole range is already
// held in the retained window.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if s.r == nil {
		return 0, ErrSourceClosed
	}
	if s.err != nil {
		return 0, s.err
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: %w", off, ErrNegativeOffset)
	}
	if len(p) == 0 {
		return 0, nil
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := p
	short := false
	if rem := s.size - off; int64(len(p)) > rem {
		want = p[:rem]
		short = true
	}

	var n int
	if s.resident(off, len(want)) {
		n = copy(want, s.win[off-s.winOff:])
	} else {
		var err error
		n, err = s.fetch(want, off)
		if err != nil {
			return n, err
		}
	}

	if short {
		return n, io.EOF
	}
	return n, nil
}

// Read reads from the cursor position. Small reads are served from the
// retained window, which is refilled with one bounded callback per miss.
func (s *Source) Read(p []byte) (int, error) {
	if s.r == nil {
		return 0, ErrSourceClosed
	}
	if s.err != nil {
		return 0, s.err
	}
	if s.pos >= s.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Large reads bypass the window.
	if len(p) >= len(s.buf) && !s.resident(s.pos, 1) {
		if rem := s.size - s.pos; int64(len(p)) > rem {
			p = p[:rem]
		}
		n, err := s.fetch(p, s.pos)
		s.pos += int64(n)
		return n, err
	}

	if !s.resident(s.pos, 1) {
		if err := s.fill(s.pos); err != nil {
			return 0, err
		}
	}
	n := copy(p, s.win[s.pos-s.winOff:])
	s.pos += int64(n)
	return n, nil
}

// Seek sets the cursor used by Read.
func (s *Source) Seek(offset int64, whence int) (int64, error) {
	if s.r == nil {
		return 0, ErrSourceClosed
	}

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = s.pos + offset
	case io.SeekEnd:
		abs = s.size + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek to %d: %w", abs, ErrNegativeOffset)
	}
	s.pos = abs
	return abs, nil
}

// Close drops the callback binding and the retained window. It is safe to
// call Close more than once.
func (s *Source) Close() error {
	if s.r == nil {
		return nil
	}
	s.r = nil
	s.buf = nil
	s.win = nil

	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

func (s *Source) resident(off int64, n int) bool {
	return len(s.win) > 0 && off >= s.winOff && off+int64(n) <= s.winOff+int64(len(s.win))
}

func (s *Source) fill(off int64) error {
	n := int64(len(s.buf))
	if rem := s.size - off; rem < n {
		n = rem
	}

	// The window is invalid while the buffer is being overwritten.
	s.win = nil
	got, err := s.fetch(s.buf[:n], off)
	if err != nil {
		return err
	}
	s.win = s.buf[:got]
	s.winOff = off
	return nil
}

// fetch reads exactly len(p) bytes at off. A short callback result is
// re-issued for the remainder.
func (s *Source) fetch(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		got := s.call(off+int64(n), p[n:])
		switch {
		case got < 0:
			s.err = fmt.Errorf("%w at offset %d", ErrReadCallback, off+int64(n))
			return n, s.err
		case got == 0:
			return n, io.ErrUnexpectedEOF
		case got > len(p)-n:
			s.err = fmt.Errorf("%w: reported %d bytes for a %d byte request", ErrReadCallback, got, len(p)-n)
			return n, s.err
		}
		n += got
	}
	return n, nil
}

func (s *Source) call(off int64, p []byte) int {
	end := off + int64(len(p))
	s.stats.Calls++
	s.stats.BytesRequested += int64(len(p))
	if s.stats.MinOffset < 0 || off < s.stats.MinOffset {
		s.stats.MinOffset = off
	}
	if end > s.stats.MaxEnd {
		s.stats.MaxEnd = end
	}
	return s.r.ReadBlock(int32(off), p)
}

func clampBlock(n int) int {
	if n < MinBlockSize {
		return MinBlockSize
	}
	if n > MaxBlockSize {
		return MaxBlockSize
	}
	return n
}
