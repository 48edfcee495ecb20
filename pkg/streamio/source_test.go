package streamio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readCall struct {
	pos int32
	n   int
}

// recordingReader serves data and records every callback invocation.
type recordingReader struct {
	data  []byte
	calls []readCall
	// maxChunk limits how many bytes a single call returns; 0 means no limit.
	maxChunk int
	// failAt makes every call from this index (0-based) on return -1; -1 disables.
	failAt int
}

func newRecordingReader(data []byte) *recordingReader {
	return &recordingReader{data: data, failAt: -1}
}

func (r *recordingReader) ReadBlock(position int32, buf []byte) int {
	r.calls = append(r.calls, readCall{pos: position, n: len(buf)})
	if r.failAt >= 0 && len(r.calls)-1 >= r.failAt {
		return -1
	}
	if int(position) >= len(r.data) {
		return 0
	}
	want := buf
	if r.maxChunk > 0 && len(want) > r.maxChunk {
		want = want[:r.maxChunk]
	}
	return copy(want, r.data[position:])
}

func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestNewSourceRejectsInvalidSize(t *testing.T) {
	tests := []struct {
		name string
		size int64
	}{
		{"zero", 0},
		{"negative", -5},
		{"too large", MaxSize + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecordingReader(nil)
			src, err := NewSource(tt.size, r)
			require.ErrorIs(t, err, ErrInvalidSize)
			assert.Nil(t, src)
			assert.Empty(t, r.calls, "callback must not be invoked")
		})
	}
}

func TestNewSourceRejectsNilCallback(t *testing.T) {
	_, err := NewSource(10, nil)
	assert.ErrorIs(t, err, ErrNilCallback)
}

func TestReadAtForwardsVerbatim(t *testing.T) {
	data := patterned(10000)
	r := newRecordingReader(data)
	src, err := NewSource(int64(len(data)), r)
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, err := src.ReadAt(buf, 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[5000:5100], buf)
	assert.Equal(t, []readCall{{pos: 5000, n: 100}}, r.calls)
}

func TestReadAtClampsToSize(t *testing.T) {
	data := patterned(1000)
	r := newRecordingReader(data)
	src, err := NewSource(int64(len(data)), r)
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, err := src.ReadAt(buf, 950)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 50, n)
	assert.Equal(t, data[950:], buf[:n])
	require.Len(t, r.calls, 1)
	assert.Equal(t, readCall{pos: 950, n: 50}, r.calls[0])

	n, err = src.ReadAt(buf, 1000)
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, n)
	assert.Len(t, r.calls, 1, "reads at or past size must not reach the callback")

	_, err = src.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrNegativeOffset)
	assert.Len(t, r.calls, 1)
}

func TestShortReadsAreReissued(t *testing.T) {
	data := patterned(3000)
	r := newRecordingReader(data)
	r.maxChunk = 700
	src, err := NewSource(int64(len(data)), r)
	require.NoError(t, err)

	buf := make([]byte, 2000)
	n, err := src.ReadAt(buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 2000, n)
	assert.Equal(t, data[100:2100], buf)

	assert.Equal(t, []readCall{
		{pos: 100, n: 2000},
		{pos: 800, n: 1300},
		{pos: 1500, n: 600},
	}, r.calls)
}

func TestZeroBeforeEndIsUnexpectedEOF(t *testing.T) {
	// Declared size exceeds what the callback can deliver.
	r := newRecordingReader(patterned(100))
	src, err := NewSource(200, r)
	require.NoError(t, err)

	buf := make([]byte, 150)
	n, err := src.ReadAt(buf, 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 100, n)
}

func TestReadCallbackFailure(t *testing.T) {
	r := newRecordingReader(patterned(100))
	r.failAt = 0
	src, err := NewSource(100, r)
	require.NoError(t, err)

	_, err = src.ReadAt(make([]byte, 10), 0)
	assert.ErrorIs(t, err, ErrReadCallback)
	assert.Len(t, r.calls, 1, "failures are not retried")

	_, err = src.Read(make([]byte, 10))
	assert.ErrorIs(t, err, ErrReadCallback)
	_, err = src.ReadAt(make([]byte, 10), 50)
	assert.ErrorIs(t, err, ErrReadCallback)
	assert.Len(t, r.calls, 1, "a failed source never calls back again")
	assert.ErrorIs(t, src.Err(), ErrReadCallback)
}

func TestOverreportedLengthIsFailure(t *testing.T) {
	liar := ReadBlockFunc(func(position int32, buf []byte) int { return len(buf) + 1 })
	src, err := NewSource(100, liar)
	require.NoError(t, err)

	_, err = src.ReadAt(make([]byte, 10), 0)
	assert.ErrorIs(t, err, ErrReadCallback)
}

func TestSequentialReadUsesBoundedWindow(t *testing.T) {
	data := patterned(20000)
	r := newRecordingReader(data)
	src, err := NewSource(int64(len(data)), r, WithWindowSize(MinBlockSize))
	require.NoError(t, err)

	var out bytes.Buffer
	buf := make([]byte, 100)
	for {
		n, err := src.Read(buf)
		out.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, data, out.Bytes())
	for _, c := range r.calls {
		assert.LessOrEqual(t, c.n, MinBlockSize)
	}
	assert.Len(t, r.calls, (len(data)+MinBlockSize-1)/MinBlockSize)
}

func TestReadAtServedFromResidentWindow(t *testing.T) {
	data := patterned(5000)
	r := newRecordingReader(data)
	src, err := NewSource(int64(len(data)), r)
	require.NoError(t, err)

	_, err = src.Read(make([]byte, 10))
	require.NoError(t, err)
	require.Len(t, r.calls, 1)

	buf := make([]byte, 20)
	_, err = src.ReadAt(buf, 30)
	require.NoError(t, err)
	assert.Equal(t, data[30:50], buf)
	assert.Len(t, r.calls, 1)
}

func TestSeekAndRandomAccess(t *testing.T) {
	data := patterned(10000)
	src, err := NewSource(int64(len(data)), newRecordingReader(data))
	require.NoError(t, err)

	end, err := src.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), end)

	_, err = src.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	pos, err := src.Seek(-100, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(9900), pos)

	buf := make([]byte, 100)
	_, err = io.ReadFull(src, buf)
	require.NoError(t, err)
	assert.Equal(t, data[9900:], buf)

	_, err = src.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrNegativeOffset)

	// Jump backwards after reading the tail.
	_, err = src.Seek(10, io.SeekStart)
	require.NoError(t, err)
	_, err = io.ReadFull(src, buf)
	require.NoError(t, err)
	assert.Equal(t, data[10:110], buf)
}

func TestStatsTrackOffsets(t *testing.T) {
	data := patterned(8000)
	src, err := NewSource(int64(len(data)), newRecordingReader(data))
	require.NoError(t, err)

	assert.Equal(t, Stats{MinOffset: -1, MaxEnd: -1}, src.Stats())

	_, err = src.ReadAt(make([]byte, 100), 7000)
	require.NoError(t, err)
	_, err = src.ReadAt(make([]byte, 10), 200)
	require.NoError(t, err)

	st := src.Stats()
	assert.Equal(t, 2, st.Calls)
	assert.Equal(t, int64(110), st.BytesRequested)
	assert.Equal(t, int64(200), st.MinOffset)
	assert.Equal(t, int64(7100), st.MaxEnd)
}

type closeCounter struct{ n int }

func (c *closeCounter) Close() error { c.n++; return nil }

func TestCloseIsIdempotent(t *testing.T) {
	c := &closeCounter{}
	src, err := NewSource(10, BytesBlocks(patterned(10)), WithCloser(c))
	require.NoError(t, err)

	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
	assert.Equal(t, 1, c.n)

	_, err = src.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrSourceClosed)
}

func TestReaderAtBlocks(t *testing.T) {
	data := patterned(64)
	blocks := ReaderAtBlocks(bytes.NewReader(data))

	buf := make([]byte, 32)
	assert.Equal(t, 32, blocks.ReadBlock(16, buf))
	assert.Equal(t, data[16:48], buf)
	assert.Equal(t, 14, blocks.ReadBlock(50, buf))
}
