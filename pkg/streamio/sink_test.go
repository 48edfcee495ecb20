package streamio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkRecorder records delivered chunks and fails the call whose 1-based
// index equals failOn.
type chunkRecorder struct {
	chunks [][]byte
	calls  int
	failOn int
}

func (c *chunkRecorder) WriteBlock(data []byte) int {
	c.calls++
	if c.calls == c.failOn {
		return 0
	}
	c.chunks = append(c.chunks, bytes.Clone(data))
	return 1
}

func (c *chunkRecorder) joined() []byte {
	return bytes.Join(c.chunks, nil)
}

func TestSinkDeliversFixedChunks(t *testing.T) {
	rec := &chunkRecorder{}
	sink, err := NewSink(rec, WithChunkSize(MinBlockSize))
	require.NoError(t, err)

	data := patterned(3*MinBlockSize + 100)
	// Uneven writes to cross chunk boundaries mid-slice.
	for off := 0; off < len(data); off += 333 {
		end := min(off+333, len(data))
		n, err := sink.Write(data[off:end])
		require.NoError(t, err)
		assert.Equal(t, end-off, n)
	}
	assert.Equal(t, 3, rec.calls, "full chunks only until flush")

	require.NoError(t, sink.Close())
	require.Len(t, rec.chunks, 4)
	for _, c := range rec.chunks[:3] {
		assert.Len(t, c, MinBlockSize)
	}
	assert.Len(t, rec.chunks[3], 100)
	assert.Equal(t, data, rec.joined())
	assert.Equal(t, int64(len(data)), sink.Written())
	assert.Equal(t, 4, sink.Chunks())
}

func TestSinkPoisonedAfterFailure(t *testing.T) {
	rec := &chunkRecorder{failOn: 3}
	sink, err := NewSink(rec, WithChunkSize(MinBlockSize))
	require.NoError(t, err)

	data := patterned(10 * MinBlockSize)
	_, err = sink.Write(data)
	require.ErrorIs(t, err, ErrWriteCallback)

	assert.Len(t, rec.chunks, 2, "exactly two chunks delivered")
	assert.Equal(t, 3, rec.calls)

	_, err = sink.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrWriteCallback)
	assert.ErrorIs(t, sink.Flush(), ErrWriteCallback)
	assert.ErrorIs(t, sink.Close(), ErrWriteCallback)
	assert.Equal(t, 3, rec.calls, "callback not invoked after failure")
	assert.Equal(t, int64(2*MinBlockSize), sink.Written())
}

func TestSinkFlushEmptyIsNoop(t *testing.T) {
	rec := &chunkRecorder{}
	sink, err := NewSink(rec)
	require.NoError(t, err)

	require.NoError(t, sink.Flush())
	require.NoError(t, sink.Close())
	assert.Zero(t, rec.calls)
	assert.ErrorIs(t, sink.Close(), ErrSinkClosed)
}

func TestSinkDiscardDropsStagedBytes(t *testing.T) {
	rec := &chunkRecorder{}
	sink, err := NewSink(rec)
	require.NoError(t, err)

	_, err = sink.Write([]byte("staged"))
	require.NoError(t, err)
	sink.Discard()
	sink.Discard()

	assert.Zero(t, rec.calls)
	_, err = sink.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrSinkClosed)
	assert.NoError(t, sink.Err())
}

func TestWriterBlocks(t *testing.T) {
	var buf bytes.Buffer
	sink, err := NewSink(WriterBlocks(&buf), WithChunkSize(1))
	require.NoError(t, err)

	_, err = sink.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.Equal(t, "hello", buf.String())
}
