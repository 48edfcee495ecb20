package streamio

import (
	"errors"
	"io"
)

// ReaderAtBlocks exposes an io.ReaderAt (an *os.File, a bytes.Reader) as a
// BlockReader.
func ReaderAtBlocks(r io.ReaderAt) BlockReader {
	return ReadBlockFunc(func(position int32, buf []byte) int {
		n, err := r.ReadAt(buf, int64(position))
		if err != nil && !errors.Is(err, io.EOF) {
			return -1
		}
		return n
	})
}

// BytesBlocks exposes an in-memory buffer as a BlockReader.
func BytesBlocks(data []byte) BlockReader {
	return ReadBlockFunc(func(position int32, buf []byte) int {
		if position < 0 || int(position) > len(data) {
			return -1
		}
		return copy(buf, data[position:])
	})
}

// WriterBlocks exposes an io.Writer as a BlockWriter.
func WriterBlocks(w io.Writer) BlockWriter {
	return WriteBlockFunc(func(data []byte) int {
		if _, err := w.Write(data); err != nil {
			return 0
		}
		return 1
	})
}
