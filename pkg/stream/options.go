package stream

import (
	"github.com/rs/zerolog"

	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// Options tunes a Library. Zero fields take their defaults.
type Options struct {
	// ChunkSize is the size of the chunks delivered to write callbacks.
	ChunkSize int
	// ReadWindow is the retained window used for sequential source reads.
	ReadWindow int
	// MaxFileSize caps the declared size of streamed documents.
	MaxFileSize int64
	// TextNormalization is a Unicode normalization form applied to page
	// text ("NFC", "NFKC", ...). Empty disables it.
	TextNormalization string
	// Logger receives debug and warning events. Nil disables logging.
	Logger *zerolog.Logger
}

// DefaultOptions returns the options used by the default library.
func DefaultOptions() Options {
	return Options{
		ChunkSize:   streamio.DefaultChunkSize,
		ReadWindow:  streamio.DefaultWindowSize,
		MaxFileSize: streamio.MaxSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChunkSize <= 0 {
		o.ChunkSize = d.ChunkSize
	}
	if o.ReadWindow <= 0 {
		o.ReadWindow = d.ReadWindow
	}
	if o.MaxFileSize <= 0 || o.MaxFileSize > streamio.MaxSize {
		o.MaxFileSize = d.MaxFileSize
	}
	return o
}
