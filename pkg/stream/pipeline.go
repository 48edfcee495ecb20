package stream

import (
	"bytes"
	"fmt"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/qpdfjson"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

func (l *Library) docOptions(password string) []pdf.Option {
	opts := []pdf.Option{pdf.WithPassword(password)}
	if l.opts.TextNormalization != "" {
		opts = append(opts, pdf.WithTextOptions(pdf.WithNormalization(l.opts.TextNormalization)))
	}
	return opts
}

// NewSource validates fileSize and binds read to a Source. No callback is
// invoked.
func (l *Library) NewSource(fileSize int64, read streamio.BlockReader) (*streamio.Source, error) {
	switch {
	case fileSize <= 0:
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", fmt.Errorf("%w: file size %d", pdf.ErrEmptyInput, fileSize))
	case fileSize > l.opts.MaxFileSize:
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", fmt.Errorf("%w: %d bytes exceeds %d", pdf.ErrTooLarge, fileSize, l.opts.MaxFileSize))
	case read == nil:
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", streamio.ErrNilCallback)
	}

	src, err := streamio.NewSource(fileSize, read, streamio.WithWindowSize(l.opts.ReadWindow))
	if err != nil {
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", err)
	}
	return src, nil
}

// NewSink binds write to a Sink using the configured chunk size.
func (l *Library) NewSink(write streamio.BlockWriter) (*streamio.Sink, error) {
	sink, err := streamio.NewSink(write, streamio.WithChunkSize(l.opts.ChunkSize))
	if err != nil {
		return nil, pdf.NewError(pdf.KindInvalidInput, "sink", err)
	}
	return sink, nil
}

// OpenDocument loads a document through read. The returned document owns
// the Source.
func (l *Library) OpenDocument(fileSize int64, read streamio.BlockReader, password string) (*pdf.StreamDocument, error) {
	if err := l.ready("open"); err != nil {
		return nil, err
	}
	src, err := l.NewSource(fileSize, read)
	if err != nil {
		return nil, err
	}

	doc, err := pdf.Open(src, fileSize, l.docOptions(password)...)
	if err != nil {
		src.Close()
		l.logFailure("open", err)
		return nil, err
	}

	l.log.Debug().
		Int64("size", fileSize).
		Int("callback_calls", src.Stats().Calls).
		Msg("document opened")
	return doc, nil
}

// SaveDocument writes doc through write in fixed-size chunks. Chunks already
// delivered when a failure occurs are not retracted.
func (l *Library) SaveDocument(doc *pdf.StreamDocument, write streamio.BlockWriter, flags pdf.SaveFlags) error {
	if err := flags.Validate(); err != nil {
		return err
	}
	sink, err := l.NewSink(write)
	if err != nil {
		return err
	}

	if err := doc.Save(sink, flags); err != nil {
		sink.Discard()
		l.logFailure("save", err)
		return err
	}
	// The writer may swallow sink errors; Close reports them.
	if err := sink.Close(); err != nil {
		err = pdf.NewError(pdf.KindIO, "save", err)
		l.logFailure("save", err)
		return err
	}

	l.log.Debug().
		Str("flags", flags.String()).
		Int64("bytes", sink.Written()).
		Int("chunks", sink.Chunks()).
		Msg("document saved")
	return nil
}

// Convert runs the conversion pipeline: the version and size are validated
// before any callback runs, the document is loaded through read and its
// JSON form is delivered through write.
func (l *Library) Convert(fileSize int64, read streamio.BlockReader, version int, write streamio.BlockWriter) error {
	if err := l.ready("json"); err != nil {
		return err
	}
	if !qpdfjson.ValidVersion(version) {
		return pdf.NewError(pdf.KindInvalidInput, "json", fmt.Errorf("%w: %d (want 1 or 2)", pdf.ErrInvalidVersion, version))
	}
	if write == nil {
		return pdf.NewError(pdf.KindInvalidInput, "json", streamio.ErrNilCallback)
	}

	doc, err := l.OpenDocument(fileSize, read, "")
	if err != nil {
		return err
	}
	defer doc.Close()

	return l.EncodeDocument(doc, version, write)
}

// EncodeDocument delivers the JSON form of an open document through write.
func (l *Library) EncodeDocument(doc *pdf.StreamDocument, version int, write streamio.BlockWriter) error {
	if !qpdfjson.ValidVersion(version) {
		return pdf.NewError(pdf.KindInvalidInput, "json", fmt.Errorf("%w: %d (want 1 or 2)", pdf.ErrInvalidVersion, version))
	}
	sink, err := l.NewSink(write)
	if err != nil {
		return err
	}

	if err := qpdfjson.Encode(sink, doc, version); err != nil {
		sink.Discard()
		l.logFailure("json", err)
		return err
	}
	if err := sink.Close(); err != nil {
		err = pdf.NewError(pdf.KindIO, "json", err)
		l.logFailure("json", err)
		return err
	}

	l.log.Debug().
		Int("version", version).
		Int64("bytes", sink.Written()).
		Int("chunks", sink.Chunks()).
		Msg("document converted")
	return nil
}

func (l *Library) openBuffer(op string, data []byte) (*pdf.StreamDocument, error) {
	if err := l.ready(op); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, pdf.NewError(pdf.KindInvalidInput, op, pdf.ErrEmptyInput)
	}
	if int64(len(data)) > l.opts.MaxFileSize {
		return nil, pdf.NewError(pdf.KindInvalidInput, op, pdf.ErrTooLarge)
	}
	return pdf.Open(bytes.NewReader(data), int64(len(data)), l.docOptions("")...)
}

// ExtractText returns the text of every page of an in-memory document,
// pages separated by pdf.PageBreak.
func (l *Library) ExtractText(data []byte) (string, error) {
	doc, err := l.openBuffer("text", data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	text, err := doc.Text()
	if err != nil {
		l.logFailure("text", err)
		return "", err
	}
	return text, nil
}

// PDFToJSON returns the JSON form of an in-memory document.
func (l *Library) PDFToJSON(data []byte, version int) ([]byte, error) {
	if !qpdfjson.ValidVersion(version) {
		return nil, pdf.NewError(pdf.KindInvalidInput, "json", fmt.Errorf("%w: %d (want 1 or 2)", pdf.ErrInvalidVersion, version))
	}
	doc, err := l.openBuffer("json", data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var buf bytes.Buffer
	if err := qpdfjson.Encode(&buf, doc, version); err != nil {
		l.logFailure("json", err)
		return nil, err
	}
	return buf.Bytes(), nil
}

func (l *Library) logFailure(op string, err error) {
	evt := l.log.Debug()
	if pdf.IsKind(err, pdf.KindIO) {
		evt = l.log.Warn()
	}
	evt.Str("operation", op).Str("kind", string(pdf.KindOf(err))).Err(err).Msg("operation failed")
}
