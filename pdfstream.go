// Package pdfstream opens, inspects, saves and converts PDF documents that
// are read block by block, without loading the whole file up front.
package pdfstream

import (
	"fmt"
	"os"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/qpdfjson"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// Re-export types from pdf package for public API
type (
	Document             = pdf.Document
	Page                 = pdf.Page
	StreamDocument       = pdf.StreamDocument
	TextExtractionOption = pdf.TextExtractionOption
	BoundingBox          = pdf.BoundingBox
	Metadata             = pdf.Metadata
	Info                 = pdf.Info
	SaveFlags            = pdf.SaveFlags
	Error                = pdf.Error
	ErrorKind            = pdf.ErrorKind
)

// Re-export option functions
var (
	WithPassword      = pdf.WithPassword
	WithTextOptions   = pdf.WithTextOptions
	WithNormalization = pdf.WithNormalization
	WithTrimSpace     = pdf.WithTrimSpace
	ParseSaveFlags    = pdf.ParseSaveFlags
)

// Open opens a PDF file. The file is read through a block source and stays
// open until the document is closed.
func Open(path string, opts ...pdf.Option) (*pdf.StreamDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pdf.NewError(pdf.KindIO, "open", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, pdf.NewError(pdf.KindIO, "open", err)
	}

	src, err := streamio.NewSource(fi.Size(), streamio.ReaderAtBlocks(f), streamio.WithCloser(f))
	if err != nil {
		f.Close()
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", fmt.Errorf("%s: %w", path, err))
	}

	doc, err := pdf.Open(src, fi.Size(), opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	return doc, nil
}

// OpenWithPassword opens a password-protected PDF file
func OpenWithPassword(path, password string) (*pdf.StreamDocument, error) {
	return Open(path, pdf.WithPassword(password))
}

// OpenBytes opens an in-memory PDF through a block source.
func OpenBytes(data []byte, opts ...pdf.Option) (*pdf.StreamDocument, error) {
	if len(data) == 0 {
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", pdf.ErrEmptyInput)
	}
	src, err := streamio.NewSource(int64(len(data)), streamio.BytesBlocks(data))
	if err != nil {
		return nil, pdf.NewError(pdf.KindInvalidInput, "open", err)
	}
	return pdf.Open(src, int64(len(data)), opts...)
}

// ExtractText returns the text of every page of the file at path.
func ExtractText(path string, opts ...pdf.TextExtractionOption) (string, error) {
	doc, err := Open(path)
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return doc.Text(opts...)
}

// PDFToJSON converts the file at path to JSON of the given version and
// writes it to w in chunks.
func PDFToJSON(path string, version int, w streamio.BlockWriter) error {
	if !qpdfjson.ValidVersion(version) {
		return pdf.NewError(pdf.KindInvalidInput, "json", fmt.Errorf("%w: %d (want 1 or 2)", pdf.ErrInvalidVersion, version))
	}
	doc, err := Open(path)
	if err != nil {
		return err
	}
	defer doc.Close()

	sink, err := streamio.NewSink(w)
	if err != nil {
		return pdf.NewError(pdf.KindInvalidInput, "json", err)
	}
	if err := qpdfjson.Encode(sink, doc, version); err != nil {
		sink.Discard()
		return err
	}
	if err := sink.Close(); err != nil {
		return pdf.NewError(pdf.KindIO, "json", err)
	}
	return nil
}
