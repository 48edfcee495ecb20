package stream

import (
	"bytes"
	"fmt"
	"math"

	"github.com/pyhub-apps/pdfstream-golang/pkg/pdf"
	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// Session is the per-caller error context. Every entry point records its
// failure message in the session and clears it on success, so the message
// stays valid until the next call on the same session. Sessions on
// different goroutines never observe each other's errors.
//
// A Session must not be used from more than one goroutine at a time.
type Session struct {
	lib     *Library
	lastErr string
	hasErr  bool
}

// LastError returns the message of the most recent failure, if the most
// recent call failed.
func (s *Session) LastError() (string, bool) {
	return s.lastErr, s.hasErr
}

// Library returns the Library the session is bound to.
func (s *Session) Library() *Library {
	return s.lib
}

func (s *Session) fail(err error) {
	s.lastErr = err.Error()
	s.hasErr = true
}

func (s *Session) succeed() {
	s.lastErr = ""
	s.hasErr = false
}

func (s *Session) document(op string, h Handle) (*pdf.StreamDocument, error) {
	if err := s.lib.ready(op); err != nil {
		return nil, err
	}
	if h == NullHandle {
		return nil, pdf.NewError(pdf.KindInvalidInput, op, fmt.Errorf("null handle"))
	}
	doc, ok := s.lib.handles.get(h)
	if !ok {
		return nil, pdf.NewError(pdf.KindInvalidInput, op, fmt.Errorf("unknown or closed handle %#x", uint64(h)))
	}
	return doc, nil
}

// Open loads a document of fileSize bytes through read and returns its
// handle, or NullHandle on failure. An empty password opens unencrypted
// documents and documents with an empty user password.
func (s *Session) Open(fileSize int64, read streamio.BlockReader, password string) Handle {
	doc, err := s.lib.OpenDocument(fileSize, read, password)
	if err != nil {
		s.fail(err)
		return NullHandle
	}
	h := s.lib.handles.insert(doc)
	s.succeed()
	return h
}

// Close releases a document. Closing NullHandle or an already closed handle
// does nothing.
func (s *Session) Close(h Handle) {
	doc, ok := s.lib.handles.remove(h)
	if !ok {
		return
	}
	if err := doc.Close(); err != nil {
		s.lib.log.Warn().Err(err).Msg("close failed")
	}
	s.lib.log.Debug().Msg("document closed")
}

// PageCount returns the number of pages, or 0 on failure.
func (s *Session) PageCount(h Handle) int {
	doc, err := s.document("page count", h)
	if err != nil {
		s.fail(err)
		return 0
	}
	n, err := doc.PageCount()
	if err != nil {
		s.fail(err)
		return 0
	}
	s.succeed()
	return n
}

// PDFVersion returns the header version as a string allocation, or
// NullAlloc on failure.
func (s *Session) PDFVersion(h Handle) Alloc {
	doc, err := s.document("version", h)
	if err != nil {
		s.fail(err)
		return NullAlloc
	}
	v, err := doc.Version()
	if err != nil {
		s.fail(err)
		return NullAlloc
	}
	s.succeed()
	return s.lib.allocs.put(KindString, "version", []byte(v))
}

// IsEncrypted returns 1 if the document is encrypted, 0 if not and -1 on
// failure.
func (s *Session) IsEncrypted(h Handle) int {
	return s.flag("encrypted", h, (*pdf.StreamDocument).IsEncrypted)
}

// IsLinearized returns 1 if the document is linearized, 0 if not and -1 on
// failure.
func (s *Session) IsLinearized(h Handle) int {
	return s.flag("linearized", h, (*pdf.StreamDocument).IsLinearized)
}

func (s *Session) flag(op string, h Handle, query func(*pdf.StreamDocument) (bool, error)) int {
	doc, err := s.document(op, h)
	if err != nil {
		s.fail(err)
		return -1
	}
	v, err := query(doc)
	if err != nil {
		s.fail(err)
		return -1
	}
	s.succeed()
	if v {
		return 1
	}
	return 0
}

// Save writes the document through write using the given flag bits. It
// returns 1 on success and 0 on failure. The handle stays open.
func (s *Session) Save(h Handle, write streamio.BlockWriter, flags int) int {
	doc, err := s.document("save", h)
	if err != nil {
		s.fail(err)
		return 0
	}
	if flags < 0 || uint64(flags) > math.MaxUint32 {
		s.fail(pdf.NewError(pdf.KindInvalidInput, "save", fmt.Errorf("%w: %d", pdf.ErrInvalidFlags, flags)))
		return 0
	}
	if err := s.lib.SaveDocument(doc, write, pdf.SaveFlags(flags)); err != nil {
		s.fail(err)
		return 0
	}
	s.succeed()
	return 1
}

// ToJSON converts a streamed document to JSON of the given version (1 or
// 2), delivering output through write. It returns 1 on success and 0 on
// failure; chunks delivered before a failure are not retracted.
func (s *Session) ToJSON(fileSize int64, read streamio.BlockReader, version int, write streamio.BlockWriter) int {
	if err := s.lib.Convert(fileSize, read, version, write); err != nil {
		s.fail(err)
		return 0
	}
	s.succeed()
	return 1
}

// PageText returns the text of a page (0-based) as a string allocation, or
// NullAlloc on failure.
func (s *Session) PageText(h Handle, index int) Alloc {
	doc, err := s.document("page text", h)
	if err != nil {
		s.fail(err)
		return NullAlloc
	}
	text, err := doc.PageText(index)
	if err != nil {
		s.fail(err)
		return NullAlloc
	}
	s.succeed()
	return s.lib.allocs.put(KindString, "page text", []byte(text))
}

// PageSize returns the width and height of a page (0-based) in points. ok is
// 1 on success and 0 on failure.
func (s *Session) PageSize(h Handle, index int) (width, height float64, ok int) {
	doc, err := s.document("page size", h)
	if err != nil {
		s.fail(err)
		return 0, 0, 0
	}
	width, height, err = doc.PageSize(index)
	if err != nil {
		s.fail(err)
		return 0, 0, 0
	}
	s.succeed()
	return width, height, 1
}

// ExtractText returns the text of an in-memory document as a string
// allocation, or NullAlloc on failure.
func (s *Session) ExtractText(data []byte) Alloc {
	text, err := s.lib.ExtractText(data)
	if err != nil {
		s.fail(err)
		return NullAlloc
	}
	s.succeed()
	return s.lib.allocs.put(KindString, "extract text", []byte(text))
}

// PDFToJSON returns the JSON form of an in-memory document as a string
// allocation, or NullAlloc on failure.
func (s *Session) PDFToJSON(data []byte, version int) Alloc {
	out, err := s.lib.PDFToJSON(data, version)
	if err != nil {
		s.fail(err)
		return NullAlloc
	}
	s.succeed()
	return s.lib.allocs.put(KindString, "pdf to json", out)
}

// SaveBuffer saves the document into a buffer allocation, or returns
// NullAlloc on failure.
func (s *Session) SaveBuffer(h Handle, flags int) Alloc {
	var buf bytes.Buffer
	if s.Save(h, streamio.WriterBlocks(&buf), flags) == 0 {
		return NullAlloc
	}
	return s.lib.allocs.put(KindBuffer, "save buffer", buf.Bytes())
}

// String returns the contents of an allocation, or "" for an unknown one.
func (s *Session) String(a Alloc) string {
	e, ok := s.lib.allocs.get(a)
	if !ok {
		return ""
	}
	return string(e.data)
}

// Bytes returns the contents of an allocation. The slice is owned by the
// library and is only valid until the allocation is freed.
func (s *Session) Bytes(a Alloc) []byte {
	e, ok := s.lib.allocs.get(a)
	if !ok {
		return nil
	}
	return e.data
}

// FreeString releases a string allocation. It returns 1 on success and 0
// when a is unknown or is not a string allocation. Freeing NullAlloc
// succeeds.
func (s *Session) FreeString(a Alloc) int {
	return s.free(a, KindString)
}

// FreeBuffer releases a buffer allocation. It returns 1 on success and 0
// when a is unknown or is not a buffer allocation. Freeing NullAlloc
// succeeds.
func (s *Session) FreeBuffer(a Alloc) int {
	return s.free(a, KindBuffer)
}

func (s *Session) free(a Alloc, kind AllocKind) int {
	if err := s.lib.allocs.free(a, kind); err != nil {
		s.fail(pdf.NewError(pdf.KindInvalidInput, "free "+kind.String(), err))
		return 0
	}
	s.succeed()
	return 1
}
