package pdf

import (
	"errors"
	"fmt"

	"github.com/pyhub-apps/pdfstream-golang/pkg/streamio"
)

// ErrorKind classifies failures reported by the document layer.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindLoad         ErrorKind = "load"
	KindIO           ErrorKind = "io"
	KindResource     ErrorKind = "resource"
	KindUnsupported  ErrorKind = "unsupported"
	KindClosed       ErrorKind = "closed"
	KindInit         ErrorKind = "init"
	KindExtraction   ErrorKind = "extraction"
	KindConversion   ErrorKind = "conversion"
)

var (
	ErrClosed         = errors.New("document is closed")
	ErrEmptyInput     = errors.New("empty input")
	ErrTooLarge       = errors.New("input too large")
	ErrInvalidVersion = errors.New("invalid JSON version")
	ErrInvalidFlags   = errors.New("invalid save flags")
	ErrPageRange      = errors.New("page index out of range")
	ErrNotInitialized = errors.New("library not initialized")
	ErrLinearize      = errors.New("linearized output is not supported")
)

// Error is a classified failure with the operation that produced it.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error. A nil err is replaced by a generic message.
func NewError(kind ErrorKind, op string, err error) *Error {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// classify picks a kind for an error raised while reading a document. Callback
// failures surface as I/O errors even when a parser wrapped them.
func classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, streamio.ErrReadCallback), errors.Is(err, streamio.ErrWriteCallback):
		return NewError(KindIO, op, err)
	case errors.Is(err, streamio.ErrSourceClosed), errors.Is(err, ErrClosed):
		return NewError(KindClosed, op, err)
	default:
		return NewError(KindLoad, op, err)
	}
}
