package pdf

import (
	"fmt"
	"io"

	lpdf "github.com/ledongthuc/pdf"
)

// LedongthucExtractor implements TextExtractor using ledongthuc/pdf
type LedongthucExtractor struct {
	reader *lpdf.Reader
}

// NewLedongthucExtractor opens a reader over src. The password is offered
// once if the document is encrypted.
func NewLedongthucExtractor(src io.ReaderAt, size int64, password string) (_ *LedongthucExtractor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ledongthuc reader panic: %v", r)
		}
	}()

	r, err := lpdf.NewReaderEncrypted(src, size, oncePassword(password))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with ledongthuc: %w", err)
	}
	return &LedongthucExtractor{reader: r}, nil
}

// Name identifies the extractor
func (e *LedongthucExtractor) Name() string {
	return "ledongthuc"
}

// PageText extracts the plain text of the 1-based page number
func (e *LedongthucExtractor) PageText(pageNumber int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ledongthuc page %d panic: %v", pageNumber, r)
		}
	}()

	if pageNumber < 1 || pageNumber > e.reader.NumPage() {
		return "", fmt.Errorf("invalid page number: %d", pageNumber)
	}

	page := e.reader.Page(pageNumber)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", pageNumber)
	}

	// ledongthuc/pdf already handles spacing properly
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract page %d text: %w", pageNumber, err)
	}
	return text, nil
}

// oncePassword returns a password callback that offers password a single
// time. Both readers loop on the callback until it returns "".
func oncePassword(password string) func() string {
	used := password == ""
	return func() string {
		if used {
			return ""
		}
		used = true
		return password
	}
}
