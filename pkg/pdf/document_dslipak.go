package pdf

import (
	"fmt"
	"io"
	"strings"

	gopdf "github.com/dslipak/pdf"
)

// DslipakExtractor implements TextExtractor using dslipak/pdf
type DslipakExtractor struct {
	reader *gopdf.Reader
}

// NewDslipakExtractor opens a reader over src.
func NewDslipakExtractor(src io.ReaderAt, size int64, password string) (_ *DslipakExtractor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dslipak reader panic: %v", r)
		}
	}()

	r, err := gopdf.NewReaderEncrypted(src, size, oncePassword(password))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF with dslipak: %w", err)
	}
	return &DslipakExtractor{reader: r}, nil
}

// Name identifies the extractor
func (e *DslipakExtractor) Name() string {
	return "dslipak"
}

// PageText extracts text of the 1-based page number from positioned runs
func (e *DslipakExtractor) PageText(pageNumber int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dslipak page %d panic: %v", pageNumber, r)
		}
	}()

	if pageNumber < 1 || pageNumber > e.reader.NumPage() {
		return "", fmt.Errorf("invalid page number: %d", pageNumber)
	}

	page := e.reader.Page(pageNumber)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", pageNumber)
	}

	// Simple text extraction from content
	content := page.Content()

	var sb strings.Builder
	for i, item := range content.Text {
		// Runs on a new baseline start a new line.
		if i > 0 && item.Y != content.Text[i-1].Y {
			sb.WriteByte('\n')
		}
		sb.WriteString(item.S)
	}
	return sb.String(), nil
}
