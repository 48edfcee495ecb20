package pdf

import (
	"io"
)

// Document represents an open PDF document read through a streaming source
type Document interface {
	// Info returns the cached document facts
	Info() (Info, error)

	// Metadata returns the Info dictionary entries
	Metadata() (Metadata, error)

	// PageCount returns the total number of pages
	PageCount() (int, error)

	// Page returns a specific page by index (0-based)
	Page(index int) (Page, error)

	// PageText extracts the text of a page by index (0-based)
	PageText(index int, opts ...TextExtractionOption) (string, error)

	// Save writes the document to w
	Save(w io.Writer, flags SaveFlags) error

	// Close releases resources associated with the document
	Close() error
}

// Page represents a single page in a PDF document
type Page interface {
	// GetPageNumber returns the page number (1-based)
	GetPageNumber() int

	// GetWidth returns the page width in points
	GetWidth() float64

	// GetHeight returns the page height in points
	GetHeight() float64

	// GetRotation returns the page rotation in degrees
	GetRotation() int

	// GetBBox returns the page bounding box
	GetBBox() BoundingBox

	// ExtractText extracts text from the page
	ExtractText(opts ...TextExtractionOption) (string, error)
}

// TextExtractor extracts page text from a document
type TextExtractor interface {
	// Name identifies the extractor in logs and errors
	Name() string

	// PageText extracts the text of the 1-based page number
	PageText(pageNumber int) (string, error)
}
