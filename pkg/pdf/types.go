package pdf

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// BoundingBox represents a rectangular area with coordinates
type BoundingBox struct {
	X0 float64 // Left
	Y0 float64 // Bottom
	X1 float64 // Right
	Y1 float64 // Top
}

// Width returns the width of the bounding box
func (b BoundingBox) Width() float64 {
	return b.X1 - b.X0
}

// Height returns the height of the bounding box
func (b BoundingBox) Height() float64 {
	return b.Y1 - b.Y0
}

// Metadata represents PDF document metadata
type Metadata struct {
	Title        string
	Author       string
	Subject      string
	Keywords     string
	Creator      string
	Producer     string
	CreationDate time.Time
	ModDate      time.Time
	Trapped      string
}

// Info holds the document facts cached after the first query.
type Info struct {
	PageCount     int
	Version       string
	Encrypted     bool
	Linearized    bool
	ObjectStreams bool
	XRefStreams   bool
	// MaxObjectID is the highest object number in the cross-reference table.
	MaxObjectID int
}

// PageBreak separates pages in whole-document text output.
const PageBreak = "\n---PAGE BREAK---\n"

// Option configures how a document is opened.
type Option func(*openConfig)

type openConfig struct {
	password string
	text     textExtractionConfig
}

// WithPassword sets the password tried as both user and owner password.
func WithPassword(password string) Option {
	return func(c *openConfig) {
		c.password = password
	}
}

// WithTextOptions sets the default options for page text extraction.
func WithTextOptions(opts ...TextExtractionOption) Option {
	return func(c *openConfig) {
		for _, opt := range opts {
			opt(&c.text)
		}
	}
}

// TextExtractionOption is a function that modifies text extraction behavior
type TextExtractionOption func(*textExtractionConfig)

type textExtractionConfig struct {
	UnicodeNorm string
	TrimSpace   bool
}

// WithNormalization applies a Unicode normalization form ("NFC", "NFD",
// "NFKC" or "NFKD") to extracted text. Any other value disables it.
func WithNormalization(form string) TextExtractionOption {
	return func(c *textExtractionConfig) {
		c.UnicodeNorm = strings.ToUpper(form)
	}
}

// WithTrimSpace trims leading and trailing whitespace from page text.
func WithTrimSpace(enabled bool) TextExtractionOption {
	return func(c *textExtractionConfig) {
		c.TrimSpace = enabled
	}
}

func (c textExtractionConfig) apply(s string) string {
	switch c.UnicodeNorm {
	case "NFC":
		s = norm.NFC.String(s)
	case "NFD":
		s = norm.NFD.String(s)
	case "NFKC":
		s = norm.NFKC.String(s)
	case "NFKD":
		s = norm.NFKD.String(s)
	}
	if c.TrimSpace {
		s = strings.TrimSpace(s)
	}
	return s
}

// ValidNormalization reports whether form names a supported normalization
// form. The empty string means no normalization.
func ValidNormalization(form string) bool {
	switch strings.ToUpper(form) {
	case "", "NFC", "NFD", "NFKC", "NFKD":
		return true
	}
	return false
}
