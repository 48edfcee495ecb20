package pdf

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ReadSeekerAt is the source shape consumed by every parser in this package.
// *streamio.Source, *bytes.Reader and *os.File all satisfy it.
type ReadSeekerAt interface {
	io.ReaderAt
	io.ReadSeeker
}

var initOnce sync.Once

// Init prepares the underlying PDF library for in-memory use. It is called
// by Open and is safe to call more than once.
func Init() {
	initOnce.Do(api.DisableConfigDir)
}

// StreamDocument implements the Document interface over a streaming source
// using pdfcpu for the object model.
//
// A StreamDocument is not safe for concurrent use.
type StreamDocument struct {
	src  ReadSeekerAt
	size int64
	ctx  *model.Context
	text textExtractionConfig

	info       *Info
	metadata   *Metadata
	extractors []TextExtractor
	closed     bool
}

// Open loads a document of the given size from src. The password, if any,
// is tried as both user and owner password.
func Open(src ReadSeekerAt, size int64, opts ...Option) (*StreamDocument, error) {
	if src == nil || size <= 0 {
		return nil, NewError(KindInvalidInput, "open", ErrEmptyInput)
	}

	cfg := openConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, err := readContext(src, newConfiguration(cfg.password))
	if err != nil {
		return nil, loadError("open", src, err)
	}

	return &StreamDocument{
		src:  src,
		size: size,
		ctx:  ctx,
		text: cfg.text,
	}, nil
}

func newConfiguration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

// readContext parses and validates a document. Parser panics are reported
// as errors.
func readContext(src ReadSeekerAt, conf *model.Configuration) (ctx *model.Context, err error) {
	Init()

	defer func() {
		if r := recover(); r != nil {
			ctx = nil
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind source: %w", err)
	}

	// Parse PDF with pdfcpu
	ctx, err = api.ReadContext(src, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}

	// Validate the PDF
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}

	return ctx, nil
}

// loadError classifies err, preferring the source's own callback failure
// when the parser swallowed it.
func loadError(op string, src any, err error) *Error {
	if serr := sourceErr(src); serr != nil && !errors.Is(err, serr) {
		return NewError(KindIO, op, fmt.Errorf("%w (%v)", serr, err))
	}
	return classify(op, err)
}

func (d *StreamDocument) check(op string) error {
	if d == nil || d.closed {
		return NewError(KindClosed, op, ErrClosed)
	}
	return nil
}

// Info returns the document facts, computed on first use.
func (d *StreamDocument) Info() (Info, error) {
	if err := d.check("info"); err != nil {
		return Info{}, err
	}
	if d.info == nil {
		d.info = d.loadInfo()
	}
	return *d.info, nil
}

func (d *StreamDocument) loadInfo() *Info {
	ctx := d.ctx
	info := &Info{
		PageCount: ctx.PageCount,
		Version:   ctx.VersionString(),
		Encrypted: ctx.Encrypt != nil,
	}
	if ctx.Read != nil {
		info.Linearized = ctx.Read.Linearized
		info.ObjectStreams = ctx.Read.UsingObjectStreams
		info.XRefStreams = ctx.Read.UsingXRefStreams
	}
	for nr := range ctx.Table {
		if nr > info.MaxObjectID {
			info.MaxObjectID = nr
		}
	}
	return info
}

// PageCount returns the total number of pages
func (d *StreamDocument) PageCount() (int, error) {
	info, err := d.Info()
	if err != nil {
		return 0, err
	}
	return info.PageCount, nil
}

// Version returns the header version, e.g. "1.7".
func (d *StreamDocument) Version() (string, error) {
	info, err := d.Info()
	if err != nil {
		return "", err
	}
	return info.Version, nil
}

// IsEncrypted reports whether the source carries an Encrypt dictionary.
func (d *StreamDocument) IsEncrypted() (bool, error) {
	info, err := d.Info()
	return info.Encrypted, err
}

// IsLinearized reports whether the source is linearized.
func (d *StreamDocument) IsLinearized() (bool, error) {
	info, err := d.Info()
	return info.Linearized, err
}

// Size returns the size of the source in bytes.
func (d *StreamDocument) Size() int64 {
	return d.size
}

// Model exposes the parsed object graph. It must not be modified.
func (d *StreamDocument) Model() (*model.Context, error) {
	if err := d.check("model"); err != nil {
		return nil, err
	}
	return d.ctx, nil
}

// Metadata returns the Info dictionary entries
func (d *StreamDocument) Metadata() (Metadata, error) {
	if err := d.check("metadata"); err != nil {
		return Metadata{}, err
	}
	if d.metadata == nil {
		m, err := d.extractMetadata()
		if err != nil {
			return Metadata{}, NewError(KindLoad, "metadata", err)
		}
		d.metadata = &m
	}
	return *d.metadata, nil
}

// extractMetadata resolves the Info dictionary referenced from the trailer
func (d *StreamDocument) extractMetadata() (Metadata, error) {
	if d.ctx.Info == nil {
		return Metadata{}, nil
	}

	dict, err := d.ctx.DereferenceDict(*d.ctx.Info)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to resolve info dict: %w", err)
	}

	m := Metadata{
		Title:        getStringFromDict(dict, "Title"),
		Author:       getStringFromDict(dict, "Author"),
		Subject:      getStringFromDict(dict, "Subject"),
		Keywords:     getStringFromDict(dict, "Keywords"),
		Creator:      getStringFromDict(dict, "Creator"),
		Producer:     getStringFromDict(dict, "Producer"),
		CreationDate: parsePDFDate(getStringFromDict(dict, "CreationDate")),
		ModDate:      parsePDFDate(getStringFromDict(dict, "ModDate")),
		Trapped:      getStringFromDict(dict, "Trapped"),
	}
	return m, nil
}

// Page returns a specific page by index (0-based)
func (d *StreamDocument) Page(index int) (Page, error) {
	p, err := d.pdfcpuPage(index)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (d *StreamDocument) pdfcpuPage(index int) (*PDFCPUPage, error) {
	if err := d.check("page"); err != nil {
		return nil, err
	}
	if index < 0 || index >= d.ctx.PageCount {
		return nil, NewError(KindInvalidInput, "page",
			fmt.Errorf("%w: %d not in [0, %d)", ErrPageRange, index, d.ctx.PageCount))
	}
	page, err := NewPDFCPUPage(d, index+1)
	if err != nil {
		return nil, NewError(KindLoad, "page", err)
	}
	return page, nil
}

// PageSize returns the width and height of a page in points.
func (d *StreamDocument) PageSize(index int) (float64, float64, error) {
	page, err := d.pdfcpuPage(index)
	if err != nil {
		return 0, 0, err
	}
	return page.GetWidth(), page.GetHeight(), nil
}

// Text extracts the text of every page, separated by PageBreak.
func (d *StreamDocument) Text(opts ...TextExtractionOption) (string, error) {
	n, err := d.PageCount()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(PageBreak)
		}
		text, err := d.PageText(i, opts...)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// Close releases the source binding and the object graph. It is safe to call
// Close more than once.
func (d *StreamDocument) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true
	d.ctx = nil
	d.info = nil
	d.metadata = nil
	d.extractors = nil

	src := d.src
	d.src = nil
	if c, ok := src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close source: %w", err)
		}
	}
	return nil
}

// Helper functions

func getStringFromDict(dict types.Dict, key string) string {
	if dict == nil {
		return ""
	}

	obj := dict[key]
	if obj == nil {
		return ""
	}

	switch v := obj.(type) {
	case types.StringLiteral:
		if s, err := types.StringLiteralToString(v); err == nil {
			return s
		}
		return string(v)
	case types.HexLiteral:
		if s, err := types.HexLiteralToString(v); err == nil {
			return s
		}
		return string(v)
	case types.Name:
		return string(v)
	default:
		return ""
	}
}

func parsePDFDate(dateStr string) time.Time {
	// PDF date format: D:YYYYMMDDHHmmSSOHH'mm
	dateStr = strings.TrimPrefix(dateStr, "D:")

	layouts := []struct {
		n      int
		layout string
	}{
		{14, "20060102150405"},
		{12, "200601021504"},
		{8, "20060102"},
		{4, "2006"},
	}
	for _, l := range layouts {
		if len(dateStr) < l.n {
			continue
		}
		if t, err := time.Parse(l.layout, dateStr[:l.n]); err == nil {
			return t
		}
	}

	return time.Time{}
}
