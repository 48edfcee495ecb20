// Package testpdf builds small, well-formed PDF files for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Builder assembles a PDF with one Helvetica text line per page.
type Builder struct {
	version string
	title   string
	author  string
	width   float64
	height  float64
	rotate  int
	pages   []string
}

// New returns a Builder for a PDF 1.4 document with US Letter pages.
func New() *Builder {
	return &Builder{version: "1.4", width: 612, height: 792}
}

// Version sets the header version, e.g. "1.7".
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Title sets the Info dictionary title.
func (b *Builder) Title(t string) *Builder {
	b.title = t
	return b
}

// Author sets the Info dictionary author.
func (b *Builder) Author(a string) *Builder {
	b.author = a
	return b
}

// MediaBox sets the inherited page size in points.
func (b *Builder) MediaBox(width, height float64) *Builder {
	b.width, b.height = width, height
	return b
}

// Rotate sets the inherited page rotation.
func (b *Builder) Rotate(deg int) *Builder {
	b.rotate = deg
	return b
}

// Page appends a page showing text.
func (b *Builder) Page(text string) *Builder {
	b.pages = append(b.pages, text)
	return b
}

// Bytes renders the document with a classic cross-reference table.
func (b *Builder) Bytes() []byte {
	pages := b.pages
	if len(pages) == 0 {
		pages = []string{""}
	}

	// 1 catalog, 2 page tree, 3 font, 4 info, then page/content pairs.
	var objs []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 5+2*i)
	}

	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 %s %s] /Rotate %d >>",
			strings.Join(kids, " "), len(pages), num(b.width), num(b.height), b.rotate),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		b.info(),
	)
	for i, text := range pages {
		content := fmt.Sprintf("BT /F1 24 Tf 72 720 Td (%s) Tj ET", escape(text))
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 6+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", b.version)

	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 4 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	return buf.Bytes()
}

func (b *Builder) info() string {
	var sb strings.Builder
	sb.WriteString("<< /Producer (testpdf)")
	if b.title != "" {
		fmt.Fprintf(&sb, " /Title (%s)", escape(b.title))
	}
	if b.author != "" {
		fmt.Fprintf(&sb, " /Author (%s)", escape(b.author))
	}
	sb.WriteString(" /CreationDate (D:20240102030405Z) >>")
	return sb.String()
}

// Simple returns a PDF 1.4 document with one page per text.
func Simple(texts ...string) []byte {
	b := New()
	for _, t := range texts {
		b.Page(t)
	}
	return b.Bytes()
}

// HelloWorld returns a single-page document showing "Hello World!".
func HelloWorld() []byte {
	return Simple("Hello World!")
}

var disableConfig sync.Once

// Encrypt returns data encrypted with AES-128 using the given passwords.
func Encrypt(data []byte, userPW, ownerPW string) ([]byte, error) {
	disableConfig.Do(api.DisableConfigDir)

	conf := model.NewAESConfiguration(userPW, ownerPW, 128)
	var out bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to encrypt fixture: %w", err)
	}
	return out.Bytes(), nil
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

func num(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
