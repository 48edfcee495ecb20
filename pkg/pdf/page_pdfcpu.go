package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// PDFCPUPage implements the Page interface using pdfcpu for geometry and the
// owning document's text extractors for content.
type PDFCPUPage struct {
	doc        *StreamDocument
	pageNumber int
	width      float64
	height     float64
	rotation   int
	bbox       BoundingBox
}

// NewPDFCPUPage creates a new page from the document's pdfcpu context
func NewPDFCPUPage(doc *StreamDocument, pageNumber int) (*PDFCPUPage, error) {
	if doc == nil || doc.ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}
	ctx := doc.ctx

	if pageNumber < 1 || pageNumber > ctx.PageCount {
		return nil, fmt.Errorf("page number %d out of range [1, %d]", pageNumber, ctx.PageCount)
	}

	// Get page dictionary and inherited attributes
	pageDict, _, attrs, err := ctx.PageDict(pageNumber, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}

	page := &PDFCPUPage{
		doc:        doc,
		pageNumber: pageNumber,
		// Default US Letter size
		width:  612,
		height: 792,
	}
	page.bbox = BoundingBox{X1: page.width, Y1: page.height}

	// Get page dimensions from the inherited MediaBox
	if attrs != nil && attrs.MediaBox != nil {
		mb := attrs.MediaBox
		page.width = mb.Width()
		page.height = mb.Height()
		page.bbox = BoundingBox{X0: mb.LL.X, Y0: mb.LL.Y, X1: mb.UR.X, Y1: mb.UR.Y}
	}

	// Extract rotation from inherited attributes first, then from page dict
	if attrs != nil {
		page.rotation = attrs.Rotate
	} else if rot := pageDict["Rotate"]; rot != nil {
		if rotInt, ok := rot.(types.Integer); ok {
			page.rotation = int(rotInt)
		}
	}

	return page, nil
}

// GetPageNumber returns the page number (1-based)
func (p *PDFCPUPage) GetPageNumber() int {
	return p.pageNumber
}

// GetWidth returns the page width
func (p *PDFCPUPage) GetWidth() float64 {
	return p.width
}

// GetHeight returns the page height
func (p *PDFCPUPage) GetHeight() float64 {
	return p.height
}

// GetRotation returns the page rotation in degrees
func (p *PDFCPUPage) GetRotation() int {
	return p.rotation
}

// GetBBox returns the page bounding box
func (p *PDFCPUPage) GetBBox() BoundingBox {
	return p.bbox
}

// ExtractText extracts text from the page
func (p *PDFCPUPage) ExtractText(opts ...TextExtractionOption) (string, error) {
	return p.doc.PageText(p.pageNumber-1, opts...)
}
