package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pdfContentWidth = 190.0

// PDFRenderer lays the table out on A4 pages with a bold header row that is
// repeated after every page break.
type PDFRenderer struct{}

// ContentType implements Renderer.
func (PDFRenderer) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (PDFRenderer) Extension() string { return "pdf" }

// Render implements Renderer.
func (PDFRenderer) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	colWidth := pdfContentWidth / float64(len(table.Headers))
	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range table.Headers {
			pdf.CellFormat(colWidth, 8, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})

	pdf.AddPage()
	if table.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(table.Title), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}
	header()
	for _, row := range table.Rows {
		for _, cell := range row {
			pdf.CellFormat(colWidth, 7, tr(cell), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
