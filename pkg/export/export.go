// Package export renders tabular data for download.
package export

import "fmt"

// Format names a supported output encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Table is an ordered grid of cells under a header row.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}

// Renderer encodes a table into a downloadable document.
type Renderer interface {
	Render(table Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// RendererFor returns the renderer for format.
func RendererFor(format Format) (Renderer, error) {
	switch format {
	case FormatCSV, "":
		return CSVRenderer{}, nil
	case FormatPDF:
		return PDFRenderer{}, nil
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}
