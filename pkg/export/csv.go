package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVRenderer writes RFC 4180 CSV with a header line.
type CSVRenderer struct{}

// ContentType implements Renderer.
func (CSVRenderer) ContentType() string { return "text/csv; charset=utf-8" }

// Extension implements Renderer.
func (CSVRenderer) Extension() string { return "csv" }

// Render implements Renderer. The title is not part of the output.
func (CSVRenderer) Render(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
