package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Sheet is a titled table ready for rendering.
type Sheet struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
}

// CSVExporter renders sheets as CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render writes the header row followed by every data row. Short rows are
// padded so each record has one field per header.
func (e *CSVExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Headers) == 0 {
		return nil, fmt.Errorf("csv requires at least one header")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(sheet.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range sheet.Rows {
		record := make([]string, len(sheet.Headers))
		copy(record, row)
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
