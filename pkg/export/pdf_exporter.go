package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 277.0

// PDFExporter renders sheets into a landscape A4 table.
type PDFExporter struct {
	weights []float64
}

// NewPDFExporter constructs a PDF exporter. Optional weights size the columns
// relative to each other; missing weights count as 1.
func NewPDFExporter(weights ...float64) *PDFExporter {
	return &PDFExporter{weights: weights}
}

// Render lays out the title, subtitle and table, repeating the header row on
// every page.
func (e *PDFExporter) Render(sheet Sheet) ([]byte, error) {
	if len(sheet.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	widths := e.columnWidths(len(sheet.Headers))

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)

	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range sheet.Headers {
			pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}

	pdf.AddPage()
	if sheet.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 9, sheet.Title, "", 1, "L", false, 0, "")
	}
	if sheet.Subtitle != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, sheet.Subtitle, "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range sheet.Rows {
		if pdf.GetY()+7 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		for i := range sheet.Headers {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			pdf.CellFormat(widths[i], 7, value, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) columnWidths(columns int) []float64 {
	total := 0.0
	weights := make([]float64, columns)
	for i := range weights {
		weights[i] = 1
		if i < len(e.weights) && e.weights[i] > 0 {
			weights[i] = e.weights[i]
		}
		total += weights[i]
	}
	for i := range weights {
		weights[i] = pageWidth * weights[i] / total
	}
	return weights
}
