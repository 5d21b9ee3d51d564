package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"timesheet-bot/internal/attendance"
)

const (
	pdfMargin     = 8.0
	nameColWidth  = 36.0
	pdfRowHeight  = 5.5
	pdfHeaderSize = 6.0
)

// PDF renders the matrix on landscape A4 pages with the same colours as
// the workbook.
func PDF(matrix *attendance.Matrix, rules []attendance.CellStyleRule) ([]byte, error) {
	if matrix == nil || matrix.IsEmpty() {
		return nil, ErrEmptyMatrix
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	dayWidth := (pageWidth - 2*pdfMargin - nameColWidth) / float64(len(matrix.Dates))

	header := func() {
		pdf.SetFont("Helvetica", "B", pdfHeaderSize)
		pdf.SetFillColor(0x44, 0x72, 0xC4)
		pdf.SetTextColor(0xFF, 0xFF, 0xFF)
		pdf.CellFormat(nameColWidth, pdfRowHeight, "Empleado", "1", 0, "L", true, 0, "")
		for _, date := range matrix.Dates {
			pdf.CellFormat(dayWidth, pdfRowHeight, date.Format("02/01"), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetHeaderFunc(func() {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 8, tr(matrix.Title), "", 1, "L", false, 0, "")
		header()
	})
	pdf.AddPage()

	for _, row := range matrix.Rows {
		pdf.SetFont("Helvetica", "", pdfHeaderSize)
		pdf.SetFillColor(0xFF, 0xFF, 0xFF)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(nameColWidth, pdfRowHeight, tr(row.Employee), "1", 0, "L", true, 0, "")

		for _, c := range row.Cells {
			style, ok := attendance.ResolveStyle(rules, attendance.Column(c.Date), c.Text)
			if !ok {
				style = attendance.StyleEmpty
			}
			bgR, bgG, bgB := hexColor(style.Background)
			fgR, fgG, fgB := hexColor(style.Foreground)
			pdf.SetFillColor(bgR, bgG, bgB)
			pdf.SetTextColor(fgR, fgG, fgB)
			if style.Bold {
				pdf.SetFont("Helvetica", "B", pdfHeaderSize-1)
			} else {
				pdf.SetFont("Helvetica", "", pdfHeaderSize-1)
			}
			pdf.CellFormat(dayWidth, pdfRowHeight, c.Text, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// hexColor parses #RRGGBB; anything else is black.
func hexColor(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF)
}
