package export

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"timesheet-bot/internal/attendance"
)

var ErrEmptyMatrix = errors.New("no hay datos para el período")

// XLSX renders the matrix as a workbook with one sheet, colouring each cell
// by the first matching style rule of its column.
func XLSX(matrix *attendance.Matrix, rules []attendance.CellStyleRule) ([]byte, error) {
	if matrix == nil || matrix.IsEmpty() {
		return nil, ErrEmptyMatrix
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := matrix.Period.Key
	idx, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	lastCol := colName(len(matrix.Dates))
	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", lastCol, 7)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// title
	f.SetCellValue(sheetName, "A1", matrix.Title)
	f.MergeCell(sheetName, "A1", cell(lastCol, 1))
	f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	// header
	f.SetCellValue(sheetName, "A2", "Empleado")
	for i, date := range matrix.Dates {
		f.SetCellValue(sheetName, cell(colName(i+1), 2), date.Format("02/01"))
	}
	f.SetCellStyle(sheetName, "A2", cell(lastCol, 2), headerStyle)

	styles := make(map[string]int)
	styleID := func(s attendance.CellStyle) (int, error) {
		if id, ok := styles[s.Name]; ok {
			return id, nil
		}
		id, err := f.NewStyle(&excelize.Style{
			Font:      &excelize.Font{Bold: s.Bold, Size: 10, Color: s.Foreground},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{s.Background}, Pattern: 1},
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
			Border: []excelize.Border{
				{Type: "left", Color: "#BFBFBF", Style: 1},
				{Type: "right", Color: "#BFBFBF", Style: 1},
				{Type: "top", Color: "#BFBFBF", Style: 1},
				{Type: "bottom", Color: "#BFBFBF", Style: 1},
			},
		})
		if err != nil {
			return 0, err
		}
		styles[s.Name] = id
		return id, nil
	}

	row := 3
	for _, r := range matrix.Rows {
		f.SetCellValue(sheetName, cell("A", row), r.Employee)
		for i, c := range r.Cells {
			ref := cell(colName(i+1), row)
			f.SetCellValue(sheetName, ref, c.Text)

			style, ok := attendance.ResolveStyle(rules, attendance.Column(c.Date), c.Text)
			if !ok {
				continue
			}
			id, err := styleID(style)
			if err != nil {
				return nil, fmt.Errorf("cell style %s: %w", style.Name, err)
			}
			f.SetCellStyle(sheetName, ref, ref, id)
		}
		row++
	}

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      2,
		TopLeftCell: "B3",
		ActivePane:  "bottomRight",
	})

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the suggested download name for a period export.
func FileName(matrix *attendance.Matrix, ext string) string {
	return fmt.Sprintf("horas_%s.%s", matrix.Period.Key, ext)
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
