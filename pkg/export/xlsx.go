package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

const maxColumnWidth = 60

// XLSX renders a single-sheet workbook with a bold, filterable header row.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) Extension() string { return "xlsx" }

func (XLSX) Render(d Dataset) ([]byte, error) {
	if err := d.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if err := writeRow(f, sheet, 1, d.Headers); err != nil {
		return nil, err
	}
	for i, row := range d.Rows {
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	last, err := excelize.ColumnNumberToName(len(d.Headers))
	if err != nil {
		return nil, fmt.Errorf("xlsx column name: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheet, "A1", last+"1", style)
	}
	_ = f.AutoFilter(sheet, "A1:"+last+"1", nil)
	for i, w := range columnWidths(d) {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, w)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("xlsx cell name: %w", err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("xlsx row %d: %w", row, err)
	}
	return nil
}

func columnWidths(d Dataset) []float64 {
	widths := make([]float64, len(d.Headers))
	measure := func(i int, s string) {
		w := float64(utf8.RuneCountInString(s)) + 2
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		if w > widths[i] {
			widths[i] = w
		}
	}
	for i, h := range d.Headers {
		widths[i] = 10
		measure(i, h)
	}
	for _, row := range d.Rows {
		for i, c := range row {
			if i < len(widths) {
				measure(i, c)
			}
		}
	}
	return widths
}
