// Package export renders tabular datasets as CSV, PDF or XLSX.
package export

import (
	"fmt"
	"strings"
)

// Dataset is a titled table. Every row has one cell per header.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// AddRow appends cells, padding or truncating to the header width.
func (d *Dataset) AddRow(cells ...string) {
	row := make([]string, len(d.Headers))
	copy(row, cells)
	d.Rows = append(d.Rows, row)
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s export requires at least one header", format)
	}
	return nil
}

// Renderer turns a dataset into file bytes.
type Renderer interface {
	Render(d Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer for "csv", "pdf" or "xlsx".
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "csv":
		return CSV{}, nil
	case "pdf":
		return PDF{}, nil
	case "xlsx":
		return XLSX{}, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
