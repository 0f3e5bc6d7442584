package models

// ExportFormat selects the file format of a dataset export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportDataset names an exportable table.
type ExportDataset string

const (
	ExportAttendance ExportDataset = "attendance"
	ExportPayments   ExportDataset = "payments"
	ExportChildren   ExportDataset = "children"
)

// ExportRequest selects a dataset, format and optional date window.
type ExportRequest struct {
	Dataset ExportDataset
	Format  ExportFormat
	From    *Date
	To      *Date
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
