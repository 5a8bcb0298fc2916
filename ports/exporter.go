package ports

import (
	"io"

	"riskscore/domain/report"
)

// DocumentExporter renders the paginated report document
type DocumentExporter interface {
	WriteDocument(w io.Writer, doc report.Document) error
}

// SpreadsheetExporter renders the two-sheet workbook
type SpreadsheetExporter interface {
	WriteWorkbook(w io.Writer, book report.Workbook) error
}
