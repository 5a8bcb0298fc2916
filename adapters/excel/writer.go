package excel

import (
	"fmt"
	"io"

	"riskscore/domain/report"

	"github.com/xuri/excelize/v2"
)

// WorkbookWriter renders report workbooks as XLSX
type WorkbookWriter struct{}

// NewWorkbookWriter creates the spreadsheet exporter
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{}
}

// WriteWorkbook writes the client result sheet and the impact sheet
func (WorkbookWriter) WriteWorkbook(w io.Writer, book report.Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	headers := make([]string, len(book.Client))
	values := make([]any, len(book.Client))
	for i, field := range book.Client {
		headers[i] = field.Header
		values[i] = field.Value
	}
	if err := writeSheet(f, book.ClientSheet, true, headers, [][]any{values}); err != nil {
		return err
	}

	factorRows := make([][]any, len(book.Factors))
	for i, r := range book.Factors {
		factorRows[i] = []any{r.Feature, r.ShapValue, r.Value}
	}
	if err := writeSheet(f, book.FactorSheet, false, book.FactorHeaders, factorRows); err != nil {
		return err
	}

	_, err := f.WriteTo(w)
	return err
}

// Table is one sheet of a plain tabular workbook
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]any
}

// WriteTables writes each table to its own sheet, in order
func WriteTables(w io.Writer, tables ...Table) error {
	if len(tables) == 0 {
		return fmt.Errorf("no tables to write")
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, t := range tables {
		if err := writeSheet(f, t.Sheet, i == 0, t.Headers, t.Rows); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}

// writeSheet fills a sheet with a header row followed by rows. The first
// sheet takes over the default "Sheet1" so the workbook has no empty tab.
func writeSheet(f *excelize.File, sheet string, first bool, headers []string, rows [][]any) error {
	if sheet == "" {
		return fmt.Errorf("sheet name required")
	}
	switch {
	case first && sheet != "Sheet1":
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return err
		}
	case !first:
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}

	// Header row
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	// Data rows
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
