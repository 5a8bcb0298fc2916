package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"riskscore/domain/report"
	"riskscore/internal"
	"riskscore/internal/errors"
	"riskscore/internal/metrics"
	"riskscore/ports"
)

// Export formats
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ExportService renders an analysis to a document or a workbook. Each
// format fails on its own; a broken PDF never blocks the spreadsheet.
type ExportService struct {
	document ports.DocumentExporter
	sheet    ports.SpreadsheetExporter
	log      *internal.Logger
}

// NewExportService wires both exporters
func NewExportService(document ports.DocumentExporter, sheet ports.SpreadsheetExporter) *ExportService {
	return &ExportService{document: document, sheet: sheet, log: internal.Component("Export")}
}

// Artifact is a rendered export ready to be written or served
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentBody picks the advisory text when there is one for these
// attributes, otherwise the automatic report.
func DocumentBody(a *Analysis, advisory string) string {
	if strings.TrimSpace(advisory) != "" {
		return advisory
	}
	return a.Report
}

// PDF renders the paginated report document
func (s *ExportService) PDF(a *Analysis, advisory string) (*Artifact, error) {
	doc := report.BuildDocument(a.Attributes, a.Result, DocumentBody(a, advisory), a.Language)
	data, err := s.render(FormatPDF, func(w io.Writer) error {
		return s.document.WriteDocument(w, doc)
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    report.DocumentFilename(a.Attributes.Age, a.Result.Probability),
		ContentType: "application/pdf",
		Data:        data,
	}, nil
}

// XLSX renders the client and factor sheets
func (s *ExportService) XLSX(a *Analysis) (*Artifact, error) {
	book := report.BuildWorkbook(a.Attributes, a.Result, a.Ranked, a.CreatedAt, a.Language)
	data, err := s.render(FormatXLSX, func(w io.Writer) error {
		return s.sheet.WriteWorkbook(w, book)
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Filename:    report.WorkbookFilename(a.Attributes.Age, a.Result.Probability),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}

func (s *ExportService) render(format string, write func(io.Writer) error) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Export(format, fmt.Errorf("renderer panicked: %v", r))
		}
		if err != nil {
			metrics.Exports.WithLabelValues(format, metrics.OutcomeError).Inc()
			s.log.Error("%s export failed: %v", format, err)
			return
		}
		metrics.Exports.WithLabelValues(format, metrics.OutcomeSuccess).Inc()
	}()

	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return nil, errors.Export(format, err)
	}
	return buf.Bytes(), nil
}
