package pdf

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"riskscore/domain/report"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Layout of the A4 report
const (
	fontFamily = "Helvetica"
	bodySize   = 10
	lineWidth  = 180
	lineHeight = 6
)

// DocumentWriter renders report documents as PDF
type DocumentWriter struct {
	compress bool
}

// NewDocumentWriter creates the document exporter
func NewDocumentWriter() *DocumentWriter {
	return &DocumentWriter{compress: true}
}

// WriteDocument lays out the header, the profile block and the body text.
// The core fonts only cover a Latin code page, so text is transliterated
// to ASCII first.
func (d *DocumentWriter) WriteDocument(w io.Writer, doc report.Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(d.compress)
	pdf.SetTitle(Transliterate(doc.Title), false)

	title := Transliterate(doc.Title)
	pageLabel := Transliterate(doc.PageLabel)
	pdf.SetHeaderFunc(func() {
		pdf.SetFont(fontFamily, "B", 12)
		pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
		pdf.Ln(5)
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("%s %d", pageLabel, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", bodySize)
	for _, line := range doc.Profile {
		pdf.MultiCell(lineWidth, lineHeight, Transliterate(line), "", "L", false)
	}
	pdf.Ln(lineHeight)

	pdf.SetFont(fontFamily, "", bodySize)
	for _, line := range strings.Split(Transliterate(doc.Body), "\n") {
		if strings.TrimSpace(line) == "" {
			pdf.Ln(lineHeight / 2)
			continue
		}
		pdf.MultiCell(lineWidth, lineHeight, line, "", "L", false)
	}

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

var symbols = strings.NewReplacer(
	"≥", ">=",
	"≤", "<=",
	"•", "-",
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
	"…", "...",
	"–", "-",
	"—", "-",
	"€", "EUR",
	"**", "",
)

// Transliterate strips accents and drops whatever else has no ASCII form,
// e.g. "Âge à 90 jours ≥ 1 ✅" -> "Age a 90 jours >= 1 ".
func Transliterate(s string) string {
	s = symbols.Replace(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r > 0x7e {
			return -1
		}
		return r
	}, out)
}
