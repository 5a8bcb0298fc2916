package report

import (
	"fmt"
	"time"

	"riskscore/domain/credit"
)

// Sheet and column identifiers of the spreadsheet export
const (
	ClientSheet  = "Resultat_Client"
	FactorSheet  = "Facteurs_Impact"
	DateHeader   = "Date_Analyse"
	RiskHeader   = "Niveau_Risque"
	DateLayout   = "2006-01-02 15:04"
	FactorColumn = "feature"
	ShapColumn   = "shap_value"
	ValueColumn  = "value"
)

// exportNames are spreadsheet-safe identifiers, distinct from the prose
// display names used in the narrative.
var exportNames = map[string]string{
	credit.FeatureRevolvingUtilization: "Utilisation_Credit_Renouvelable",
	credit.FeatureLate30to59:           "Retards_30_59_jours",
	credit.FeatureLate60to89:           "Retards_60_89_jours",
	credit.FeatureLate90Plus:           "Retards_90_jours_plus",
	credit.FeatureMonthlyIncome:        "Revenu_Mensuel",
	credit.FeatureOpenCreditLines:      "Credits_Actifs",
	credit.FeatureRealEstateLoans:      "Prets_Immobiliers",
	credit.FeatureDependents:           "Personnes_Charge",
	credit.FeatureDebtRatio:            "Ratio_Endettement",
	credit.FeatureAge:                  "Age",
}

// ExportName returns the spreadsheet identifier for a canonical feature
func ExportName(feature string) string {
	if name, ok := exportNames[feature]; ok {
		return name
	}
	return feature
}

// Field is one header/value cell pair of the client row
type Field struct {
	Header string
	Value  any
}

// FactorRow is one line of the impact sheet
type FactorRow struct {
	Feature   string  `json:"feature"`
	ShapValue float64 `json:"shap_value"`
	Value     float64 `json:"value"`
}

// ExportRow flattens one analysis into ordered header/value pairs
func ExportRow(attrs credit.ClientAttributes, result credit.ScoringResult, ts time.Time, lang Language) []Field {
	c := CatalogFor(lang)
	high := result.PredictedClass.IsHigh()
	return []Field{
		{DateHeader, ts.Format(DateLayout)},
		{c.Labels.Age, attrs.Age},
		{c.Labels.Income, attrs.MonthlyIncome},
		{c.Labels.Dependents, attrs.Dependents},
		{c.Labels.OpenCredit, attrs.OpenCreditLines},
		{c.Labels.RealEstate, attrs.RealEstateLoans},
		{c.Labels.DebtRatio, attrs.DebtRatio},
		{c.Labels.Revolving, attrs.RevolvingUtilizationPct},
		{c.Labels.Late30, attrs.Late30to59},
		{c.Labels.Late60, attrs.Late60to89},
		{c.Labels.Late90, attrs.Late90Plus},
		{c.UI.DefaultProb, FormatPercent(result.Probability, 1)},
		{c.UI.Recommendation, c.Decision(high)},
		{RiskHeader, c.RiskLabel(high)},
	}
}

// FactorRows translates ranked entries into impact sheet rows, at most five
func FactorRows(ranked []credit.AttributionEntry) []FactorRow {
	top := credit.TopN(ranked, credit.ExportFactors)
	rows := make([]FactorRow, len(top))
	for i, e := range top {
		rows[i] = FactorRow{Feature: ExportName(e.Feature), ShapValue: e.Contribution, Value: e.Value}
	}
	return rows
}

// Workbook is everything the spreadsheet exporter writes
type Workbook struct {
	ClientSheet   string
	Client        []Field
	FactorSheet   string
	FactorHeaders []string
	Factors       []FactorRow
}

// BuildWorkbook binds one analysis to the two-sheet layout
func BuildWorkbook(attrs credit.ClientAttributes, result credit.ScoringResult, ranked []credit.AttributionEntry, ts time.Time, lang Language) Workbook {
	return Workbook{
		ClientSheet:   ClientSheet,
		Client:        ExportRow(attrs, result, ts, lang),
		FactorSheet:   FactorSheet,
		FactorHeaders: []string{FactorColumn, ShapColumn, ValueColumn},
		Factors:       FactorRows(ranked),
	}
}

// Document is everything the paginated document exporter writes
type Document struct {
	Title     string
	PageLabel string
	Profile   []string
	Body      string
}

type documentView struct {
	Age            int
	Income         string
	Probability    string
	Recommendation string
}

// BuildDocument binds the profile header block and a body text. body is
// usually the advisory text when one exists, otherwise the automatic report.
func BuildDocument(attrs credit.ClientAttributes, result credit.ScoringResult, body string, lang Language) Document {
	c := CatalogFor(lang)
	view := documentView{
		Age:            attrs.Age,
		Income:         FormatIncome(attrs.MonthlyIncome),
		Probability:    FormatPercent(result.Probability, 1),
		Recommendation: c.Decision(result.PredictedClass.IsHigh()),
	}
	return Document{
		Title:     c.UI.PDFTitle,
		PageLabel: c.UI.Page,
		Profile: []string{
			c.execute(c.documentTmpl, "profile", view),
			c.execute(c.documentTmpl, "income", view),
			c.execute(c.documentTmpl, "probability", view),
			c.execute(c.documentTmpl, "recommendation", view),
		},
		Body: body,
	}
}

// DocumentFilename is the download name of the PDF export
func DocumentFilename(age int, probability float64) string {
	return fmt.Sprintf("rapport_credit_%dans_%s_risque.pdf", age, FormatPercent(probability, 0))
}

// WorkbookFilename is the download name of the XLSX export
func WorkbookFilename(age int, probability float64) string {
	return fmt.Sprintf("analyse_credit_%dans_%s_risque.xlsx", age, FormatPercent(probability, 0))
}
