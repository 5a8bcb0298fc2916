package report

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Language selects a message catalog
type Language string

const (
	French  Language = "fr"
	English Language = "en"
)

// DefaultLanguage is used whenever a requested language is unknown
const DefaultLanguage = French

// ParseLanguage maps a user-supplied code onto a supported language,
// falling back to French.
func ParseLanguage(code string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(code))) {
	case English:
		return English
	default:
		return French
	}
}

// Languages lists the supported catalogs in display order
func Languages() []Language {
	return []Language{French, English}
}

//go:embed locales/*.yaml
var localeFS embed.FS

// UIStrings are the dashboard and document chrome strings
type UIStrings struct {
	PageTitle       string `yaml:"page_title"`
	About           string `yaml:"about"`
	HeaderTitle     string `yaml:"header_title"`
	HeaderSubtitle  string `yaml:"header_subtitle"`
	ProfileClient   string `yaml:"profile_client"`
	AnalysisResult  string `yaml:"analysis_result"`
	DefaultProb     string `yaml:"default_prob"`
	Recommendation  string `yaml:"recommendation"`
	LowRisk         string `yaml:"low_risk"`
	HighRisk        string `yaml:"high_risk"`
	Acceptance      string `yaml:"acceptance"`
	Rejection       string `yaml:"rejection"`
	LowRiskBadge    string `yaml:"low_risk_badge"`
	HighRiskBadge   string `yaml:"high_risk_badge"`
	ShapSection     string `yaml:"shap_section"`
	ChartTitle      string `yaml:"chart_title"`
	ExpectedValue   string `yaml:"expected_value"`
	Interpretation  string `yaml:"interpretation"`
	ExplanationHigh string `yaml:"explanation_high"`
	ExplanationLow  string `yaml:"explanation_low"`
	ConclusionHigh  string `yaml:"conclusion_high"`
	ConclusionLow   string `yaml:"conclusion_low"`
	AIReportSection string `yaml:"ai_report_section"`
	GenerateAI      string `yaml:"generate_ai_report"`
	AIReportTitle   string `yaml:"ai_report_title"`
	MissingAPIKey   string `yaml:"missing_api_key"`
	AIInProgress    string `yaml:"ai_in_progress"`
	AIError         string `yaml:"ai_error"`
	Downloads       string `yaml:"downloads"`
	PDFButton       string `yaml:"pdf_button"`
	ExcelButton     string `yaml:"excel_button"`
	ExportError     string `yaml:"export_error"`
	PDFTitle        string `yaml:"pdf_title"`
	Page            string `yaml:"page"`
	HealthTitle     string `yaml:"health_title"`
	HealthLabel     string `yaml:"health_label"`
	HealthExcellent string `yaml:"health_excellent"`
	HealthCorrect   string `yaml:"health_correct"`
	HealthWeak      string `yaml:"health_weak"`
	RealtimeFooter  string `yaml:"realtime_footer"`
	ModelFooter     string `yaml:"model_footer"`
	Submit          string `yaml:"submit"`
}

// Labels are the localized input field names
type Labels struct {
	Age        string `yaml:"age"`
	Income     string `yaml:"income"`
	Dependents string `yaml:"dependents"`
	OpenCredit string `yaml:"open_credit"`
	RealEstate string `yaml:"real_estate"`
	DebtRatio  string `yaml:"debt_ratio"`
	Revolving  string `yaml:"revolving"`
	Late30     string `yaml:"late_30"`
	Late60     string `yaml:"late_60"`
	Late90     string `yaml:"late_90"`
}

type reportStrings struct {
	RiskHigh           string `yaml:"risk_high"`
	RiskLow            string `yaml:"risk_low"`
	Increases          string `yaml:"increases"`
	Decreases          string `yaml:"decreases"`
	RecommendationHigh string `yaml:"recommendation_high"`
	RecommendationLow  string `yaml:"recommendation_low"`
	Template           string `yaml:"template"`
}

type documentStrings struct {
	Profile        string `yaml:"profile"`
	Income         string `yaml:"income"`
	Probability    string `yaml:"probability"`
	Recommendation string `yaml:"recommendation"`
}

// Catalog is one language's full set of user-visible text
type Catalog struct {
	Code         Language          `yaml:"code"`
	Name         string            `yaml:"name"`
	UI           UIStrings         `yaml:"ui"`
	Labels       Labels            `yaml:"labels"`
	DisplayNames map[string]string `yaml:"display_names"`
	Report       reportStrings     `yaml:"report"`
	Document     documentStrings   `yaml:"document"`
	Prompt       string            `yaml:"prompt"`

	reportTmpl   *template.Template
	promptTmpl   *template.Template
	documentTmpl *template.Template
}

var catalogs = mustLoadCatalogs()

func mustLoadCatalogs() map[Language]*Catalog {
	out := make(map[Language]*Catalog, 2)
	for _, lang := range Languages() {
		c, err := loadCatalog(lang)
		if err != nil {
			panic(fmt.Sprintf("report: %v", err))
		}
		out[lang] = c
	}
	return out
}

func loadCatalog(lang Language) (*Catalog, error) {
	raw, err := localeFS.ReadFile("locales/" + string(lang) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", lang, err)
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", lang, err)
	}
	if c.Code != lang {
		return nil, fmt.Errorf("catalog %s declares code %q", lang, c.Code)
	}

	if c.reportTmpl, err = template.New("report").Parse(c.Report.Template); err != nil {
		return nil, fmt.Errorf("catalog %s report template: %w", lang, err)
	}
	if c.promptTmpl, err = template.New("prompt").Parse(c.Prompt); err != nil {
		return nil, fmt.Errorf("catalog %s prompt template: %w", lang, err)
	}
	docLines := strings.Join([]string{
		`{{define "profile"}}` + c.Document.Profile + `{{end}}`,
		`{{define "income"}}` + c.Document.Income + `{{end}}`,
		`{{define "probability"}}` + c.Document.Probability + `{{end}}`,
		`{{define "recommendation"}}` + c.Document.Recommendation + `{{end}}`,
	}, "")
	if c.documentTmpl, err = template.New("document").Parse(docLines); err != nil {
		return nil, fmt.Errorf("catalog %s document templates: %w", lang, err)
	}
	return &c, nil
}

// CatalogFor returns the catalog for lang, or the French one
func CatalogFor(lang Language) *Catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[DefaultLanguage]
}

// DisplayName returns the localized human name of a canonical feature,
// or the canonical name itself when the catalog has none.
func (c *Catalog) DisplayName(feature string) string {
	if name, ok := c.DisplayNames[feature]; ok {
		return name
	}
	return feature
}

// RiskLabel returns "low risk"/"high risk"
func (c *Catalog) RiskLabel(high bool) string {
	if high {
		return c.UI.HighRisk
	}
	return c.UI.LowRisk
}

// Decision returns the acceptance/rejection label
func (c *Catalog) Decision(high bool) string {
	if high {
		return c.UI.Rejection
	}
	return c.UI.Acceptance
}

// Badge returns the colored status badge text
func (c *Catalog) Badge(high bool) string {
	if high {
		return c.UI.HighRiskBadge
	}
	return c.UI.LowRiskBadge
}

func (c *Catalog) execute(t *template.Template, name string, data any) string {
	var b strings.Builder
	var err error
	if name == "" {
		err = t.Execute(&b, data)
	} else {
		err = t.ExecuteTemplate(&b, name, data)
	}
	if err != nil {
		// templates are embedded and only receive the view structs below
		panic(fmt.Sprintf("report: render %s/%s: %v", c.Code, t.Name(), err))
	}
	return b.String()
}
