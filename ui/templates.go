package ui

import (
	"fmt"
	"html/template"
	"math"
	"net/url"
	"strconv"

	"riskscore/app"
	"riskscore/domain/credit"
	"riskscore/domain/report"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"pct":      func(p float64) string { return report.FormatPercent(p, 1) },
		"pct3":     func(p float64) string { return report.FormatPercent(p, 3) },
		"income":   report.FormatIncome,
		"decimal":  report.FormatDecimal,
		"signed":   func(v float64) string { return fmt.Sprintf("%+.3f", v) },
		"score":    func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
		"markdown": renderMarkdown,
	}
}

// renderMarkdown turns model output into HTML. Raw HTML is dropped and links
// with unsafe schemes lose their href, so the result is safe to embed.
func renderMarkdown(text string) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.HardLineBreak)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.SkipHTML | mdhtml.Safelink | mdhtml.NofollowLinks | mdhtml.NoreferrerLinks})
	return template.HTML(markdown.ToHTML([]byte(text), p, r))
}

// field is one bounded dashboard control
type field struct {
	Name  string
	Label string
	Value string
	Min   string
	Max   string
	Step  string
}

func fields(a credit.ClientAttributes, l report.Labels) []field {
	itoa := strconv.Itoa
	return []field{
		{"age", l.Age, itoa(a.Age), "18", "100", "1"},
		{"monthly_income", l.Income, strconv.FormatInt(a.MonthlyIncome, 10), "0", "", "50000"},
		{"dependents", l.Dependents, itoa(a.Dependents), "0", "10", "1"},
		{"open_credit_lines", l.OpenCredit, itoa(a.OpenCreditLines), "0", "30", "1"},
		{"real_estate_loans", l.RealEstate, itoa(a.RealEstateLoans), "0", "10", "1"},
		{"debt_ratio", l.DebtRatio, report.FormatDecimal(a.DebtRatio), "0", "10", "0.1"},
		{"revolving_utilization_pct", l.Revolving, report.FormatDecimal(a.RevolvingUtilizationPct), "0", "100", "0.5"},
		{"late_30_59", l.Late30, itoa(a.Late30to59), "0", "10", "1"},
		{"late_60_89", l.Late60, itoa(a.Late60to89), "0", "10", "1"},
		{"late_90_plus", l.Late90, itoa(a.Late90Plus), "0", "10", "1"},
	}
}

// encodeQuery renders attrs and lang back into dashboard query parameters
func encodeQuery(a credit.ClientAttributes, lang report.Language) string {
	v := url.Values{}
	v.Set("lang", string(lang))
	for _, f := range fields(a, report.Labels{}) {
		v.Set(f.Name, f.Value)
	}
	return v.Encode()
}

// bar is one row of the impact chart
type bar struct {
	Name      string
	Value     string
	Shown     string
	Width     float64
	Increases bool
}

func chart(a *app.Analysis) []bar {
	top := a.Top(credit.ChartFactors)
	maxAbs := 0.0
	for _, e := range top {
		maxAbs = math.Max(maxAbs, math.Abs(e.Contribution))
	}
	cat := report.CatalogFor(a.Language)
	bars := make([]bar, 0, len(top))
	for _, e := range top {
		width := 0.0
		if maxAbs > 0 {
			width = math.Abs(e.Contribution) / maxAbs * 100
		}
		bars = append(bars, bar{
			Name:      cat.DisplayName(e.Feature),
			Value:     fmt.Sprintf("%+.3f", e.Contribution),
			Shown:     report.FormatDecimal(e.Value),
			Width:     math.Round(width*10) / 10,
			Increases: e.IncreasesRisk(),
		})
	}
	return bars
}

type languageOption struct {
	Code     report.Language
	Name     string
	Selected bool
	URL      template.URL
}

type debugView struct {
	Probability string
	Class       int
	TopFactor   string
	TopImpact   string
	Stats       app.CacheStats
	Sessions    int
}

type dashboardView struct {
	Lang      report.Language
	Languages []languageOption
	UI        report.UIStrings
	Fields    []field
	Query     template.URL
	Error     string

	Analysis *app.Analysis
	High     bool
	Badge    string
	Decision string
	Chart    []bar

	AdvisoryEnabled bool
	Advice          *Advice
	AdvisoryError   string

	Debug *debugView
}

func languageOptions(a credit.ClientAttributes, selected report.Language) []languageOption {
	opts := make([]languageOption, 0, 2)
	for _, l := range report.Languages() {
		opts = append(opts, languageOption{
			Code:     l,
			Name:     report.CatalogFor(l).Name,
			Selected: l == selected,
			URL:      template.URL("/?" + encodeQuery(a, l)),
		})
	}
	return opts
}
