package report

import (
	"riskscore/domain/credit"
)

// FactorLine is one attributed factor rendered for people
type FactorLine struct {
	Feature   string
	Name      string
	Direction string
	Increases bool
}

type reportView struct {
	RiskLevel      string
	Probability    string
	Age            int
	Income         string
	Dependents     int
	DebtRatio      string
	Revolving      string
	Factors        []FactorLine
	Recommendation string
}

// FactorLines localizes ranked attribution entries. Zero contributions are
// reported as lowering the risk.
func FactorLines(entries []credit.AttributionEntry, lang Language) []FactorLine {
	c := CatalogFor(lang)
	lines := make([]FactorLine, 0, len(entries))
	for _, e := range entries {
		line := FactorLine{
			Feature:   e.Feature,
			Name:      c.DisplayName(e.Feature),
			Increases: e.IncreasesRisk(),
			Direction: c.Report.Decreases,
		}
		if line.Increases {
			line.Direction = c.Report.Increases
		}
		lines = append(lines, line)
	}
	return lines
}

// Assemble renders the deterministic narrative report. top is expected to be
// already ranked; at most three entries are used.
func Assemble(attrs credit.ClientAttributes, result credit.ScoringResult, top []credit.AttributionEntry, lang Language) string {
	c := CatalogFor(lang)
	high := result.PredictedClass.IsHigh()

	view := reportView{
		RiskLevel:      c.Report.RiskLow,
		Probability:    FormatPercent(result.Probability, 1),
		Age:            attrs.Age,
		Income:         FormatIncome(attrs.MonthlyIncome),
		Dependents:     attrs.Dependents,
		DebtRatio:      FormatDecimal(attrs.DebtRatio),
		Revolving:      FormatDecimal(attrs.RevolvingUtilizationPct),
		Factors:        FactorLines(credit.TopN(top, credit.NarrativeFactors), lang),
		Recommendation: c.Report.RecommendationLow,
	}
	if high {
		view.RiskLevel = c.Report.RiskHigh
		view.Recommendation = c.Report.RecommendationHigh
	}
	return c.execute(c.reportTmpl, "", view)
}

// Interpretation is the short dashboard explanation under the chart
type Interpretation struct {
	Headline   string
	Factors    []FactorLine
	Conclusion string
}

// Interpret builds the dashboard explanation from the top ranked factors
func Interpret(result credit.ScoringResult, top []credit.AttributionEntry, lang Language) Interpretation {
	c := CatalogFor(lang)
	in := Interpretation{
		Headline:   c.UI.ExplanationLow,
		Factors:    FactorLines(credit.TopN(top, credit.NarrativeFactors), lang),
		Conclusion: c.UI.ConclusionLow,
	}
	if result.PredictedClass.IsHigh() {
		in.Headline = c.UI.ExplanationHigh
		in.Conclusion = c.UI.ConclusionHigh
	}
	return in
}
