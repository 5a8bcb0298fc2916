package report

import (
	"riskscore/domain/credit"
)

// MaxPromptLength bounds the rendered instruction text sent to a generator
const MaxPromptLength = 2000

type promptView struct {
	Age         int
	Income      string
	DebtRatio   string
	Revolving   string
	OpenCredit  int
	Late30      int
	Late60      int
	Late90      int
	Probability string
}

// BuildPrompt renders the advisory instruction for the language model.
// It asks for a three-part recommendation of at most 80 words.
func BuildPrompt(attrs credit.ClientAttributes, result credit.ScoringResult, lang Language) string {
	c := CatalogFor(lang)
	view := promptView{
		Age:         attrs.Age,
		Income:      FormatIncome(attrs.MonthlyIncome),
		DebtRatio:   FormatDecimal(attrs.DebtRatio),
		Revolving:   FormatDecimal(attrs.RevolvingUtilizationPct),
		OpenCredit:  attrs.OpenCreditLines,
		Late30:      attrs.Late30to59,
		Late60:      attrs.Late60to89,
		Late90:      attrs.Late90Plus,
		Probability: FormatPercent(result.Probability, 1),
	}
	prompt := c.execute(c.promptTmpl, "", view)
	if len(prompt) > MaxPromptLength {
		prompt = truncateUTF8(prompt, MaxPromptLength)
	}
	return prompt
}

func truncateUTF8(s string, max int) string {
	for max > 0 && max < len(s) && s[max]&0xC0 == 0x80 {
		max--
	}
	return s[:max]
}
