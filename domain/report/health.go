package report

// HealthBand buckets the financial health score
type HealthBand string

const (
	HealthExcellent HealthBand = "excellent"
	HealthCorrect   HealthBand = "correct"
	HealthWeak      HealthBand = "weak"
)

// Health is the dashboard gauge derived from the default probability
type Health struct {
	Score float64
	Band  HealthBand
	Label string
}

// HealthScore maps a probability onto a 0-100 score where higher is safer.
// 80 and above is excellent, 60 and above correct.
func HealthScore(probability float64, lang Language) Health {
	c := CatalogFor(lang)
	score := (1 - probability) * 100
	switch {
	case score >= 80:
		return Health{Score: score, Band: HealthExcellent, Label: c.UI.HealthExcellent}
	case score >= 60:
		return Health{Score: score, Band: HealthCorrect, Label: c.UI.HealthCorrect}
	default:
		return Health{Score: score, Band: HealthWeak, Label: c.UI.HealthWeak}
	}
}
