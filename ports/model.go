package ports

import "riskscore/domain/credit"

// ScoringModel is a pretrained binary classifier over a feature record
type ScoringModel interface {
	// Score returns the default probability and the model's own class decision
	Score(record credit.FeatureRecord) (credit.ScoringResult, error)
}

// Explainer attributes a prediction to the features of its record
type Explainer interface {
	// Explain returns one signed contribution per feature, in record order
	Explain(record credit.FeatureRecord) (credit.Attribution, error)
}
