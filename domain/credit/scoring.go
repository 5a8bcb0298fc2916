package credit

// RiskClass is the model's binary decision
type RiskClass int

const (
	LowRisk  RiskClass = 0
	HighRisk RiskClass = 1
)

// IsHigh reports a predicted default
func (c RiskClass) IsHigh() bool {
	return c == HighRisk
}

// ScoringResult is the model output for one record. The class is whatever
// the model decided; callers never re-derive it from Probability.
type ScoringResult struct {
	Probability    float64   `json:"probability"`
	PredictedClass RiskClass `json:"predicted_class"`
}

// Prediction pairs a record with its score, as cached by the scoring service
type Prediction struct {
	Record FeatureRecord `json:"record"`
	Result ScoringResult `json:"result"`
}
