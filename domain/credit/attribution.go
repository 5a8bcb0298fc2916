package credit

import (
	"math"
	"sort"
)

// Factor counts used downstream
const (
	NarrativeFactors = 3
	ExportFactors    = 5
	ChartFactors     = 6
)

// AttributionEntry is one feature's signed contribution to the model margin
type AttributionEntry struct {
	Feature      string  `json:"feature"`
	Contribution float64 `json:"shap_value"`
	Value        float64 `json:"value"`
}

// IncreasesRisk reports whether the feature pushed the prediction toward default
func (e AttributionEntry) IncreasesRisk() bool {
	return e.Contribution > 0
}

// Rank returns a new slice ordered by descending absolute contribution.
// Exact ties keep their original order.
func Rank(entries []AttributionEntry) []AttributionEntry {
	ranked := make([]AttributionEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].Contribution) > math.Abs(ranked[j].Contribution)
	})
	return ranked
}

// TopN truncates a ranked slice to at most n entries
func TopN(ranked []AttributionEntry, n int) []AttributionEntry {
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	top := make([]AttributionEntry, n)
	copy(top, ranked[:n])
	return top
}

// Attribution is the explainer output for one record
type Attribution struct {
	ExpectedValue float64            `json:"expected_value"`
	Entries       []AttributionEntry `json:"entries"`
}

// Clone returns a deep copy
func (a Attribution) Clone() Attribution {
	entries := make([]AttributionEntry, len(a.Entries))
	copy(entries, a.Entries)
	return Attribution{ExpectedValue: a.ExpectedValue, Entries: entries}
}

// Margin is the model output in log-odds reconstructed from the attribution
func (a Attribution) Margin() float64 {
	sum := a.ExpectedValue
	for _, e := range a.Entries {
		sum += e.Contribution
	}
	return sum
}
