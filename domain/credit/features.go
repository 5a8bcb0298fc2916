package credit

import (
	"encoding/json"
	"fmt"
)

// Canonical model column names. The order is part of the model artifact
// contract: split indices in the trees refer to these positions.
const (
	FeatureRevolvingUtilization = "RevolvingUtilizationOfUnsecuredLines"
	FeatureAge                  = "age"
	FeatureLate30to59           = "NumberOfTime30-59DaysPastDueNotWorse"
	FeatureDebtRatio            = "DebtRatio"
	FeatureMonthlyIncome        = "MonthlyIncome"
	FeatureOpenCreditLines      = "NumberOfOpenCreditLinesAndLoans"
	FeatureLate90Plus           = "NumberOfTimes90DaysLate"
	FeatureRealEstateLoans      = "NumberRealEstateLoansOrLines"
	FeatureLate60to89           = "NumberOfTime60-89DaysPastDueNotWorse"
	FeatureDependents           = "NumberOfDependents"
)

// NumFeatures is the width of a FeatureRecord
const NumFeatures = 10

var featureNames = [NumFeatures]string{
	FeatureRevolvingUtilization,
	FeatureAge,
	FeatureLate30to59,
	FeatureDebtRatio,
	FeatureMonthlyIncome,
	FeatureOpenCreditLines,
	FeatureLate90Plus,
	FeatureRealEstateLoans,
	FeatureLate60to89,
	FeatureDependents,
}

// FeatureNames returns the canonical column order
func FeatureNames() []string {
	names := make([]string, NumFeatures)
	copy(names, featureNames[:])
	return names
}

// FeatureIndex returns the position of a canonical feature name, or -1
func FeatureIndex(name string) int {
	for i, n := range featureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// FeatureRecord is the normalized, fixed-order input vector of the model.
// It is a value type; copies are independent.
type FeatureRecord struct {
	values [NumFeatures]float64
}

// Build maps raw attributes into the canonical record. Revolving utilization
// arrives as a percentage and is stored as a fraction.
func Build(attrs ClientAttributes) FeatureRecord {
	var r FeatureRecord
	r.values[0] = attrs.RevolvingUtilizationPct / 100
	r.values[1] = float64(attrs.Age)
	r.values[2] = float64(attrs.Late30to59)
	r.values[3] = attrs.DebtRatio
	r.values[4] = float64(attrs.MonthlyIncome)
	r.values[5] = float64(attrs.OpenCreditLines)
	r.values[6] = float64(attrs.Late90Plus)
	r.values[7] = float64(attrs.RealEstateLoans)
	r.values[8] = float64(attrs.Late60to89)
	r.values[9] = float64(attrs.Dependents)
	return r
}

// NewFeatureRecord builds a record directly from a vector in canonical order
func NewFeatureRecord(values []float64) (FeatureRecord, bool) {
	var r FeatureRecord
	if len(values) != NumFeatures {
		return r, false
	}
	copy(r.values[:], values)
	return r, true
}

// Vector returns a copy of the values in canonical order
func (r FeatureRecord) Vector() []float64 {
	v := make([]float64, NumFeatures)
	copy(v, r.values[:])
	return v
}

// At returns the value at position i
func (r FeatureRecord) At(i int) float64 {
	return r.values[i]
}

// Value looks a feature up by canonical name
func (r FeatureRecord) Value(name string) (float64, bool) {
	i := FeatureIndex(name)
	if i < 0 {
		return 0, false
	}
	return r.values[i], true
}

// Map returns name -> value, mostly for JSON responses
func (r FeatureRecord) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, n := range featureNames {
		m[n] = r.values[i]
	}
	return m
}

// MarshalJSON encodes the record as an array in canonical order
func (r FeatureRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.values)
}

// UnmarshalJSON decodes an array written by MarshalJSON
func (r *FeatureRecord) UnmarshalJSON(data []byte) error {
	var values []float64
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if len(values) != NumFeatures {
		return fmt.Errorf("feature record needs %d values, got %d", NumFeatures, len(values))
	}
	copy(r.values[:], values)
	return nil
}
