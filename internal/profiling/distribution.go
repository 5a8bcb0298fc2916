package profiling

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// Distribution summarizes a sample of default probabilities
type Distribution struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	P90      float64 `json:"p90"`
	Skewness float64 `json:"skewness"`
	Outliers int     `json:"outliers"`
}

// DistributionAnalyzer handles distribution shape analysis
type DistributionAnalyzer struct{}

// NewDistributionAnalyzer creates a new distribution analyzer
func NewDistributionAnalyzer() *DistributionAnalyzer {
	return &DistributionAnalyzer{}
}

// Analyze computes summary statistics. An empty sample is an error.
func (da *DistributionAnalyzer) Analyze(data []float64) (Distribution, error) {
	d := Distribution{Count: len(data)}
	if len(data) == 0 {
		return d, fmt.Errorf("empty sample")
	}
	sample := stats.Float64Data(data)

	var err error
	if d.Mean, err = sample.Mean(); err != nil {
		return d, err
	}
	if len(data) > 1 {
		if d.StdDev, err = sample.StandardDeviationSample(); err != nil {
			return d, err
		}
	}
	if d.Min, err = sample.Min(); err != nil {
		return d, err
	}
	if d.Max, err = sample.Max(); err != nil {
		return d, err
	}
	if d.Median, err = sample.Median(); err != nil {
		return d, err
	}

	// Nearest-rank quantiles are defined for any non-empty sample
	if d.Q25, err = sample.PercentileNearestRank(25); err != nil {
		return d, err
	}
	if d.Q75, err = sample.PercentileNearestRank(75); err != nil {
		return d, err
	}
	if d.P90, err = sample.PercentileNearestRank(90); err != nil {
		return d, err
	}

	d.Skewness = calculateSkewness(data, d.Mean, d.StdDev)
	d.Outliers = detectOutliers(data, d.Q25, d.Q75)
	return d, nil
}

// calculateSkewness computes sample skewness using the adjusted Fisher-Pearson coefficient
func calculateSkewness(data []float64, mean, stdDev float64) float64 {
	if len(data) < 3 || stdDev == 0 {
		return 0
	}

	n := float64(len(data))
	sumCubedDeviations := 0.0
	for _, x := range data {
		deviation := (x - mean) / stdDev
		sumCubedDeviations += deviation * deviation * deviation
	}

	// Bias correction for sample skewness
	return sumCubedDeviations / n * math.Sqrt(n*(n-1)) / (n - 2)
}

// detectOutliers counts values outside 1.5 IQR of the quartiles
func detectOutliers(data []float64, q25, q75 float64) int {
	iqr := q75 - q25
	lowerBound := q25 - 1.5*iqr
	upperBound := q75 + 1.5*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}
