package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MemoLookups counts memo table lookups by table (predict|explain) and
	// outcome (hit|miss)
	MemoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskscore_memo_lookups_total",
			Help: "Memoization lookups by table and outcome",
		},
		[]string{"table", "outcome"},
	)

	// ComputeErrors counts scoring and attribution failures
	ComputeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskscore_compute_errors_total",
			Help: "Failed scoring or attribution computations (never cached)",
		},
		[]string{"stage"},
	)

	// ComputeDuration observes uncached computation latency
	ComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riskscore_compute_duration_seconds",
			Help:    "Latency of uncached scoring and attribution",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"stage"},
	)

	// LLMRequests counts advisory generations by provider and outcome
	LLMRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskscore_llm_requests_total",
			Help: "Language model requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// LLMTokens counts tokens reported by the provider
	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskscore_llm_tokens_total",
			Help: "Language model tokens by provider and direction",
		},
		[]string{"provider", "direction"},
	)

	// Exports counts document and spreadsheet generations
	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riskscore_exports_total",
			Help: "Export generations by format and outcome",
		},
		[]string{"format", "outcome"},
	)

	// MemoEntries reports resident entries per memo table
	MemoEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "riskscore_memo_entries",
			Help: "Resident memoized entries per table",
		},
		[]string{"table"},
	)
)

// Outcome label values
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
