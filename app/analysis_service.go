package app

import (
	"context"
	"time"

	"riskscore/domain/credit"
	"riskscore/domain/report"

	"github.com/google/uuid"
)

// Analysis is one completed pass of the scoring pipeline for a set of
// attributes in one language.
type Analysis struct {
	ID             string
	Attributes     credit.ClientAttributes
	Language       report.Language
	Record         credit.FeatureRecord
	Result         credit.ScoringResult
	ExpectedValue  float64
	Ranked         []credit.AttributionEntry
	Report         string
	Interpretation report.Interpretation
	Health         report.Health
	CreatedAt      time.Time
}

// Top returns at most n of the strongest factors
func (a *Analysis) Top(n int) []credit.AttributionEntry {
	return credit.TopN(a.Ranked, n)
}

// AnalysisService runs build, predict, explain, rank and report assembly
type AnalysisService struct {
	scoring *ScoringService
	now     func() time.Time
}

// NewAnalysisService creates the pipeline over a scoring service
func NewAnalysisService(scoring *ScoringService) *AnalysisService {
	return &AnalysisService{scoring: scoring, now: time.Now}
}

// Scoring exposes the underlying memoized scoring service
func (s *AnalysisService) Scoring() *ScoringService {
	return s.scoring
}

// Analyze scores and explains attrs and assembles the localized report
func (s *AnalysisService) Analyze(ctx context.Context, attrs credit.ClientAttributes, lang report.Language) (*Analysis, error) {
	pred, err := s.scoring.Predict(ctx, attrs)
	if err != nil {
		return nil, err
	}
	attribution, err := s.scoring.Explain(ctx, attrs)
	if err != nil {
		return nil, err
	}

	ranked := credit.Rank(attribution.Entries)
	top := credit.TopN(ranked, credit.NarrativeFactors)

	return &Analysis{
		ID:             uuid.NewString(),
		Attributes:     attrs,
		Language:       lang,
		Record:         pred.Record,
		Result:         pred.Result,
		ExpectedValue:  attribution.ExpectedValue,
		Ranked:         ranked,
		Report:         report.Assemble(attrs, pred.Result, top, lang),
		Interpretation: report.Interpret(pred.Result, top, lang),
		Health:         report.HealthScore(pred.Result.Probability, lang),
		CreatedAt:      s.now(),
	}, nil
}
