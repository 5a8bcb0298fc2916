package app

import (
	"context"

	"riskscore/domain/credit"
	"riskscore/domain/report"
	"riskscore/internal"
	"riskscore/internal/profiling"
)

// BatchItem is one parsed input row. Err carries a parse or validation
// failure found before scoring.
type BatchItem struct {
	Line  int
	Attrs credit.ClientAttributes
	Err   error
}

// BatchResult is the outcome for one input row
type BatchResult struct {
	Line   int
	Attrs  credit.ClientAttributes
	Result credit.ScoringResult
	Top    string
	Err    error
}

// PortfolioSummary counts outcomes and describes the default probabilities
// of the scored rows
type PortfolioSummary struct {
	Scored        int                    `json:"scored"`
	Failed        int                    `json:"failed"`
	HighRisk      int                    `json:"high_risk"`
	Probabilities profiling.Distribution `json:"probabilities"`
}

// BatchService scores many clients through the memoized scoring service
type BatchService struct {
	scoring  *ScoringService
	analyzer *profiling.DistributionAnalyzer
	log      *internal.Logger
}

// NewBatchService creates a batch scorer
func NewBatchService(scoring *ScoringService) *BatchService {
	return &BatchService{
		scoring:  scoring,
		analyzer: profiling.NewDistributionAnalyzer(),
		log:      internal.Component("Batch"),
	}
}

// Score scores every valid item. Row failures are reported per row and
// never abort the batch; only context cancellation does.
func (s *BatchService) Score(ctx context.Context, items []BatchItem) ([]BatchResult, PortfolioSummary, error) {
	results := make([]BatchResult, 0, len(items))
	probs := make([]float64, 0, len(items))
	var summary PortfolioSummary

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, PortfolioSummary{}, err
		}

		res := BatchResult{Line: item.Line, Attrs: item.Attrs, Err: item.Err}
		if res.Err == nil {
			res.Result, res.Top, res.Err = s.scoreOne(ctx, item.Attrs)
		}
		if res.Err != nil {
			summary.Failed++
			s.log.Warn("line %d skipped: %v", item.Line, res.Err)
		} else {
			summary.Scored++
			probs = append(probs, res.Result.Probability)
			if res.Result.PredictedClass.IsHigh() {
				summary.HighRisk++
			}
		}
		results = append(results, res)
	}

	if len(probs) > 0 {
		dist, err := s.analyzer.Analyze(probs)
		if err != nil {
			return nil, PortfolioSummary{}, err
		}
		summary.Probabilities = dist
	}
	s.log.Info("scored %d rows, %d failed", summary.Scored, summary.Failed)
	return results, summary, nil
}

func (s *BatchService) scoreOne(ctx context.Context, attrs credit.ClientAttributes) (credit.ScoringResult, string, error) {
	pred, err := s.scoring.Predict(ctx, attrs)
	if err != nil {
		return credit.ScoringResult{}, "", err
	}
	attribution, err := s.scoring.Explain(ctx, attrs)
	if err != nil {
		return credit.ScoringResult{}, "", err
	}
	top := credit.TopN(credit.Rank(attribution.Entries), 1)
	if len(top) == 0 {
		return pred.Result, "", nil
	}
	return pred.Result, report.ExportName(top[0].Feature), nil
}

// BatchColumns are appended to the ten input columns in the scored sheet
var BatchColumns = []string{"line", "probability", "predicted_class", "decision", "top_factor", "error"}

// BatchRows renders results as sheet rows: the input values in canonical
// attribute order followed by BatchColumns.
func BatchRows(results []BatchResult, lang report.Language) [][]any {
	cat := report.CatalogFor(lang)
	rows := make([][]any, 0, len(results))
	for _, r := range results {
		a := r.Attrs
		row := []any{
			a.Age, a.MonthlyIncome, a.Dependents, a.OpenCreditLines, a.RealEstateLoans,
			a.DebtRatio, a.RevolvingUtilizationPct, a.Late30to59, a.Late60to89, a.Late90Plus,
			r.Line,
		}
		if r.Err != nil {
			row = append(row, "", "", "", "", r.Err.Error())
		} else {
			high := r.Result.PredictedClass.IsHigh()
			row = append(row,
				report.FormatPercent(r.Result.Probability, 1),
				int(r.Result.PredictedClass),
				cat.Decision(high),
				r.Top,
				"",
			)
		}
		rows = append(rows, row)
	}
	return rows
}
