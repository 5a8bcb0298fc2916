package app

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"riskscore/adapters/cache"
	"riskscore/adapters/excel"
	"riskscore/adapters/llm"
	"riskscore/adapters/pdf"
	"riskscore/adapters/xgboost"
	"riskscore/domain/credit"
	"riskscore/domain/report"
	"riskscore/internal/errors"
	"riskscore/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockScoringModel struct {
	mock.Mock
}

func (m *MockScoringModel) Score(record credit.FeatureRecord) (credit.ScoringResult, error) {
	args := m.Called(record)
	return args.Get(0).(credit.ScoringResult), args.Error(1)
}

type MockExplainer struct {
	mock.Mock
}

func (m *MockExplainer) Explain(record credit.FeatureRecord) (credit.Attribution, error) {
	args := m.Called(record)
	return args.Get(0).(credit.Attribution), args.Error(1)
}

func sampleAttribution() credit.Attribution {
	return credit.Attribution{
		ExpectedValue: -1.2,
		Entries: []credit.AttributionEntry{
			{Feature: credit.FeatureRevolvingUtilization, Contribution: -0.6, Value: 0.3},
			{Feature: credit.FeatureAge, Contribution: 0.2, Value: 35},
			{Feature: credit.FeatureDebtRatio, Contribution: 0.05, Value: 0.5},
		},
	}
}

func newMockedService(t *testing.T) (*ScoringService, *MockScoringModel, *MockExplainer) {
	t.Helper()
	model := &MockScoringModel{}
	explainer := &MockExplainer{}
	svc := NewScoringService(model, explainer,
		cache.NewMemoryStore[credit.Prediction](),
		cache.NewMemoryStore[credit.Attribution](),
	)
	return svc, model, explainer
}

func bundledPipeline(t *testing.T) *AnalysisService {
	t.Helper()
	model, err := xgboost.Load(filepath.Join("..", "data", "xgb_model.json"), xgboost.Options{FeatureNames: credit.FeatureNames()})
	require.NoError(t, err)
	explainer, err := xgboost.NewTreeExplainer(model)
	require.NoError(t, err)
	return NewAnalysisService(NewScoringService(model, explainer,
		cache.NewMemoryStore[credit.Prediction](),
		cache.NewMemoryStore[credit.Attribution](),
	))
}

func TestPredictIsMemoized(t *testing.T) {
	svc, model, _ := newMockedService(t)
	attrs := credit.DefaultAttributes()
	model.On("Score", credit.Build(attrs)).Return(credit.ScoringResult{Probability: 0.12}, nil)

	first, err := svc.Predict(context.Background(), attrs)
	require.NoError(t, err)
	second, err := svc.Predict(context.Background(), attrs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 0.3, first.Record.At(0))
	model.AssertNumberOfCalls(t, "Score", 1)
	assert.Equal(t, 1, svc.Stats().Predictions)
}

func TestDistinctAttributesAreDistinctEntries(t *testing.T) {
	svc, model, _ := newMockedService(t)
	model.On("Score", mock.Anything).Return(credit.ScoringResult{Probability: 0.2}, nil)

	a := credit.DefaultAttributes()
	b := a
	b.RevolvingUtilizationPct = 30.000001

	_, err := svc.Predict(context.Background(), a)
	require.NoError(t, err)
	_, err = svc.Predict(context.Background(), b)
	require.NoError(t, err)

	model.AssertNumberOfCalls(t, "Score", 2)
	assert.Equal(t, 2, svc.Stats().Predictions)
}

func TestExplainReusesPredictionAndReturnsCopies(t *testing.T) {
	svc, model, explainer := newMockedService(t)
	attrs := credit.DefaultAttributes()
	model.On("Score", mock.Anything).Return(credit.ScoringResult{Probability: 0.12}, nil)
	explainer.On("Explain", credit.Build(attrs)).Return(sampleAttribution(), nil)

	_, err := svc.Predict(context.Background(), attrs)
	require.NoError(t, err)

	got, err := svc.Explain(context.Background(), attrs)
	require.NoError(t, err)
	got.Entries[0].Contribution = 99
	got.Entries = got.Entries[:1]

	again, err := svc.Explain(context.Background(), attrs)
	require.NoError(t, err)
	assert.Equal(t, sampleAttribution(), again)

	model.AssertNumberOfCalls(t, "Score", 1)
	explainer.AssertNumberOfCalls(t, "Explain", 1)
}

func TestComputationErrorsAreNotCached(t *testing.T) {
	svc, model, explainer := newMockedService(t)
	attrs := credit.DefaultAttributes()
	model.On("Score", mock.Anything).Return(credit.ScoringResult{}, stderrors.New("boom")).Once()
	model.On("Score", mock.Anything).Return(credit.ScoringResult{Probability: 0.4}, nil).Once()
	explainer.On("Explain", mock.Anything).Return(credit.Attribution{}, stderrors.New("bad tree")).Once()
	explainer.On("Explain", mock.Anything).Return(sampleAttribution(), nil).Once()

	_, err := svc.Predict(context.Background(), attrs)
	require.Error(t, err)
	assert.Equal(t, errors.CodeComputation, errors.GetCode(err))
	assert.Equal(t, 0, svc.Stats().Predictions)

	pred, err := svc.Predict(context.Background(), attrs)
	require.NoError(t, err)
	assert.Equal(t, 0.4, pred.Result.Probability)

	_, err = svc.Explain(context.Background(), attrs)
	require.Error(t, err)
	assert.Equal(t, errors.CodeComputation, errors.GetCode(err))
	assert.Equal(t, 0, svc.Stats().Attributions)

	attribution, err := svc.Explain(context.Background(), attrs)
	require.NoError(t, err)
	assert.Len(t, attribution.Entries, 3)
	model.AssertExpectations(t)
	explainer.AssertExpectations(t)
}

func TestBoundaryAges(t *testing.T) {
	svc, model, _ := newMockedService(t)
	model.On("Score", mock.Anything).Return(credit.ScoringResult{Probability: 0.3}, nil)

	for _, age := range []int{17, 101} {
		attrs := credit.DefaultAttributes()
		attrs.Age = age
		_, err := svc.Predict(context.Background(), attrs)
		require.Error(t, err, "age %d", age)
		assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
	}
	model.AssertNotCalled(t, "Score", mock.Anything)

	for _, age := range []int{18, 100} {
		attrs := credit.DefaultAttributes()
		attrs.Age = age
		_, err := svc.Predict(context.Background(), attrs)
		assert.NoError(t, err, "age %d", age)
	}
}

type failingStore[V any] struct{}

func (failingStore[V]) Get(context.Context, string) (V, bool, error) {
	var zero V
	return zero, false, stderrors.New("store down")
}

func (failingStore[V]) Set(context.Context, string, V) error {
	return stderrors.New("store down")
}

func (failingStore[V]) Len() int { return -1 }

func TestStoreFailuresFallBackToComputation(t *testing.T) {
	model := &MockScoringModel{}
	explainer := &MockExplainer{}
	model.On("Score", mock.Anything).Return(credit.ScoringResult{Probability: 0.7, PredictedClass: credit.HighRisk}, nil)
	explainer.On("Explain", mock.Anything).Return(sampleAttribution(), nil)
	svc := NewScoringService(model, explainer, failingStore[credit.Prediction]{}, failingStore[credit.Attribution]{})

	pred, err := svc.Predict(context.Background(), credit.DefaultAttributes())
	require.NoError(t, err)
	assert.True(t, pred.Result.PredictedClass.IsHigh())

	_, err = svc.Explain(context.Background(), credit.DefaultAttributes())
	require.NoError(t, err)
	assert.Equal(t, CacheStats{Predictions: -1, Attributions: -1}, svc.Stats())
}

func TestConcurrentCallsAgree(t *testing.T) {
	analysis := bundledPipeline(t)
	svc := analysis.Scoring()
	attrs := credit.DefaultAttributes()

	var wg sync.WaitGroup
	results := make([]credit.Attribution, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Explain(context.Background(), attrs)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.Equal(t, CacheStats{Predictions: 1, Attributions: 1}, svc.Stats())
}

func TestDeterminismAcrossFreshServices(t *testing.T) {
	attrs := credit.DefaultAttributes()
	attrs.Late30to59 = 2
	attrs.DebtRatio = 1.75

	a, err := bundledPipeline(t).Analyze(context.Background(), attrs, report.English)
	require.NoError(t, err)
	b, err := bundledPipeline(t).Analyze(context.Background(), attrs, report.English)
	require.NoError(t, err)

	assert.Equal(t, a.Result, b.Result)
	assert.Equal(t, a.Ranked, b.Ranked)
	assert.Equal(t, a.Report, b.Report)
	assert.NotEqual(t, a.ID, b.ID)
}

func factorLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "• ") && (strings.HasSuffix(line, "le risque") || strings.HasSuffix(line, "risk")) {
			n++
		}
	}
	return n
}

func TestDefaultsScenarioEndToEnd(t *testing.T) {
	analysis := bundledPipeline(t)
	attrs := credit.DefaultAttributes()

	a, err := analysis.Analyze(context.Background(), attrs, report.French)
	require.NoError(t, err)

	assert.Equal(t, credit.LowRisk, a.Result.PredictedClass)
	assert.Greater(t, a.Result.Probability, 0.0)
	assert.Less(t, a.Result.Probability, 0.5)
	assert.Equal(t, 0.3, a.Record.At(0))
	require.Len(t, a.Ranked, credit.NumFeatures)
	for i := 1; i < len(a.Ranked); i++ {
		assert.GreaterOrEqual(t, math.Abs(a.Ranked[i-1].Contribution), math.Abs(a.Ranked[i].Contribution))
	}

	margin := math.Log(a.Result.Probability / (1 - a.Result.Probability))
	total := a.ExpectedValue
	for _, e := range a.Ranked {
		total += e.Contribution
	}
	assert.InDelta(t, margin, total, 1e-9)

	assert.Contains(t, a.Report, "FAIBLE")
	assert.Contains(t, a.Report, "1,500,000 FCFA")
	assert.Contains(t, a.Report, "Utilisation crédit renouvelable : 30.0%")
	assert.Equal(t, 3, factorLines(a.Report))
	assert.Len(t, a.Interpretation.Factors, 3)
	assert.Equal(t, report.HealthScore(a.Result.Probability, report.French), a.Health)

	en, err := analysis.Analyze(context.Background(), attrs, report.English)
	require.NoError(t, err)
	assert.Contains(t, en.Report, "LOW")
	assert.Equal(t, a.Result, en.Result)
	assert.Equal(t, CacheStats{Predictions: 1, Attributions: 1}, analysis.Scoring().Stats())

	exports := NewExportService(pdf.NewDocumentWriter(), excel.NewWorkbookWriter())
	doc, err := exports.PDF(a, "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(doc.Data), "%PDF"))
	assert.True(t, strings.HasPrefix(doc.Filename, "rapport_credit_35ans_"))

	book, err := exports.XLSX(a)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(book.Data), "PK"))
	assert.True(t, strings.HasPrefix(book.Filename, "analyse_credit_35ans_"))
}

func TestRiskyProfileIsHighRisk(t *testing.T) {
	attrs := credit.DefaultAttributes()
	attrs.RevolvingUtilizationPct = 95
	attrs.Age = 24
	attrs.Late30to59, attrs.Late60to89, attrs.Late90Plus = 3, 2, 2
	attrs.MonthlyIncome = 300000

	a, err := bundledPipeline(t).Analyze(context.Background(), attrs, report.French)
	require.NoError(t, err)
	assert.Equal(t, credit.HighRisk, a.Result.PredictedClass)
	assert.Contains(t, a.Report, "ÉLEVÉ")
}

func TestAdvisoryUnavailableWithoutGenerator(t *testing.T) {
	svc := NewAdvisoryService(nil, AdvisoryConfig{})
	assert.False(t, svc.Enabled())

	_, err := svc.Generate(context.Background(), credit.DefaultAttributes(), credit.ScoringResult{}, report.French)
	assert.ErrorIs(t, err, ErrAdvisoryUnavailable)
}

func TestAdvisoryGenerate(t *testing.T) {
	gen := &llm.MockLLMClient{Response: "  1) PROFIL: stable  "}
	svc := NewAdvisoryService(gen, DefaultAdvisoryConfig())

	result := credit.ScoringResult{Probability: 0.1234}
	text, err := svc.Generate(context.Background(), credit.DefaultAttributes(), result, report.French)
	require.NoError(t, err)
	assert.Equal(t, "1) PROFIL: stable", text)
	assert.Equal(t, 120, gen.Last.MaxTokens)
	assert.Equal(t, 0.2, gen.Last.Temperature)
	assert.Equal(t, report.BuildPrompt(credit.DefaultAttributes(), result, report.French), gen.Last.Prompt)
}

func TestAdvisoryFailureIsIsolated(t *testing.T) {
	analysis := bundledPipeline(t)
	attrs := credit.DefaultAttributes()
	before, err := analysis.Analyze(context.Background(), attrs, report.French)
	require.NoError(t, err)
	statsBefore := analysis.Scoring().Stats()

	advisory := NewAdvisoryService(&llm.MockLLMClient{Error: &llm.GenerationError{Provider: "mock", Kind: llm.KindAuth}}, DefaultAdvisoryConfig())
	_, err = advisory.Generate(context.Background(), attrs, before.Result, report.French)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
	assert.Equal(t, llm.KindAuth, llm.KindOf(err))

	after, err := analysis.Analyze(context.Background(), attrs, report.French)
	require.NoError(t, err)
	assert.Equal(t, before.Report, after.Report)
	assert.Equal(t, statsBefore, analysis.Scoring().Stats())

	exports := NewExportService(pdf.NewDocumentWriter(), excel.NewWorkbookWriter())
	_, err = exports.PDF(after, "")
	assert.NoError(t, err)
	_, err = exports.XLSX(after)
	assert.NoError(t, err)
}

type slowGenerator struct{}

func (slowGenerator) Provider() string { return "slow" }

func (slowGenerator) Generate(ctx context.Context, _ ports.GenerationRequest) (*ports.LLMResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAdvisoryTimeout(t *testing.T) {
	svc := NewAdvisoryService(slowGenerator{}, AdvisoryConfig{Timeout: 10 * time.Millisecond})

	start := time.Now()
	_, err := svc.Generate(context.Background(), credit.DefaultAttributes(), credit.ScoringResult{}, report.English)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

type captureDocument struct {
	doc report.Document
	err error
}

func (c *captureDocument) WriteDocument(w io.Writer, doc report.Document) error {
	c.doc = doc
	if c.err != nil {
		return c.err
	}
	_, err := w.Write([]byte("%PDF-fake"))
	return err
}

type panickingSheet struct{}

func (panickingSheet) WriteWorkbook(io.Writer, report.Workbook) error {
	panic("broken renderer")
}

func sampleAnalysis() *Analysis {
	attrs := credit.DefaultAttributes()
	result := credit.ScoringResult{Probability: 0.1234}
	ranked := credit.Rank(sampleAttribution().Entries)
	return &Analysis{
		Attributes: attrs,
		Language:   report.French,
		Result:     result,
		Ranked:     ranked,
		Report:     report.Assemble(attrs, result, credit.TopN(ranked, 3), report.French),
		CreatedAt:  time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC),
	}
}

func TestPDFPrefersAdvisoryText(t *testing.T) {
	doc := &captureDocument{}
	exports := NewExportService(doc, excel.NewWorkbookWriter())
	a := sampleAnalysis()

	art, err := exports.PDF(a, "Recommandation IA")
	require.NoError(t, err)
	assert.Equal(t, "Recommandation IA", doc.doc.Body)
	assert.Equal(t, "rapport_credit_35ans_12%_risque.pdf", art.Filename)
	assert.Equal(t, "application/pdf", art.ContentType)

	_, err = exports.PDF(a, "   ")
	require.NoError(t, err)
	assert.Equal(t, a.Report, doc.doc.Body)
}

func TestExportFailuresAreIsolated(t *testing.T) {
	a := sampleAnalysis()

	broken := NewExportService(&captureDocument{err: stderrors.New("font missing")}, excel.NewWorkbookWriter())
	_, err := broken.PDF(a, "")
	require.Error(t, err)
	assert.Equal(t, errors.CodeExport, errors.GetCode(err))
	book, err := broken.XLSX(a)
	require.NoError(t, err)
	assert.NotEmpty(t, book.Data)

	panics := NewExportService(&captureDocument{}, panickingSheet{})
	_, err = panics.XLSX(a)
	require.Error(t, err)
	assert.Equal(t, errors.CodeExport, errors.GetCode(err))
	_, err = panics.PDF(a, "")
	assert.NoError(t, err)
}

func TestBatchScoring(t *testing.T) {
	svc := NewBatchService(bundledPipeline(t).Scoring())

	risky := credit.DefaultAttributes()
	risky.RevolvingUtilizationPct = 95
	risky.Age = 24
	risky.Late30to59, risky.Late60to89, risky.Late90Plus = 3, 2, 2
	risky.MonthlyIncome = 300000

	invalid := credit.DefaultAttributes()
	invalid.Age = 17

	items := []BatchItem{
		{Line: 2, Attrs: credit.DefaultAttributes()},
		{Line: 3, Attrs: risky},
		{Line: 4, Attrs: invalid},
		{Line: 5, Err: stderrors.New("age: not a number")},
		{Line: 6, Attrs: credit.DefaultAttributes()},
	}

	results, summary, err := svc.Score(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, 3, summary.Scored)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.HighRisk)
	dist := summary.Probabilities
	assert.Equal(t, 3, dist.Count)
	assert.Equal(t, results[0].Result.Probability, dist.Median)
	assert.Equal(t, results[1].Result.Probability, dist.Max)
	assert.InDelta(t, (2*results[0].Result.Probability+results[1].Result.Probability)/3, dist.Mean, 1e-12)
	assert.NotEmpty(t, results[0].Top)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(results[2].Err))

	rows := BatchRows(results, report.French)
	require.Len(t, rows, 5)
	assert.Len(t, rows[0], 10+len(BatchColumns))
	assert.Equal(t, "Acceptation", rows[0][13])
	assert.Equal(t, "Rejet", rows[1][13])
	assert.Equal(t, "age: not a number", rows[3][15])
}

func TestBatchStopsOnCancel(t *testing.T) {
	svc := NewBatchService(bundledPipeline(t).Scoring())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.Score(ctx, []BatchItem{{Line: 2, Attrs: credit.DefaultAttributes()}})
	assert.ErrorIs(t, err, context.Canceled)
}
