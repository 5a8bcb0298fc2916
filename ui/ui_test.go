package ui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"riskscore/adapters/cache"
	"riskscore/adapters/excel"
	"riskscore/adapters/llm"
	"riskscore/adapters/pdf"
	"riskscore/adapters/xgboost"
	"riskscore/app"
	"riskscore/domain/credit"
	"riskscore/domain/report"
	"riskscore/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureDocument struct {
	body string
}

func (c *captureDocument) WriteDocument(w io.Writer, doc report.Document) error {
	c.body = doc.Body
	_, err := w.Write([]byte("%PDF-test"))
	return err
}

func newFixture(t *testing.T, gen ports.TextGenerator, document ports.DocumentExporter) *Server {
	t.Helper()
	model, err := xgboost.Load(filepath.Join("..", "data", "xgb_model.json"), xgboost.Options{FeatureNames: credit.FeatureNames()})
	require.NoError(t, err)
	explainer, err := xgboost.NewTreeExplainer(model)
	require.NoError(t, err)

	scoring := app.NewScoringService(model, explainer,
		cache.NewMemoryStore[credit.Prediction](),
		cache.NewMemoryStore[credit.Attribution](),
	)
	if document == nil {
		document = pdf.NewDocumentWriter()
	}
	s, err := NewServer(os.DirFS(".."), Deps{
		Analysis:        app.NewAnalysisService(scoring),
		Advisory:        app.NewAdvisoryService(gen, app.DefaultAdvisoryConfig()),
		Exports:         app.NewExportService(document, excel.NewWorkbookWriter()),
		DefaultLanguage: "fr",
		SessionCapacity: 16,
	})
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Server, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func post(t *testing.T, s *Server, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", SessionCookie)
	return nil
}

func TestDashboardDefaults(t *testing.T) {
	s := newFixture(t, nil, nil)
	w := get(t, s, "/")

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<html lang="fr">`)
	assert.Contains(t, body, "Probabilité de défaut")
	assert.Contains(t, body, "Acceptation")
	assert.Contains(t, body, "FAIBLE")
	assert.Contains(t, body, "1,500,000 FCFA")
	assert.Contains(t, body, `name="revolving_utilization_pct" value="30.0"`)
	assert.Contains(t, body, "Clé API du modèle de langage manquante")
	assert.NotContains(t, body, `class="debug"`)
	assert.NotNil(t, sessionCookie(t, w))
}

func TestDashboardEnglishAndFallback(t *testing.T) {
	s := newFixture(t, nil, nil)

	en := get(t, s, "/?lang=en")
	require.Equal(t, http.StatusOK, en.Code)
	assert.Contains(t, en.Body.String(), "Probability of Default")
	assert.Contains(t, en.Body.String(), "Approval")

	unknown := get(t, s, "/?lang=de")
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Contains(t, unknown.Body.String(), "Probabilité de défaut")
}

func TestDashboardRejectsInvalidInput(t *testing.T) {
	s := newFixture(t, nil, nil)

	for _, target := range []string{"/?age=17", "/?age=101", "/?age=abc", "/?revolving_utilization_pct=120"} {
		w := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Contains(t, w.Body.String(), `role="alert"`, target)
		assert.NotContains(t, w.Body.String(), `id="probability"`, target)
	}

	for _, target := range []string{"/?age=18", "/?age=100"} {
		assert.Equal(t, http.StatusOK, get(t, s, target).Code, target)
	}
}

func TestDashboardDebugPanel(t *testing.T) {
	s := newFixture(t, nil, nil)
	w := get(t, s, "/?debug=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `class="debug"`)
	assert.Contains(t, w.Body.String(), "predict=1 explain=1")
}

func TestScoreAPI(t *testing.T) {
	s := newFixture(t, nil, nil)
	w := get(t, s, "/api/score?lang=en&revolving_utilization_pct=37.5")
	require.Equal(t, http.StatusOK, w.Code)

	var resp scoreResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, report.English, resp.Language)
	assert.True(t, resp.Probability >= 0 && resp.Probability <= 1)
	assert.Len(t, resp.Factors, credit.NumFeatures)
	assert.Equal(t, 0.375, resp.Features[credit.FeatureRevolvingUtilization])
	assert.Contains(t, resp.Report, "37.5%")

	bad := get(t, s, "/api/score?age=17")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Contains(t, bad.Body.String(), "VALIDATION_ERROR")
}

func TestExports(t *testing.T) {
	s := newFixture(t, nil, nil)

	doc := get(t, s, "/export/pdf?age=40")
	require.Equal(t, http.StatusOK, doc.Code)
	assert.Equal(t, "application/pdf", doc.Header().Get("Content-Type"))
	assert.Contains(t, doc.Header().Get("Content-Disposition"), "rapport_credit_40ans_")
	assert.True(t, strings.HasPrefix(doc.Body.String(), "%PDF"))

	book := get(t, s, "/export/xlsx?age=40&lang=en")
	require.Equal(t, http.StatusOK, book.Code)
	assert.Contains(t, book.Header().Get("Content-Disposition"), "analyse_credit_40ans_")
	assert.True(t, strings.HasPrefix(book.Body.String(), "PK"))

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/export/xlsx?age=17").Code)
}

func defaultsForm(lang string) url.Values {
	v, err := url.ParseQuery(encodeQuery(credit.DefaultAttributes(), report.ParseLanguage(lang)))
	if err != nil {
		panic(err)
	}
	return v
}

func TestAdvisoryFlow(t *testing.T) {
	gen := &llm.MockLLMClient{Response: "1) **PROFIL** stable\n2) RISQUES faibles"}
	document := &captureDocument{}
	s := newFixture(t, gen, document)

	first := get(t, s, "/")
	cookie := sessionCookie(t, first)

	w := post(t, s, "/advisory", defaultsForm("fr"), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>PROFIL</strong>")
	assert.Equal(t, 1, gen.Calls)
	assert.Contains(t, gen.Last.Prompt, "35")

	again := get(t, s, "/", cookie)
	assert.Contains(t, again.Body.String(), `id="advice"`)

	exp := get(t, s, "/export/pdf", cookie)
	require.Equal(t, http.StatusOK, exp.Code)
	assert.Equal(t, gen.Response, document.body)

	// new inputs invalidate the recommendation
	changed := get(t, s, "/?age=50", cookie)
	assert.NotContains(t, changed.Body.String(), `id="advice"`)
	get(t, s, "/export/pdf?age=50", cookie)
	assert.Contains(t, document.body, "FAIBLE")

	// another browser never sees it
	other := get(t, s, "/")
	assert.NotContains(t, other.Body.String(), `id="advice"`)
}

func TestAdvisoryWithoutKey(t *testing.T) {
	s := newFixture(t, nil, nil)
	w := post(t, s, "/advisory", defaultsForm("en"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Missing language model API key")
	assert.Contains(t, w.Body.String(), `id="report"`)
}

func TestAdvisoryFailureKeepsReport(t *testing.T) {
	gen := &llm.MockLLMClient{Error: &llm.GenerationError{Provider: "mock", Kind: llm.KindRateLimit, Status: 429}}
	s := newFixture(t, gen, nil)

	w := post(t, s, "/advisory", defaultsForm("fr"))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `id="advisory-error"`)
	assert.Contains(t, body, "Erreur API du modèle de langage")
	assert.Contains(t, body, "FAIBLE")
	assert.NotContains(t, body, `id="advice"`)

	assert.Equal(t, http.StatusOK, get(t, s, "/export/xlsx").Code)
}

func TestMalformedSessionCookieIsReplaced(t *testing.T) {
	s := newFixture(t, nil, nil)
	w := get(t, s, "/", &http.Cookie{Name: SessionCookie, Value: "not-a-uuid"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, "not-a-uuid", sessionCookie(t, w).Value)
}

func TestRenderMarkdownDropsHTML(t *testing.T) {
	out := string(renderMarkdown("<script>alert(1)</script>\n\n**ok**"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, "<strong>ok</strong>")
}

func TestRenderMarkdownNeutralizesUnsafeLinks(t *testing.T) {
	out := string(renderMarkdown("[clic](javascript:alert(document.cookie))"))
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "href")
	assert.Contains(t, out, "clic")

	out = string(renderMarkdown("[doc](https://example.com/guide)"))
	assert.Contains(t, out, `href="https://example.com/guide"`)
	assert.Contains(t, out, "nofollow")
	assert.Contains(t, out, "noreferrer")
}

func TestChartBars(t *testing.T) {
	a := &app.Analysis{
		Language: report.English,
		Ranked: credit.Rank([]credit.AttributionEntry{
			{Feature: credit.FeatureAge, Contribution: 0.5, Value: 35},
			{Feature: credit.FeatureDebtRatio, Contribution: -0.25, Value: 0.5},
		}),
	}
	bars := chart(a)
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Width)
	assert.Equal(t, 50.0, bars[1].Width)
	assert.True(t, bars[0].Increases)
	assert.False(t, bars[1].Increases)
	assert.Equal(t, "-0.250", bars[1].Value)
}

func TestOpsApp(t *testing.T) {
	s := newFixture(t, nil, nil)
	scoring := s.analysis.Scoring()
	_, err := scoring.Predict(context.Background(), credit.DefaultAttributes())
	require.NoError(t, err)

	ops := NewOpsApp(scoring, true).Handler()

	w := httptest.NewRecorder()
	ops.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status string        `json:"status"`
		Memo   app.CacheStats `json:"memo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.Memo.Predictions)

	w = httptest.NewRecorder()
	ops.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "riskscore_memo_lookups_total")

	w = httptest.NewRecorder()
	ops.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	NewOpsApp(scoring, false).Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
