package ui

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"html/template"
	"log"
	"net/http"

	"riskscore/app"
	"riskscore/domain/credit"
	"riskscore/domain/report"
	"riskscore/internal/errors"
	"riskscore/ui/middleware"

	"github.com/gin-gonic/gin"
)

// attributesForm binds the ten dashboard controls. Absent parameters keep
// the value they were initialized with.
type attributesForm struct {
	Age                     int     `form:"age"`
	MonthlyIncome           int64   `form:"monthly_income"`
	Dependents              int     `form:"dependents"`
	OpenCreditLines         int     `form:"open_credit_lines"`
	RealEstateLoans         int     `form:"real_estate_loans"`
	DebtRatio               float64 `form:"debt_ratio"`
	RevolvingUtilizationPct float64 `form:"revolving_utilization_pct"`
	Late30to59              int     `form:"late_30_59"`
	Late60to89              int     `form:"late_60_89"`
	Late90Plus              int     `form:"late_90_plus"`
	Lang                    string  `form:"lang"`
	Debug                   bool    `form:"debug"`
}

func defaultForm() attributesForm {
	d := credit.DefaultAttributes()
	return attributesForm{
		Age:                     d.Age,
		MonthlyIncome:           d.MonthlyIncome,
		Dependents:              d.Dependents,
		OpenCreditLines:         d.OpenCreditLines,
		RealEstateLoans:         d.RealEstateLoans,
		DebtRatio:               d.DebtRatio,
		RevolvingUtilizationPct: d.RevolvingUtilizationPct,
	}
}

func (f attributesForm) attributes() credit.ClientAttributes {
	return credit.ClientAttributes{
		Age:                     f.Age,
		MonthlyIncome:           f.MonthlyIncome,
		Dependents:              f.Dependents,
		OpenCreditLines:         f.OpenCreditLines,
		RealEstateLoans:         f.RealEstateLoans,
		DebtRatio:               f.DebtRatio,
		RevolvingUtilizationPct: f.RevolvingUtilizationPct,
		Late30to59:              f.Late30to59,
		Late60to89:              f.Late60to89,
		Late90Plus:              f.Late90Plus,
	}
}

// bindRequest decodes query (GET) or form (POST) parameters on top of the
// default profile. The language comes from the request, else the server
// default.
func (s *Server) bindRequest(c *gin.Context) (attributesForm, credit.ClientAttributes, report.Language, error) {
	form := defaultForm()
	form.Lang = string(s.defaultLang)
	if err := c.ShouldBind(&form); err != nil {
		return form, form.attributes(), report.ParseLanguage(form.Lang), errors.InvalidInput(err.Error())
	}
	attrs := form.attributes()
	lang := report.ParseLanguage(form.Lang)
	if err := attrs.Validate(); err != nil {
		return form, attrs, lang, err
	}
	return form, attrs, lang, nil
}

func (s *Server) baseView(attrs credit.ClientAttributes, lang report.Language) dashboardView {
	cat := report.CatalogFor(lang)
	return dashboardView{
		Lang:            lang,
		Languages:       languageOptions(attrs, lang),
		UI:              cat.UI,
		Fields:          fields(attrs, cat.Labels),
		Query:           template.URL(encodeQuery(attrs, lang)),
		AdvisoryEnabled: s.advisory.Enabled(),
	}
}

func (s *Server) withAnalysis(view *dashboardView, a *app.Analysis) {
	cat := report.CatalogFor(a.Language)
	high := a.Result.PredictedClass.IsHigh()
	view.Analysis = a
	view.High = high
	view.Badge = cat.Badge(high)
	view.Decision = cat.Decision(high)
	view.Chart = chart(a)
}

func (s *Server) withDebug(view *dashboardView, a *app.Analysis) {
	d := &debugView{
		Probability: fmt.Sprintf("%.3f", a.Result.Probability),
		Class:       int(a.Result.PredictedClass),
		Stats:       s.analysis.Scoring().Stats(),
		Sessions:    s.sessions.Len(),
	}
	if top := a.Top(1); len(top) > 0 {
		d.TopFactor = top[0].Feature
		d.TopImpact = fmt.Sprintf("%.3f", top[0].Contribution)
	}
	view.Debug = d
}

// handleDashboard renders the full page for the requested attributes
func (s *Server) handleDashboard(c *gin.Context) {
	session := middleware.SessionID(c)
	form, attrs, lang, err := s.bindRequest(c)
	view := s.baseView(attrs, lang)
	if err != nil {
		view.Error = err.Error()
		s.renderTemplate(c, errors.HTTPStatus(err), "dashboard.html", view)
		return
	}

	a, err := s.analysis.Analyze(c.Request.Context(), attrs, lang)
	if err != nil {
		log.Printf("[Dashboard] analysis failed: %v", err)
		view.Error = err.Error()
		s.renderTemplate(c, errors.HTTPStatus(err), "dashboard.html", view)
		return
	}
	s.withAnalysis(&view, a)
	if advice, ok := s.sessions.Advice(session, attrs.CacheKey()); ok {
		view.Advice = &advice
	}
	if form.Debug {
		s.withDebug(&view, a)
	}
	s.renderTemplate(c, http.StatusOK, "dashboard.html", view)
}

// handleAdvisory generates a recommendation for the posted attributes and
// re-renders the page. A failure only affects the advisory panel.
func (s *Server) handleAdvisory(c *gin.Context) {
	session := middleware.SessionID(c)
	_, attrs, lang, err := s.bindRequest(c)
	view := s.baseView(attrs, lang)
	if err != nil {
		view.Error = err.Error()
		s.renderTemplate(c, errors.HTTPStatus(err), "dashboard.html", view)
		return
	}

	a, err := s.analysis.Analyze(c.Request.Context(), attrs, lang)
	if err != nil {
		view.Error = err.Error()
		s.renderTemplate(c, errors.HTTPStatus(err), "dashboard.html", view)
		return
	}
	s.withAnalysis(&view, a)

	cat := report.CatalogFor(lang)
	text, err := s.advisory.Generate(c.Request.Context(), attrs, a.Result, lang)
	switch {
	case stderrors.Is(err, app.ErrAdvisoryUnavailable):
		view.AdvisoryError = cat.UI.MissingAPIKey
	case err != nil:
		view.AdvisoryError = fmt.Sprintf("%s: %v", cat.UI.AIError, err)
	default:
		advice := Advice{Key: attrs.CacheKey(), Language: lang, Text: text, CreatedAt: a.CreatedAt}
		s.sessions.SetAdvice(session, advice)
		view.Advice = &advice
	}
	s.renderTemplate(c, http.StatusOK, "dashboard.html", view)
}

func (s *Server) handleExportPDF(c *gin.Context) {
	s.export(c, app.FormatPDF)
}

func (s *Server) handleExportXLSX(c *gin.Context) {
	s.export(c, app.FormatXLSX)
}

func (s *Server) export(c *gin.Context, format string) {
	session := middleware.SessionID(c)
	_, attrs, lang, err := s.bindRequest(c)
	if err != nil {
		c.String(errors.HTTPStatus(err), err.Error())
		return
	}
	a, err := s.analysis.Analyze(c.Request.Context(), attrs, lang)
	if err != nil {
		c.String(errors.HTTPStatus(err), err.Error())
		return
	}

	var art *app.Artifact
	if format == app.FormatPDF {
		advice, _ := s.sessions.Advice(session, attrs.CacheKey())
		art, err = s.exports.PDF(a, advice.Text)
	} else {
		art, err = s.exports.XLSX(a)
	}
	if err != nil {
		c.String(errors.HTTPStatus(err), "%s %s: %v", report.CatalogFor(lang).UI.ExportError, format, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// scoreResponse is the JSON shape of /api/score
type scoreResponse struct {
	ID             string                    `json:"id"`
	Language       report.Language           `json:"language"`
	Probability    float64                   `json:"probability"`
	PredictedClass int                       `json:"predicted_class"`
	Risk           string                    `json:"risk"`
	Decision       string                    `json:"decision"`
	ExpectedValue  float64                   `json:"expected_value"`
	Factors        []credit.AttributionEntry `json:"factors"`
	Features       map[string]float64        `json:"features"`
	Report         string                    `json:"report"`
	HealthScore    float64                   `json:"health_score"`
	HealthBand     report.HealthBand         `json:"health_band"`
}

func (s *Server) handleScoreAPI(c *gin.Context) {
	_, attrs, lang, err := s.bindRequest(c)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error(), "code": errors.GetCode(err)})
		return
	}
	a, err := s.analysis.Analyze(c.Request.Context(), attrs, lang)
	if err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"error": err.Error(), "code": errors.GetCode(err)})
		return
	}

	cat := report.CatalogFor(lang)
	high := a.Result.PredictedClass.IsHigh()
	c.JSON(http.StatusOK, scoreResponse{
		ID:             a.ID,
		Language:       lang,
		Probability:    a.Result.Probability,
		PredictedClass: int(a.Result.PredictedClass),
		Risk:           cat.RiskLabel(high),
		Decision:       cat.Decision(high),
		ExpectedValue:  a.ExpectedValue,
		Factors:        a.Ranked,
		Features:       a.Record.Map(),
		Report:         a.Report,
		HealthScore:    a.Health.Score,
		HealthBand:     a.Health.Band,
	})
}

// renderTemplate renders to a buffer first so a template error never
// leaves a half-written page.
func (s *Server) renderTemplate(c *gin.Context, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("[Template] %s failed: %v", name, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "template rendering failed"})
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}
