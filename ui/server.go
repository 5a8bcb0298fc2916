package ui

import (
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"

	"riskscore/app"
	"riskscore/domain/report"
	"riskscore/ui/middleware"

	"github.com/gin-gonic/gin"
)

// Deps are the services the dashboard renders
type Deps struct {
	Analysis        *app.AnalysisService
	Advisory        *app.AdvisoryService
	Exports         *app.ExportService
	DefaultLanguage string
	SessionCapacity int
}

// Server represents the web server for the scoring dashboard
type Server struct {
	router      *gin.Engine
	templates   *template.Template
	files       fs.FS
	analysis    *app.AnalysisService
	advisory    *app.AdvisoryService
	exports     *app.ExportService
	sessions    *SessionStore
	defaultLang report.Language
}

// NewServer parses the templates under ui/templates in files and registers
// every route. files is rooted at the repository root.
func NewServer(files fs.FS, deps Deps) (*Server, error) {
	if deps.Analysis == nil || deps.Exports == nil {
		return nil, fmt.Errorf("analysis and export services are required")
	}
	capacity := deps.SessionCapacity
	if capacity <= 0 {
		capacity = 1024
	}
	sessions, err := NewSessionStore(capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	s := &Server{
		router:      gin.Default(),
		files:       files,
		analysis:    deps.Analysis,
		advisory:    deps.Advisory,
		exports:     deps.Exports,
		sessions:    sessions,
		defaultLang: report.ParseLanguage(deps.DefaultLanguage),
	}

	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) parseTemplates() error {
	templatesFS, err := fs.Sub(s.files, "ui/templates")
	if err != nil {
		return fmt.Errorf("failed to create templates filesystem: %w", err)
	}

	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.templates = tmpl
	log.Printf("[TemplateInit] parsed %d templates", len(tmpl.Templates()))
	return nil
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	staticFS, err := fs.Sub(s.files, "ui/static")
	if err != nil {
		log.Printf("[Static] static files unavailable: %v", err)
		return
	}
	s.router.StaticFS("/static", http.FS(staticFS))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	pages := s.router.Group("/", middleware.EnsureSession(SessionCookie, sessionMaxAge))
	pages.GET("/", s.handleDashboard)
	pages.POST("/advisory", s.handleAdvisory)
	pages.GET("/export/pdf", s.handleExportPDF)
	pages.GET("/export/xlsx", s.handleExportXLSX)
	s.router.GET("/api/score", s.handleScoreAPI)
}

// Handler exposes the router to an http.Server
func (s *Server) Handler() http.Handler {
	return s.router
}
