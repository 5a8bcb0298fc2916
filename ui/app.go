package ui

import (
	"encoding/json"
	"net/http"

	"riskscore/app"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsApp is the operator listener: health, Prometheus metrics and pprof.
// It runs on its own port so the dashboard never exposes them.
type OpsApp struct {
	router  *chi.Mux
	scoring *app.ScoringService
	pprof   bool
}

// NewOpsApp creates the ops router. pprof mounts /debug/pprof.
func NewOpsApp(scoring *app.ScoringService, pprof bool) *OpsApp {
	a := &OpsApp{
		router:  chi.NewRouter(),
		scoring: scoring,
		pprof:   pprof,
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *OpsApp) setupMiddleware() {
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the ops routes
func (a *OpsApp) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	a.router.Handle("/metrics", promhttp.Handler())
	if a.pprof {
		a.router.Mount("/debug", middleware.Profiler())
	}
}

// Handler returns the ops router
func (a *OpsApp) Handler() http.Handler {
	return a.router
}

func (a *OpsApp) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if a.scoring != nil {
		body["memo"] = a.scoring.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}
