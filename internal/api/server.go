// Package api exposes the HTTP interface for the search-and-fetch service.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"searchfetch/internal/app"
	"searchfetch/internal/config"
	"searchfetch/internal/search"
	"searchfetch/internal/telemetry"
)

// Server wires HTTP handlers to the application operations.
type Server struct {
	router chi.Router
	app    *app.App
	cfg    config.Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(application *app.App, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		app:    application,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(telemetry.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/search", s.search)
		r.Post("/search/advanced", s.advancedSearch)
		r.Get("/search/summary", s.summary)
		r.Get("/fetch", s.fetch)
		r.Get("/search-and-fetch", s.searchAndFetch)
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", s.cacheStats)
			r.Post("/clear", s.cacheClear)
		})
		r.Get("/preferences", s.getPreferences)
		r.Put("/preferences", s.putPreferences)
		r.Get("/system", s.system)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// In-memory dependencies are always ready.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	req := app.SearchRequest{
		Query:      r.URL.Query().Get("q"),
		Limit:      intParam(r, "limit"),
		Region:     r.URL.Query().Get("region"),
		SafeSearch: boolParam(r, "safe_search"),
	}
	resp, err := s.app.Search(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, resp)
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	req := app.FetchRequest{
		URL:       r.URL.Query().Get("url"),
		Format:    r.URL.Query().Get("format"),
		MaxLength: intParam(r, "max_length"),
	}
	resp, err := s.app.Fetch(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, resp)
}

func (s *Server) searchAndFetch(w http.ResponseWriter, r *http.Request) {
	req := app.SearchAndFetchRequest{
		Query:  r.URL.Query().Get("q"),
		Limit:  intParam(r, "limit"),
		Format: r.URL.Query().Get("format"),
		Region: r.URL.Query().Get("region"),
	}
	resp, err := s.app.SearchAndFetch(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, resp)
}

func (s *Server) advancedSearch(w http.ResponseWriter, r *http.Request) {
	var req app.AdvancedSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", string(search.ErrInvalidInput))
		return
	}
	resp, err := s.app.AdvancedSearch(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, resp)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.app.Summarize(r.Context(), r.URL.Query().Get("q"), intParam(r, "limit"), r.URL.Query().Get("region"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, resp)
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, s.app.CacheStats())
}

func (s *Server) cacheClear(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, s.app.ClearCache())
}

func (s *Server) getPreferences(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, s.app.Preferences())
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var update app.PreferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON", string(search.ErrInvalidInput))
		return
	}
	prefs, err := s.app.SetPreferences(update)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeSuccess(w, prefs)
}

func (s *Server) system(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, s.app.SystemInfo())
}

func intParam(r *http.Request, name string) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func boolParam(r *http.Request, name string) *bool {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}
