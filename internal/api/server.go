// Package api exposes the explainer over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tokenshap/tokenshap-go/internal/approx"
	"github.com/tokenshap/tokenshap-go/internal/explain"
	"github.com/tokenshap/tokenshap-go/internal/store"
)

// Defaults applied to explain requests that leave fields empty.
type Defaults struct {
	Index     approx.Index
	MaxOrder  int
	Budget    int
	Estimator approx.Estimator
}

// Server handles HTTP requests.
type Server struct {
	db        store.DB
	explainer *explain.Explainer
	defaults  Defaults
	log       *zap.Logger
	startTime time.Time
}

// NewServer creates a new API server. The db may be nil; run endpoints
// then answer 404.
func NewServer(db store.DB, explainer *explain.Explainer, defaults Defaults, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		db:        db,
		explainer: explainer,
		defaults:  defaults,
		log:       log,
		startTime: time.Now(),
	}
}

// Routes sets up the HTTP routes with proper middleware.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.recovery)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/explain", s.handleExplain)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/values", s.handleGetValues)
		r.Get("/tokenizers", s.handleListTokenizers)
	})

	return r
}

// writeJSON writes a JSON response with proper headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", explain.EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
