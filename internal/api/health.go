package api

import (
	"net/http"
	"time"

	"github.com/tokenshap/tokenshap-go/internal/explain"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"engine_version": explain.EngineVersion,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"storage":        s.db != nil,
	})
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	// Ready once the explainer exists; storage is optional.
	if s.explainer == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"engine_version": explain.EngineVersion})
}
