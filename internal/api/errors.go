package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tokenshap/tokenshap-go/internal/approx"
	"github.com/tokenshap/tokenshap-go/internal/game"
	"github.com/tokenshap/tokenshap-go/internal/store"
	"github.com/tokenshap/tokenshap-go/internal/tokens"
)

// classify maps the error taxonomy of the core packages onto HTTP status
// codes and wire error types. Scorer failures surface as 502: the engine
// never swallows or retries them, the adapter already did any retrying it
// wanted to.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, approx.ErrConfig):
		return http.StatusBadRequest, ErrTypeConfig
	case errors.Is(err, approx.ErrBudget):
		return http.StatusBadRequest, ErrTypeBudget
	case errors.Is(err, game.ErrShape), errors.Is(err, game.ErrNoPlayers), errors.Is(err, tokens.ErrEmptyInput):
		return http.StatusBadRequest, ErrTypeShape
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, game.ErrScorerBatch):
		return http.StatusBadGateway, ErrTypeScorer
	default:
		return http.StatusBadGateway, ErrTypeScorer
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := classify(err)
	s.writeEngineError(w, r, status, errType, err.Error(), nil)
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, status int, errType, message string, context map[string]any) {
	requestID := middleware.GetReqID(r.Context())

	s.log.Warn("request failed",
		zap.String("type", errType),
		zap.Int("status", status),
		zap.String("request_id", requestID),
		zap.String("path", r.URL.Path),
		zap.String("message", message),
	)

	w.Header().Set("X-Error-Type", errType)
	s.writeJSON(w, status, EngineError{
		Type:      errType,
		Message:   message,
		Context:   context,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// recovery converts handler panics into structured 500 responses.
func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				requestID := middleware.GetReqID(r.Context())
				s.log.Error("panic recovered",
					zap.Any("panic", rvr),
					zap.String("request_id", requestID),
					zap.String("path", r.URL.Path),
				)
				s.writeEngineError(w, r, http.StatusInternalServerError, ErrTypeInternal, "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
