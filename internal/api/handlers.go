package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tokenshap/tokenshap-go/internal/approx"
	"github.com/tokenshap/tokenshap-go/internal/game"
	"github.com/tokenshap/tokenshap-go/internal/store"
	"github.com/tokenshap/tokenshap-go/internal/tokens"
)

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeEngineError(w, r, http.StatusBadRequest, ErrTypeValidation, "invalid JSON body", nil)
		return
	}
	if req.Text == "" {
		s.writeEngineError(w, r, http.StatusBadRequest, ErrTypeValidation, "text is required", map[string]any{"field": "text"})
		return
	}

	areq := approx.Request{
		Index:     s.defaults.Index,
		MaxOrder:  s.defaults.MaxOrder,
		Budget:    s.defaults.Budget,
		Estimator: s.defaults.Estimator,
		Seed:      req.Seed,
	}
	if req.Index != "" {
		areq.Index = approx.Index(req.Index)
	}
	if req.MaxOrder > 0 {
		areq.MaxOrder = req.MaxOrder
	}
	if req.Budget > 0 {
		areq.Budget = req.Budget
	}
	if req.Estimator != "" {
		areq.Estimator = approx.Estimator(req.Estimator)
	}

	run, err := s.explainer.Explain(r.Context(), req.Text, areq)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	values := make(map[string]float64, run.Values.Len())
	for _, subset := range run.Values.Subsets() {
		v, _ := run.Values.Get(subset...)
		values[game.SubsetKey(subset)] = v
	}

	s.writeJSON(w, http.StatusOK, ExplainResponse{
		RunID:      run.ID,
		Tokens:     run.Tokens,
		NPlayers:   run.Values.NPlayers(),
		Index:      string(run.Values.Index()),
		MaxOrder:   run.Values.MaxOrder(),
		MinOrder:   run.Values.MinOrder(),
		Estimated:  run.Values.Estimated(),
		Budget:     areq.Budget,
		BudgetUsed: run.Values.BudgetUsed(),
		Baseline:   run.Baseline,
		FullValue:  run.FullValue,
		Values:     values,
		DurationMs: run.Duration.Milliseconds(),
		Echo:       req,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeEngineError(w, r, http.StatusNotFound, ErrTypeNotFound, "run storage is not enabled", nil)
		return
	}

	q := store.RunsQuery{Index: r.URL.Query().Get("index")}
	q.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	q.PerPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))

	list, err := s.db.ListRuns(q)
	if err != nil {
		s.writeEngineError(w, r, http.StatusInternalServerError, ErrTypeInternal, err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeEngineError(w, r, http.StatusNotFound, ErrTypeNotFound, "run storage is not enabled", nil)
		return
	}

	run, err := s.db.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleGetValues(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.writeEngineError(w, r, http.StatusNotFound, ErrTypeNotFound, "run storage is not enabled", nil)
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.db.GetRun(id); err != nil {
		s.handleError(w, r, err)
		return
	}

	order, _ := strconv.Atoi(r.URL.Query().Get("order"))
	values, err := s.db.GetValues(id, order)
	if err != nil {
		s.writeEngineError(w, r, http.StatusInternalServerError, ErrTypeInternal, err.Error(), nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "values": values})
}

func (s *Server) handleListTokenizers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tokenizers": tokens.List()})
}
