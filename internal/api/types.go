package api

// Error type identifiers returned in the X-Error-Type header and the
// error body.
const (
	ErrTypeValidation = "validation_error"
	ErrTypeConfig     = "configuration_error"
	ErrTypeBudget     = "budget_error"
	ErrTypeShape      = "shape_error"
	ErrTypeScorer     = "scorer_error"
	ErrTypeNotFound   = "not_found"
	ErrTypeInternal   = "internal_error"
)

// EngineError is the structured error body of every non-2xx response.
type EngineError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// ExplainRequest is the body of POST /api/v1/explain.
type ExplainRequest struct {
	Text      string `json:"text"`
	Index     string `json:"index,omitempty"`
	MaxOrder  int    `json:"max_order,omitempty"`
	Budget    int    `json:"budget,omitempty"`
	Estimator string `json:"estimator,omitempty"`
	Seed      int64  `json:"seed,omitempty"`
}

// ExplainResponse echoes the request and carries the run record with its
// interaction values.
type ExplainResponse struct {
	RunID      string             `json:"run_id"`
	Tokens     []string           `json:"tokens"`
	NPlayers   int                `json:"n_players"`
	Index      string             `json:"index"`
	MaxOrder   int                `json:"max_order"`
	MinOrder   int                `json:"min_order"`
	Estimated  bool               `json:"estimated"`
	Budget     int                `json:"budget"`
	BudgetUsed int                `json:"budget_used"`
	Baseline   float64            `json:"baseline_value"`
	FullValue  float64            `json:"full_value"`
	Values     map[string]float64 `json:"values"`
	DurationMs int64              `json:"duration_ms"`
	Echo       ExplainRequest     `json:"echo"`
}
