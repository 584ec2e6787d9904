// Package store persists explanation runs and their interaction values.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// DB is the persistence interface for explanation runs.
type DB interface {
	Close() error
	Migrate() error
	SaveRun(run *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(query RunsQuery) (*RunsList, error)
	SaveValues(runID string, values []Value) error
	GetValues(runID string, order int) ([]Value, error)
}

// RunsQuery represents query parameters for listing runs.
type RunsQuery struct {
	Index   string `json:"index,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RunsList represents a paginated runs response.
type RunsList struct {
	Runs       []Run `json:"runs"`
	TotalCount int   `json:"totalCount"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	TotalPages int   `json:"totalPages"`
}

// Run is one completed explanation.
type Run struct {
	ID            string    `json:"id"`
	Input         string    `json:"input"`
	NPlayers      int       `json:"n_players"`
	Index         string    `json:"index"`
	MaxOrder      int       `json:"max_order"`
	Estimator     string    `json:"estimator"`
	Budget        int       `json:"budget"`
	BudgetUsed    int       `json:"budget_used"`
	Estimated     bool      `json:"estimated"`
	Baseline      float64   `json:"baseline_value"`
	FullValue     float64   `json:"full_value"`
	EngineVersion string    `json:"engine_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// Value is one interaction value of a run, keyed by its canonical subset
// key ("1,4,7").
type Value struct {
	RunID     string  `json:"run_id"`
	SubsetKey string  `json:"subset"`
	Order     int     `json:"order"`
	Value     float64 `json:"value"`
}
