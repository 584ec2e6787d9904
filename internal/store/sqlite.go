package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteDB implements the DB interface using SQLite.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection.
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations.
func (s *SQLiteDB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			input TEXT NOT NULL,
			n_players INTEGER NOT NULL,
			idx TEXT NOT NULL,
			max_order INTEGER NOT NULL,
			estimator TEXT NOT NULL DEFAULT '',
			budget INTEGER NOT NULL,
			budget_used INTEGER NOT NULL,
			estimated INTEGER NOT NULL DEFAULT 0,
			baseline_value REAL NOT NULL,
			full_value REAL NOT NULL,
			engine_version TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS interaction_values (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			subset_key TEXT NOT NULL,
			subset_order INTEGER NOT NULL,
			value REAL NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_values_run_id ON interaction_values(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_values_run_order ON interaction_values(run_id, subset_order)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_idx ON runs(idx)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveRun saves an explanation run to the database.
func (s *SQLiteDB) SaveRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	query := `INSERT INTO runs (
		id, input, n_players, idx, max_order, estimator, budget, budget_used,
		estimated, baseline_value, full_value, engine_version
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	estimatedInt := 0
	if run.Estimated {
		estimatedInt = 1
	}

	_, err := s.db.Exec(query,
		run.ID, run.Input, run.NPlayers, run.Index, run.MaxOrder, run.Estimator,
		run.Budget, run.BudgetUsed, estimatedInt, run.Baseline, run.FullValue,
		run.EngineVersion,
	)
	return err
}

// GetRun retrieves a run by ID.
func (s *SQLiteDB) GetRun(id string) (*Run, error) {
	query := `SELECT
		id, input, n_players, idx, max_order, estimator, budget, budget_used,
		estimated, baseline_value, full_value, engine_version, created_at
		FROM runs WHERE id = ?`

	var run Run
	var estimatedInt int
	err := s.db.QueryRow(query, id).Scan(
		&run.ID, &run.Input, &run.NPlayers, &run.Index, &run.MaxOrder,
		&run.Estimator, &run.Budget, &run.BudgetUsed, &estimatedInt,
		&run.Baseline, &run.FullValue, &run.EngineVersion, &run.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Estimated = estimatedInt != 0
	return &run, nil
}

// ListRuns returns a paginated list of runs, newest first.
func (s *SQLiteDB) ListRuns(q RunsQuery) (*RunsList, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > 200 {
		q.PerPage = 25
	}

	where := ""
	args := []any{}
	if q.Index != "" {
		where = " WHERE idx = ?"
		args = append(args, q.Index)
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM runs"+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := `SELECT
		id, input, n_players, idx, max_order, estimator, budget, budget_used,
		estimated, baseline_value, full_value, engine_version, created_at
		FROM runs` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, q.PerPage, (q.Page-1)*q.PerPage)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var run Run
		var estimatedInt int
		if err := rows.Scan(
			&run.ID, &run.Input, &run.NPlayers, &run.Index, &run.MaxOrder,
			&run.Estimator, &run.Budget, &run.BudgetUsed, &estimatedInt,
			&run.Baseline, &run.FullValue, &run.EngineVersion, &run.CreatedAt,
		); err != nil {
			return nil, err
		}
		run.Estimated = estimatedInt != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	totalPages := (total + q.PerPage - 1) / q.PerPage
	return &RunsList{
		Runs:       runs,
		TotalCount: total,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: totalPages,
	}, nil
}

// SaveValues saves all interaction values of a run in one transaction.
func (s *SQLiteDB) SaveValues(runID string, values []Value) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO interaction_values (run_id, subset_key, subset_order, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range values {
		if _, err := stmt.Exec(runID, v.SubsetKey, v.Order, v.Value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetValues returns the interaction values of a run. With order > 0 only
// that subset size is returned.
func (s *SQLiteDB) GetValues(runID string, order int) ([]Value, error) {
	query := "SELECT run_id, subset_key, subset_order, value FROM interaction_values WHERE run_id = ?"
	args := []any{runID}
	if order > 0 {
		query += " AND subset_order = ?"
		args = append(args, order)
	}
	query += " ORDER BY subset_order, subset_key"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []Value{}
	for rows.Next() {
		var v Value
		if err := rows.Scan(&v.RunID, &v.SubsetKey, &v.Order, &v.Value); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
