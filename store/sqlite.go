package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is a SQLite-backed Repository, grounded on the teacher's
// SQLiteStore (graph/store/sqlite.go): single-writer WAL mode, busy
// timeout, auto-migration on open. Schema is the three-table layout of
// spec.md §6 (graphs, runs, execution_logs) rather than the teacher's
// checkpoint/outbox/idempotency tables, none of which this core's
// sequential, non-replayable engine produces.
type SQLite struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewSQLite opens (creating if needed) a SQLite database at path and
// ensures its schema exists. Use ":memory:" for an ephemeral database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	s := &SQLite{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SQLite) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graphs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT,
			definition TEXT NOT NULL,
			entry_point TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_graphs_name_active ON graphs(name) WHERE is_active = 1`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			graph_id INTEGER NOT NULL REFERENCES graphs(id),
			status TEXT NOT NULL,
			initial_state TEXT NOT NULL,
			current_state TEXT,
			final_state TEXT,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			total_iterations INTEGER,
			total_execution_time_ms INTEGER,
			error_message TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status_created ON runs(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_graph_status ON runs(graph_id, status)`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
			node_name TEXT NOT NULL,
			status TEXT NOT NULL,
			iteration INTEGER NOT NULL,
			execution_time_ms INTEGER,
			timestamp TIMESTAMP NOT NULL,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_run_timestamp ON execution_logs(run_id, timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateGraph implements GraphRepository.
func (s *SQLite) CreateGraph(ctx context.Context, rec GraphRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM graphs WHERE name = ? AND is_active = 1`, rec.Name).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check duplicate name: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicateName
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO graphs (name, description, definition, entry_point, version, is_active)
		 VALUES (?, ?, ?, ?, 1, 1)`,
		rec.Name, rec.Description, rec.Definition, rec.EntryPoint)
	if err != nil {
		return 0, fmt.Errorf("insert graph: %w", err)
	}
	return res.LastInsertId()
}

// GetGraphByID implements GraphRepository.
func (s *SQLite) GetGraphByID(ctx context.Context, id int64) (GraphRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, entry_point, version, is_active, created_at, updated_at
		 FROM graphs WHERE id = ?`, id)
	return scanGraph(row)
}

// GetGraphByName implements GraphRepository.
func (s *SQLite) GetGraphByName(ctx context.Context, name string) (GraphRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, entry_point, version, is_active, created_at, updated_at
		 FROM graphs WHERE name = ? AND is_active = 1`, name)
	return scanGraph(row)
}

func scanGraph(row *sql.Row) (GraphRecord, error) {
	var g GraphRecord
	var active int
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Definition, &g.EntryPoint, &g.Version, &active, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return GraphRecord{}, ErrNotFound
	}
	if err != nil {
		return GraphRecord{}, fmt.Errorf("scan graph: %w", err)
	}
	g.IsActive = active != 0
	return g, nil
}

// ListGraphs implements GraphRepository.
func (s *SQLite) ListGraphs(ctx context.Context, skip, limit int, activeOnly bool) ([]GraphRecord, error) {
	query := `SELECT id, name, description, definition, entry_point, version, is_active, created_at, updated_at FROM graphs`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	var out []GraphRecord
	for rows.Next() {
		var g GraphRecord
		var active int
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Definition, &g.EntryPoint, &g.Version, &active, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan graph row: %w", err)
		}
		g.IsActive = active != 0
		out = append(out, g)
	}
	return out, rows.Err()
}

// SoftDeleteGraph implements GraphRepository.
func (s *SQLite) SoftDeleteGraph(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE graphs SET is_active = 0, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("soft delete graph: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRun implements RunRepository.
func (s *SQLite) CreateRun(ctx context.Context, graphID int64, initialState []byte) (RunRecord, error) {
	runID := newRunID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, graph_id, status, initial_state) VALUES (?, ?, ?, ?)`,
		runID, graphID, RunPending, initialState)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRunByRunID(ctx, runID)
}

// GetRunByRunID implements RunRepository.
func (s *SQLite) GetRunByRunID(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, run_id, graph_id, status, initial_state, current_state, final_state,
		        started_at, completed_at, total_iterations, total_execution_time_ms, error_message
		 FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

func scanRun(row *sql.Row) (RunRecord, error) {
	var r RunRecord
	var status string
	err := row.Scan(&r.ID, &r.RunID, &r.GraphID, &status, &r.InitialState, &r.CurrentState, &r.FinalState,
		&r.StartedAt, &r.CompletedAt, &r.TotalIterations, &r.TotalExecutionTimeMS, &r.ErrorMessage)
	if err == sql.ErrNoRows {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	r.Status = RunStatus(status)
	return r, nil
}

// ListRuns implements RunRepository.
func (s *SQLite) ListRuns(ctx context.Context, graphID *int64, status *RunStatus, skip, limit int) ([]RunRecord, error) {
	query := `SELECT id, run_id, graph_id, status, initial_state, current_state, final_state,
	                  started_at, completed_at, total_iterations, total_execution_time_ms, error_message
	           FROM runs WHERE 1=1`
	var args []any
	if graphID != nil {
		query += ` AND graph_id = ?`
		args = append(args, *graphID)
	}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, skip)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var st string
		if err := rows.Scan(&r.ID, &r.RunID, &r.GraphID, &st, &r.InitialState, &r.CurrentState, &r.FinalState,
			&r.StartedAt, &r.CompletedAt, &r.TotalIterations, &r.TotalExecutionTimeMS, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.Status = RunStatus(st)
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRunStatus implements RunRepository.
func (s *SQLite) UpdateRunStatus(ctx context.Context, runID string, status RunStatus, startedAt, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?,
		   started_at = COALESCE(?, started_at),
		   completed_at = COALESCE(?, completed_at)
		 WHERE run_id = ?`,
		status, startedAt, completedAt, runID)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRunFinalState implements RunRepository.
func (s *SQLite) UpdateRunFinalState(ctx context.Context, runID string, finalState []byte, totalIterations int, totalExecutionTimeMS int64, errorMessage *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET final_state = ?, total_iterations = ?, total_execution_time_ms = ?, error_message = ?
		 WHERE run_id = ?`,
		finalState, totalIterations, totalExecutionTimeMS, errorMessage, runID)
	if err != nil {
		return fmt.Errorf("update run final state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRunCurrentState implements RunRepository.
func (s *SQLite) UpdateRunCurrentState(ctx context.Context, runID string, currentState []byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET current_state = ? WHERE run_id = ?`, currentState, runID)
	if err != nil {
		return fmt.Errorf("update run current state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendLog implements ExecutionLogRepository.
func (s *SQLite) AppendLog(ctx context.Context, rec ExecutionLogRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_logs (run_id, node_name, status, iteration, execution_time_ms, timestamp, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.NodeName, rec.Status, rec.Iteration, rec.ExecutionTimeMS, rec.Timestamp, rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLogsByRun implements ExecutionLogRepository.
func (s *SQLite) ListLogsByRun(ctx context.Context, runID string) ([]ExecutionLogRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, node_name, status, iteration, execution_time_ms, timestamp, error_message
		 FROM execution_logs WHERE run_id = ? ORDER BY timestamp ASC, id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []ExecutionLogRecord
	for rows.Next() {
		var l ExecutionLogRecord
		if err := rows.Scan(&l.ID, &l.RunID, &l.NodeName, &l.Status, &l.Iteration, &l.ExecutionTimeMS, &l.Timestamp, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan log row: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Close implements Repository.
func (s *SQLite) Close() error { return s.db.Close() }
