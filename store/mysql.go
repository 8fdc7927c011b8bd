package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL is a MySQL/MariaDB-backed Repository for production deployments
// that need persistence across process restarts and multiple writers,
// grounded on the teacher's MySQLStore (graph/store/mysql.go). Schema
// mirrors SQLite's three-table layout (spec.md §6), adapted to MySQL's
// AUTO_INCREMENT/DATETIME syntax.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens a connection pool to dsn and ensures the schema exists.
// dsn follows the go-sql-driver/mysql DSN format, e.g.
// "user:pass@tcp(localhost:3306)/workflows?parseTime=true". parseTime=true
// is required so DATETIME columns scan into time.Time.
func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	m := &MySQL{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return m, nil
}

func (m *MySQL) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graphs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			definition JSON NOT NULL,
			entry_point VARCHAR(255) NOT NULL,
			version INT NOT NULL DEFAULT 1,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_graph_name (name, is_active)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS runs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL UNIQUE,
			graph_id BIGINT NOT NULL,
			status VARCHAR(16) NOT NULL,
			initial_state JSON NOT NULL,
			current_state JSON,
			final_state JSON,
			started_at DATETIME,
			completed_at DATETIME,
			total_iterations INT,
			total_execution_time_ms BIGINT,
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_runs_status_created (status, created_at),
			INDEX idx_runs_graph_status (graph_id, status),
			CONSTRAINT fk_runs_graph FOREIGN KEY (graph_id) REFERENCES graphs(id)
		) ENGINE=InnoDB`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			node_name VARCHAR(255) NOT NULL,
			status VARCHAR(16) NOT NULL,
			iteration INT NOT NULL,
			execution_time_ms BIGINT,
			timestamp DATETIME(6) NOT NULL,
			error_message TEXT,
			INDEX idx_logs_run_timestamp (run_id, timestamp),
			CONSTRAINT fk_logs_run FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		) ENGINE=InnoDB`,
	}
	for _, stmt := range stmts {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateGraph implements GraphRepository.
func (m *MySQL) CreateGraph(ctx context.Context, rec GraphRecord) (int64, error) {
	var exists int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM graphs WHERE name = ? AND is_active = 1`, rec.Name).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("check duplicate name: %w", err)
	}
	if exists > 0 {
		return 0, ErrDuplicateName
	}

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO graphs (name, description, definition, entry_point, version, is_active)
		 VALUES (?, ?, ?, ?, 1, 1)`,
		rec.Name, rec.Description, rec.Definition, rec.EntryPoint)
	if err != nil {
		return 0, fmt.Errorf("insert graph: %w", err)
	}
	return res.LastInsertId()
}

// GetGraphByID implements GraphRepository.
func (m *MySQL) GetGraphByID(ctx context.Context, id int64) (GraphRecord, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, entry_point, version, is_active, created_at, updated_at
		 FROM graphs WHERE id = ?`, id)
	return scanGraph(row)
}

// GetGraphByName implements GraphRepository.
func (m *MySQL) GetGraphByName(ctx context.Context, name string) (GraphRecord, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, description, definition, entry_point, version, is_active, created_at, updated_at
		 FROM graphs WHERE name = ? AND is_active = 1`, name)
	return scanGraph(row)
}

// ListGraphs implements GraphRepository.
func (m *MySQL) ListGraphs(ctx context.Context, skip, limit int, activeOnly bool) ([]GraphRecord, error) {
	query := `SELECT id, name, description, definition, entry_point, version, is_active, created_at, updated_at FROM graphs`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	if limit <= 0 {
		limit = 1000000
	}

	rows, err := m.db.QueryContext(ctx, query, limit, skip)
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
func (m *MySQL) SoftDeleteGraph(ctx context.Context, id int64) error {
	res, err := m.db.ExecContext(ctx, `UPDATE graphs SET is_active = 0 WHERE id = ?`, id)
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
func (m *MySQL) CreateRun(ctx context.Context, graphID int64, initialState []byte) (RunRecord, error) {
	runID := newRunID()
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, graph_id, status, initial_state) VALUES (?, ?, ?, ?)`,
		runID, graphID, RunPending, initialState)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return m.GetRunByRunID(ctx, runID)
}

// GetRunByRunID implements RunRepository.
func (m *MySQL) GetRunByRunID(ctx context.Context, runID string) (RunRecord, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, run_id, graph_id, status, initial_state, current_state, final_state,
		        started_at, completed_at, total_iterations, total_execution_time_ms, error_message
		 FROM runs WHERE run_id = ?`, runID)
	return scanRun(row)
}

// ListRuns implements RunRepository.
func (m *MySQL) ListRuns(ctx context.Context, graphID *int64, status *RunStatus, skip, limit int) ([]RunRecord, error) {
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
		limit = 1000000
	}
	args = append(args, limit, skip)

	rows, err := m.db.QueryContext(ctx, query, args...)
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
func (m *MySQL) UpdateRunStatus(ctx context.Context, runID string, status RunStatus, startedAt, completedAt *time.Time) error {
	res, err := m.db.ExecContext(ctx,
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
func (m *MySQL) UpdateRunFinalState(ctx context.Context, runID string, finalState []byte, totalIterations int, totalExecutionTimeMS int64, errorMessage *string) error {
	res, err := m.db.ExecContext(ctx,
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
func (m *MySQL) UpdateRunCurrentState(ctx context.Context, runID string, currentState []byte) error {
	res, err := m.db.ExecContext(ctx, `UPDATE runs SET current_state = ? WHERE run_id = ?`, currentState, runID)
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
func (m *MySQL) AppendLog(ctx context.Context, rec ExecutionLogRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := m.db.ExecContext(ctx,
		`INSERT INTO execution_logs (run_id, node_name, status, iteration, execution_time_ms, timestamp, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.NodeName, rec.Status, rec.Iteration, rec.ExecutionTimeMS, rec.Timestamp, rec.ErrorMessage)
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// ListLogsByRun implements ExecutionLogRepository.
func (m *MySQL) ListLogsByRun(ctx context.Context, runID string) ([]ExecutionLogRecord, error) {
	rows, err := m.db.QueryContext(ctx,
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
func (m *MySQL) Close() error { return m.db.Close() }
