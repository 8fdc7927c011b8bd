// Package store provides persistence for graph definitions, runs, and
// execution logs, grounded on the teacher's graph/store package but
// trimmed to the three-table contract this core actually needs: no
// checkpoints, frontier snapshots, or idempotency-key bookkeeping, since
// this engine has no intra-run concurrency or replay machinery to
// checkpoint.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested graph, run, or log set does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateName is returned by CreateGraph when name is already in
// use by an active graph.
var ErrDuplicateName = errors.New("graph name already exists")

// GraphRecord is the persisted form of a graph definition (spec.md §6
// graphs table).
type GraphRecord struct {
	ID          int64
	Name        string
	Description string
	Definition  []byte // JSON-encoded graph.Definition
	EntryPoint  string
	Version     int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RunStatus is the lifecycle state of a Run (spec.md §3).
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// RunRecord is the persisted form of a workflow run (spec.md §3 Run).
type RunRecord struct {
	ID                  int64
	RunID               string
	GraphID             int64
	Status              RunStatus
	InitialState        []byte // JSON
	CurrentState        []byte // JSON, nullable
	FinalState          []byte // JSON, nullable
	StartedAt           *time.Time
	CompletedAt         *time.Time
	TotalIterations     *int
	TotalExecutionTimeMS *int64
	ErrorMessage        *string
}

// ExecutionLogRecord is a per-node audit row (spec.md §3 ExecutionLog).
type ExecutionLogRecord struct {
	ID               int64
	RunID            string
	NodeName         string
	Status           string // started, completed, failed, skipped
	Iteration        int
	ExecutionTimeMS  *int64
	Timestamp        time.Time
	ErrorMessage     *string
}

// GraphRepository persists graph definitions (spec.md §4.8).
type GraphRepository interface {
	CreateGraph(ctx context.Context, rec GraphRecord) (int64, error)
	GetGraphByID(ctx context.Context, id int64) (GraphRecord, error)
	GetGraphByName(ctx context.Context, name string) (GraphRecord, error)
	ListGraphs(ctx context.Context, skip, limit int, activeOnly bool) ([]GraphRecord, error)
	SoftDeleteGraph(ctx context.Context, id int64) error
}

// RunRepository persists run records (spec.md §4.8).
type RunRepository interface {
	CreateRun(ctx context.Context, graphID int64, initialState []byte) (RunRecord, error)
	GetRunByRunID(ctx context.Context, runID string) (RunRecord, error)
	ListRuns(ctx context.Context, graphID *int64, status *RunStatus, skip, limit int) ([]RunRecord, error)
	UpdateRunStatus(ctx context.Context, runID string, status RunStatus, startedAt, completedAt *time.Time) error
	UpdateRunFinalState(ctx context.Context, runID string, finalState []byte, totalIterations int, totalExecutionTimeMS int64, errorMessage *string) error
	UpdateRunCurrentState(ctx context.Context, runID string, currentState []byte) error
}

// ExecutionLogRepository persists per-node audit rows (spec.md §4.8).
type ExecutionLogRepository interface {
	AppendLog(ctx context.Context, rec ExecutionLogRecord) error
	ListLogsByRun(ctx context.Context, runID string) ([]ExecutionLogRecord, error)
}

// Repository is the full persistence contract the Run Coordinator
// consumes (spec.md §4.8). Implementations: Memory, SQLite, MySQL.
type Repository interface {
	GraphRepository
	RunRepository
	ExecutionLogRepository

	// Close releases any held resources (connections, file handles).
	Close() error
}
