package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Repository. It is thread-safe and intended for
// testing and single-process development use, grounded on the teacher's
// MemStore (graph/store/memory.go). Data does not survive restart.
type Memory struct {
	mu sync.RWMutex

	graphs   map[int64]GraphRecord
	nextGID  int64
	runs     map[string]RunRecord // keyed by run_id
	runSeq   int64
	logs     map[string][]ExecutionLogRecord // keyed by run_id
}

// NewMemory returns an empty in-memory Repository.
func NewMemory() *Memory {
	return &Memory{
		graphs: make(map[int64]GraphRecord),
		runs:   make(map[string]RunRecord),
		logs:   make(map[string][]ExecutionLogRecord),
	}
}

// CreateGraph implements GraphRepository.
func (m *Memory) CreateGraph(_ context.Context, rec GraphRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, g := range m.graphs {
		if g.IsActive && g.Name == rec.Name {
			return 0, ErrDuplicateName
		}
	}

	m.nextGID++
	rec.ID = m.nextGID
	rec.IsActive = true
	if rec.Version == 0 {
		rec.Version = 1
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.graphs[rec.ID] = rec
	return rec.ID, nil
}

// GetGraphByID implements GraphRepository.
func (m *Memory) GetGraphByID(_ context.Context, id int64) (GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.graphs[id]
	if !ok {
		return GraphRecord{}, ErrNotFound
	}
	return g, nil
}

// GetGraphByName implements GraphRepository.
func (m *Memory) GetGraphByName(_ context.Context, name string) (GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.graphs {
		if g.Name == name && g.IsActive {
			return g, nil
		}
	}
	return GraphRecord{}, ErrNotFound
}

// ListGraphs implements GraphRepository.
func (m *Memory) ListGraphs(_ context.Context, skip, limit int, activeOnly bool) ([]GraphRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]GraphRecord, 0, len(m.graphs))
	for _, g := range m.graphs {
		if activeOnly && !g.IsActive {
			continue
		}
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return paginate(all, skip, limit), nil
}

// SoftDeleteGraph implements GraphRepository.
func (m *Memory) SoftDeleteGraph(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[id]
	if !ok {
		return ErrNotFound
	}
	g.IsActive = false
	g.UpdatedAt = time.Now()
	m.graphs[id] = g
	return nil
}

// CreateRun implements RunRepository.
func (m *Memory) CreateRun(_ context.Context, graphID int64, initialState []byte) (RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runSeq++
	rec := RunRecord{
		ID:           m.runSeq,
		RunID:        newRunID(),
		GraphID:      graphID,
		Status:       RunPending,
		InitialState: initialState,
	}
	m.runs[rec.RunID] = rec
	return rec, nil
}

// GetRunByRunID implements RunRepository.
func (m *Memory) GetRunByRunID(_ context.Context, runID string) (RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[runID]
	if !ok {
		return RunRecord{}, ErrNotFound
	}
	return r, nil
}

// ListRuns implements RunRepository.
func (m *Memory) ListRuns(_ context.Context, graphID *int64, status *RunStatus, skip, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		if graphID != nil && r.GraphID != *graphID {
			continue
		}
		if status != nil && r.Status != *status {
			continue
		}
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	return paginate(all, skip, limit), nil
}

// UpdateRunStatus implements RunRepository.
func (m *Memory) UpdateRunStatus(_ context.Context, runID string, status RunStatus, startedAt, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	if startedAt != nil {
		r.StartedAt = startedAt
	}
	if completedAt != nil {
		r.CompletedAt = completedAt
	}
	m.runs[runID] = r
	return nil
}

// UpdateRunFinalState implements RunRepository.
func (m *Memory) UpdateRunFinalState(_ context.Context, runID string, finalState []byte, totalIterations int, totalExecutionTimeMS int64, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	r.FinalState = finalState
	r.TotalIterations = &totalIterations
	r.TotalExecutionTimeMS = &totalExecutionTimeMS
	r.ErrorMessage = errorMessage
	m.runs[runID] = r
	return nil
}

// UpdateRunCurrentState implements RunRepository.
func (m *Memory) UpdateRunCurrentState(_ context.Context, runID string, currentState []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok {
		return ErrNotFound
	}
	r.CurrentState = currentState
	m.runs[runID] = r
	return nil
}

// AppendLog implements ExecutionLogRepository.
func (m *Memory) AppendLog(_ context.Context, rec ExecutionLogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	m.logs[rec.RunID] = append(m.logs[rec.RunID], rec)
	return nil
}

// ListLogsByRun implements ExecutionLogRepository, ordered by timestamp
// with insertion order as the stable tiebreak (spec.md §3).
func (m *Memory) ListLogsByRun(_ context.Context, runID string) ([]ExecutionLogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := m.logs[runID]
	out := make([]ExecutionLogRecord, len(logs))
	copy(out, logs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Close implements Repository. Memory holds no external resources.
func (m *Memory) Close() error { return nil }

func paginate[T any](all []T, skip, limit int) []T {
	if skip >= len(all) {
		return []T{}
	}
	end := len(all)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return all[skip:end]
}
