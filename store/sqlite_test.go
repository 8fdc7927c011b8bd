package store

import (
	"context"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLite_CreateAndGetGraph(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id, err := s.CreateGraph(ctx, GraphRecord{Name: "g1", Definition: []byte(`{}`), EntryPoint: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetGraphByName(ctx, "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != id || !got.IsActive || got.EntryPoint != "a" {
		t.Fatalf("unexpected graph record: %+v", got)
	}

	byID, err := s.GetGraphByID(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byID.Name != "g1" {
		t.Fatalf("unexpected graph by id: %+v", byID)
	}
}

func TestSQLite_CreateGraph_DuplicateActiveNameRejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	if _, err := s.CreateGraph(ctx, GraphRecord{Name: "dup", Definition: []byte(`{}`), EntryPoint: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := s.CreateGraph(ctx, GraphRecord{Name: "dup", Definition: []byte(`{}`), EntryPoint: "a"})
	if err != ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestSQLite_SoftDeleteGraph_AllowsNameReuse(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id, err := s.CreateGraph(ctx, GraphRecord{Name: "g1", Definition: []byte(`{}`), EntryPoint: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.SoftDeleteGraph(ctx, id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.GetGraphByName(ctx, "g1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after soft delete, got %v", err)
	}
	if _, err := s.CreateGraph(ctx, GraphRecord{Name: "g1", Definition: []byte(`{}`), EntryPoint: "a"}); err != nil {
		t.Fatalf("expected name reuse after soft delete to succeed, got %v", err)
	}
}

func TestSQLite_ListGraphs_ActiveOnlyFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	id1, _ := s.CreateGraph(ctx, GraphRecord{Name: "g1", Definition: []byte(`{}`), EntryPoint: "a"})
	_, _ = s.CreateGraph(ctx, GraphRecord{Name: "g2", Definition: []byte(`{}`), EntryPoint: "a"})
	if err := s.SoftDeleteGraph(ctx, id1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	active, err := s.ListGraphs(ctx, 0, 10, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 || active[0].Name != "g2" {
		t.Fatalf("expected only g2 active, got %+v", active)
	}

	all, err := s.ListGraphs(ctx, 0, 10, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected both graphs regardless of status, got %+v", all)
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	graphID, err := s.CreateGraph(ctx, GraphRecord{Name: "g1", Definition: []byte(`{}`), EntryPoint: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runRec, err := s.CreateRun(ctx, graphID, []byte(`{"data":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runRec.Status != RunPending {
		t.Fatalf("expected pending status, got %s", runRec.Status)
	}

	if err := s.UpdateRunStatus(ctx, runRec.RunID, RunRunning, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	errMsg := "boom"
	if err := s.UpdateRunFinalState(ctx, runRec.RunID, []byte(`{}`), 3, 42, &errMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetRunByRunID(ctx, runRec.RunID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != RunRunning {
		t.Fatalf("expected running status, got %s", got.Status)
	}
	if got.TotalIterations == nil || *got.TotalIterations != 3 {
		t.Fatalf("unexpected total iterations: %+v", got.TotalIterations)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "boom" {
		t.Fatalf("unexpected error message: %+v", got.ErrorMessage)
	}

	runs, err := s.ListRuns(ctx, &graphID, nil, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != runRec.RunID {
		t.Fatalf("unexpected run list: %+v", runs)
	}
}

func TestSQLite_ExecutionLogsOrderedByTimestamp(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	graphID, err := s.CreateGraph(ctx, GraphRecord{Name: "g1", Definition: []byte(`{}`), EntryPoint: "a"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	runRec, err := s.CreateRun(ctx, graphID, []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, name := range []string{"a", "b", "c"} {
		if err := s.AppendLog(ctx, ExecutionLogRecord{RunID: runRec.RunID, NodeName: name, Status: "completed", Iteration: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	logs, err := s.ListLogsByRun(ctx, runRec.RunID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 3 || logs[0].NodeName != "a" || logs[2].NodeName != "c" {
		t.Fatalf("expected insertion order a,b,c, got %+v", logs)
	}
}
