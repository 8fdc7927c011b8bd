// Package run implements the Run Coordinator and Event Broker of the
// core: resolving a persisted graph definition into an executable
// graph.Graph, driving the engine in the background, and fanning out
// its event stream to subscribers while mirroring it into the
// ExecutionLog (spec.md §4.6, §4.7).
package run

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowgraph/workflow-core/graph"
	"github.com/flowgraph/workflow-core/store"
)

// Run is the in-memory projection of a store.RunRecord used by callers
// that want typed access to the run's state rather than raw JSON
// columns (spec.md §3 Run).
type Run struct {
	RunID                string
	GraphID              int64
	Status               store.RunStatus
	InitialState         graph.State
	CurrentState         *graph.State
	FinalState           *graph.State
	StartedAt            *time.Time
	CompletedAt          *time.Time
	TotalIterations      *int
	TotalExecutionTimeMS *int64
	ErrorMessage         *string
}

// FromRecord decodes a store.RunRecord's JSON columns into a Run.
func FromRecord(rec store.RunRecord) (Run, error) {
	r := Run{
		RunID:                rec.RunID,
		GraphID:              rec.GraphID,
		Status:               rec.Status,
		StartedAt:            rec.StartedAt,
		CompletedAt:          rec.CompletedAt,
		TotalIterations:      rec.TotalIterations,
		TotalExecutionTimeMS: rec.TotalExecutionTimeMS,
		ErrorMessage:         rec.ErrorMessage,
	}
	if err := json.Unmarshal(rec.InitialState, &r.InitialState); err != nil {
		return Run{}, fmt.Errorf("decode initial_state: %w", err)
	}
	if len(rec.CurrentState) > 0 {
		var s graph.State
		if err := json.Unmarshal(rec.CurrentState, &s); err != nil {
			return Run{}, fmt.Errorf("decode current_state: %w", err)
		}
		r.CurrentState = &s
	}
	if len(rec.FinalState) > 0 {
		var s graph.State
		if err := json.Unmarshal(rec.FinalState, &s); err != nil {
			return Run{}, fmt.Errorf("decode final_state: %w", err)
		}
		r.FinalState = &s
	}
	return r, nil
}
