// Package graph provides the core graph execution engine: state, nodes,
// edges, the graph structure and its validator, and the sequential
// execution engine that walks a validated graph against a State.
package graph

import "time"

// State is the value that flows node-to-node (spec.md §3). It is
// conceptually immutable: every node execution produces a new logical
// State rather than mutating the one it received. Implementations copy
// on write — see DefaultReducer, which merges into a Clone.
type State struct {
	// WorkflowID identifies the graph definition this state belongs to.
	WorkflowID string `json:"workflow_id"`

	// RunID identifies the specific execution (spec.md §3).
	RunID string `json:"run_id"`

	// Timestamp records when this state value was created.
	Timestamp time.Time `json:"timestamp"`

	// Iteration is the engine-maintained traversal counter; it increments
	// once per executed node, never per edge traversed without execution.
	Iteration int `json:"iteration"`

	// Data is the open user payload, isomorphic to a JSON object. Values
	// must be JSON-serializable (nil, bool, float64, string, []any, map[string]any).
	Data map[string]any `json:"data"`

	// Errors accumulates node-reported failures that did not themselves
	// abort the run (it also receives the single entry recorded when a
	// tool failure DOES abort the run, per spec.md §4.2).
	Errors []string `json:"errors"`

	// Warnings accumulates non-fatal notices from tools.
	Warnings []string `json:"warnings"`

	// Config carries optional execution hints supplied at run start
	// (e.g. quality thresholds); the core never interprets these itself.
	Config map[string]any `json:"config"`
}

// NewState returns a State with initialized, non-nil map fields. Passing an
// empty workflowID/runID is legal; Engine.Execute fills those in.
func NewState(workflowID, runID string, data map[string]any) State {
	if data == nil {
		data = map[string]any{}
	}
	return State{
		WorkflowID: workflowID,
		RunID:      runID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Errors:     []string{},
		Warnings:   []string{},
		Config:     map[string]any{},
	}
}

// Clone returns a deep-enough copy of s suitable for a node to mutate and
// return as its own result without aliasing the caller's maps/slices.
func (s State) Clone() State {
	data := make(map[string]any, len(s.Data))
	for k, v := range s.Data {
		data[k] = v
	}
	cfg := make(map[string]any, len(s.Config))
	for k, v := range s.Config {
		cfg[k] = v
	}
	errs := make([]string, len(s.Errors))
	copy(errs, s.Errors)
	warns := make([]string, len(s.Warnings))
	copy(warns, s.Warnings)

	clone := s
	clone.Data = data
	clone.Config = cfg
	clone.Errors = errs
	clone.Warnings = warns
	return clone
}

// WithIteration returns a copy of s with Iteration set, matching the
// engine's "state'.with_iteration(iterations)" step in spec.md §4.5.
func (s State) WithIteration(n int) State {
	clone := s
	clone.Iteration = n
	return clone
}

// ErrorDelta returns a minimal State carrying a single error message,
// suitable for merging into an accumulated State via a Reducer. Node uses
// this to report a captured tool failure (spec.md §4.2) without cloning
// the entire accumulated state.
func ErrorDelta(msg string) State {
	return State{Errors: []string{msg}}
}

// Reducer merges a node's returned delta state into the accumulated
// state. The default reducer (DefaultReducer) implements last-write-wins
// over Data/Config keys and append semantics over Errors/Warnings, which
// is what every example tool in this module assumes. Callers may supply
// a custom Reducer to the Engine for different merge semantics.
type Reducer func(prev, delta State) State

// DefaultReducer merges delta into prev: Data and Config keys present in
// delta overwrite prev's; Errors and Warnings are concatenated (prev's
// come first, matching insertion/execution order); Timestamp is taken
// from delta when non-zero, else prev's is kept. Iteration is always
// prev's: the engine stamps it itself after merging.
func DefaultReducer(prev, delta State) State {
	merged := prev.Clone()
	for k, v := range delta.Data {
		merged.Data[k] = v
	}
	for k, v := range delta.Config {
		merged.Config[k] = v
	}
	merged.Errors = append(merged.Errors, delta.Errors...)
	merged.Warnings = append(merged.Warnings, delta.Warnings...)
	if !delta.Timestamp.IsZero() {
		merged.Timestamp = delta.Timestamp
	}
	return merged
}
