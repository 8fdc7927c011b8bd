// Package emit provides observability event emission for graph execution:
// the mechanism by which the Engine's StatusUpdate/NodeCompleted/
// WorkflowCompleted stream (spec.md §4.7) reaches logs, traces, and the
// run broker's subscribers.
package emit

import "time"

// Kind identifies the event schema variants from spec.md §4.7.
type Kind string

const (
	KindStatusUpdate       Kind = "status_update"
	KindNodeCompleted      Kind = "node_completed"
	KindNodeFailed         Kind = "node_failed"
	KindWorkflowCompleted  Kind = "workflow_completed"
	KindProgressUpdate     Kind = "progress_update"
	KindLogEntry           Kind = "log_entry"
	KindError              Kind = "error"
)

// Event is a single observability event emitted during workflow execution
// (spec.md §4.7). Optional fields carry kind-specific structured data so
// a single concrete type can represent every event in §4.7's abstract
// schema without one Go type per kind.
type Event struct {
	Kind Kind

	RunID     string
	NodeName  string
	Iteration int
	Timestamp time.Time

	// Msg is a short human-readable description.
	Msg string

	// DurationMS is set for NodeCompleted/WorkflowCompleted.
	DurationMS int64

	// Status carries the node or run status string (e.g. "completed",
	// "failed") when applicable.
	Status string

	// Progress fields, set for ProgressUpdate.
	CompletedNodes int
	TotalNodes     int
	ProgressPct    float64

	// FinalState is set only for WorkflowCompleted, JSON-serializable.
	FinalState any

	// Error carries a message for NodeFailed/Error/WorkflowCompleted(failed).
	Error string
}
