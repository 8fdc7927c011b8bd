package graph

import "errors"

// Sentinel errors for the graph package. Prefer errors.As against the
// typed errors below when the caller needs structured detail (offending
// node name, iteration count, etc); use errors.Is against these sentinels
// for simple branching.
var (
	// ErrToolNotFound indicates a Registry lookup missed during graph build.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered indicates a second Register call used a name
	// already present in the Registry.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMaxIterationsExceeded indicates the engine's loop hit Options.MaxIterations
	// without the graph reaching a terminal node.
	ErrMaxIterationsExceeded = errors.New("execution exceeded maximum iterations")

	// ErrTimeout indicates the run's wall-clock budget elapsed between nodes.
	ErrTimeout = errors.New("execution exceeded timeout")

	// ErrCancelled indicates cancellation was requested and observed at a
	// loop-head checkpoint.
	ErrCancelled = errors.New("execution cancelled")
)

// GraphValidationError reports the first structural offense found by
// Graph.Validate, per spec.md §4.4 (checks run in order, first failure wins).
type GraphValidationError struct {
	// Reason is a short machine-stable code, e.g. "missing_entry_point",
	// "unknown_edge_endpoint", "unconditional_self_loop", "unreachable_node".
	Reason string
	// Detail is a human-readable description naming the offending node/edge.
	Detail string
}

func (e *GraphValidationError) Error() string {
	return "graph validation failed: " + e.Reason + ": " + e.Detail
}

// ToolNotFoundError names the missing tool at graph-build time.
type ToolNotFoundError struct {
	ToolName string
}

func (e *ToolNotFoundError) Error() string {
	return "tool not found: " + e.ToolName
}

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

// ToolAlreadyRegisteredError names the colliding tool name.
type ToolAlreadyRegisteredError struct {
	ToolName string
}

func (e *ToolAlreadyRegisteredError) Error() string {
	return "tool already registered: " + e.ToolName
}

func (e *ToolAlreadyRegisteredError) Unwrap() error { return ErrToolAlreadyRegistered }

// NodeExecutionError wraps a tool failure captured by the Node wrapper.
// It is the error the Engine surfaces (spec.md §4.5, §7) when a node's
// tool returns an error or panics.
type NodeExecutionError struct {
	NodeName string
	Cause    error
}

func (e *NodeExecutionError) Error() string {
	return "node " + e.NodeName + " failed: " + e.Cause.Error()
}

func (e *NodeExecutionError) Unwrap() error { return e.Cause }

// EdgeConditionError wraps a predicate failure (spec.md §4.3, §7).
type EdgeConditionError struct {
	FromNode string
	ToNode   string
	Cause    error
}

func (e *EdgeConditionError) Error() string {
	return "edge condition " + e.FromNode + "->" + e.ToNode + " failed: " + e.Cause.Error()
}

func (e *EdgeConditionError) Unwrap() error { return e.Cause }

// MaxIterationsExceededError reports the bound that was hit.
type MaxIterationsExceededError struct {
	MaxIterations int
}

func (e *MaxIterationsExceededError) Error() string {
	return ErrMaxIterationsExceeded.Error()
}

func (e *MaxIterationsExceededError) Unwrap() error { return ErrMaxIterationsExceeded }

// TimeoutError reports the configured budget that elapsed.
type TimeoutError struct {
	BudgetMS int64
}

func (e *TimeoutError) Error() string { return ErrTimeout.Error() }

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// CancelledError marks a run terminated by explicit cancellation.
type CancelledError struct{}

func (e *CancelledError) Error() string { return ErrCancelled.Error() }

func (e *CancelledError) Unwrap() error { return ErrCancelled }
