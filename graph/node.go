package graph

import (
	"context"
	"fmt"
	"time"
)

// Status is the per-execution outcome of a Node (spec.md §3 ExecutionLog.status).
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// NodeMeta carries optional descriptive fields for a Node (spec.md §3).
type NodeMeta struct {
	Description string
	Version     string
	Author      string
}

// Node binds a name to a resolved ToolFunc. It is constructed once per
// run from a graph definition (spec.md §3: "not persisted separately").
type Node struct {
	Name string
	Tool ToolFunc
	Meta NodeMeta

	async bool
	pool  *workerPool
}

// Result is the outcome of Node.Execute: the delta to merge, the status
// to log, how long execution took, and the error (if any) that caused a
// failed status.
type Result struct {
	Delta         State
	Status        Status
	ExecutionTime time.Duration
	Err           error
}

// Execute runs the node's tool against state, timing the call and
// capturing any failure as a NodeExecutionError (spec.md §4.2). A
// synchronous tool (ToolMeta.Async == false) is dispatched onto the
// node's worker pool when it has one, and runs inline when the pool is
// nil; an asynchronous tool runs inline, relying on its own use of ctx
// for suspension.
func (n *Node) Execute(ctx context.Context, state State) Result {
	start := time.Now()

	var delta State
	var err error
	if n.async || n.pool == nil {
		delta, err = n.runTool(ctx, state)
	} else {
		delta, err = n.pool.run(ctx, func() (State, error) {
			return n.runTool(ctx, state)
		})
	}

	elapsed := time.Since(start)
	if err != nil {
		wrapped := &NodeExecutionError{NodeName: n.Name, Cause: err}
		return Result{
			Delta:         ErrorDelta(fmt.Sprintf("%s: %v", n.Name, err)),
			Status:        StatusFailed,
			ExecutionTime: elapsed,
			Err:           wrapped,
		}
	}
	return Result{
		Delta:         delta,
		Status:        StatusCompleted,
		ExecutionTime: elapsed,
	}
}

// runTool invokes the tool function, converting a panic into an error so
// a single misbehaving tool cannot crash the coordinator's goroutine.
func (n *Node) runTool(ctx context.Context, state State) (delta State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return n.Tool(ctx, state)
}
