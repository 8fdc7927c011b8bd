package graph

import (
	"context"
	"time"

	"github.com/flowgraph/workflow-core/graph/emit"
)

// contextKey is a private type for context value keys, so that keys
// defined here can never collide with another package's keys, grounded
// on the teacher's graph/engine.go contextKey pattern.
type contextKey string

const (
	// RunIDKey is the context key for the current run's identifier.
	RunIDKey contextKey = "workflow.run_id"
	// IterationKey is the context key for the current iteration number.
	IterationKey contextKey = "workflow.iteration"
	// NodeNameKey is the context key for the node currently executing.
	NodeNameKey contextKey = "workflow.node_name"
)

// Engine executes a validated Graph to completion, implementing the
// sequential execution algorithm of the core: bounded iteration,
// cooperative cancellation and timeout checks between nodes, per-node
// event emission, and edge-based routing.
type Engine struct {
	options Options
	emitter emit.Emitter
	metrics *EngineMetrics
	reducer Reducer
}

// NewEngine returns an Engine configured by opts. A nil emitter is
// replaced with emit.Null{}; a nil reducer defaults to DefaultReducer.
func NewEngine(emitter emit.Emitter, reducer Reducer, opts ...Option) *Engine {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if emitter == nil {
		emitter = emit.Null{}
	}
	if reducer == nil {
		reducer = DefaultReducer
	}
	return &Engine{options: options, emitter: emitter, reducer: reducer}
}

// WithMetrics attaches Prometheus metrics to the engine, returning it
// for chaining.
func (e *Engine) WithMetrics(m *EngineMetrics) *Engine {
	e.metrics = m
	return e
}

// Execute drives g from initial through to a terminal state, per the
// algorithm: iteration bound, cancellation and timeout checks between
// nodes, per-node event emission, edge-based routing. g must already be
// Validate()'d; Execute does not re-validate.
func (e *Engine) Execute(ctx context.Context, g *Graph, runID string, initial State) (State, error) {
	state := initial
	state.RunID = runID
	state.WorkflowID = g.Name
	current := g.EntryPoint()
	iteration := 0
	start := time.Now()

	e.recordRunStarted(g.Name)

	for current != "" {
		if iteration >= e.options.MaxIterations {
			err := &MaxIterationsExceededError{MaxIterations: e.options.MaxIterations}
			state = state.WithIteration(iteration)
			e.finishFailed(ctx, g.Name, runID, state, start, iteration, err)
			return state, err
		}

		select {
		case <-ctx.Done():
			err := &CancelledError{}
			state = state.WithIteration(iteration)
			e.finishFailed(ctx, g.Name, runID, state, start, iteration, err)
			return state, err
		default:
		}

		if e.options.Timeout > 0 && time.Since(start) > e.options.Timeout {
			err := &TimeoutError{BudgetMS: e.options.Timeout.Milliseconds()}
			state = state.WithIteration(iteration)
			e.finishFailed(ctx, g.Name, runID, state, start, iteration, err)
			return state, err
		}

		node := g.Node(current)
		if node == nil {
			err := &NodeExecutionError{NodeName: current, Cause: ErrToolNotFound}
			state = state.WithIteration(iteration)
			e.finishFailed(ctx, g.Name, runID, state, start, iteration, err)
			return state, err
		}

		e.emitter.Emit(ctx, emit.Event{
			Kind:      emit.KindStatusUpdate,
			RunID:     runID,
			NodeName:  current,
			Iteration: iteration,
			Timestamp: time.Now(),
			Status:    string(StatusStarted),
			Msg:       "node started",
		})

		nodeCtx := context.WithValue(ctx, RunIDKey, runID)
		nodeCtx = context.WithValue(nodeCtx, IterationKey, iteration)
		nodeCtx = context.WithValue(nodeCtx, NodeNameKey, current)

		result := node.Execute(nodeCtx, state)
		e.recordNodeLatency(g.Name, current, result.ExecutionTime, string(result.Status))

		if result.Err != nil {
			state = e.reducer(state, result.Delta)
			// current was attempted and logged as failed, so it counts
			// toward the executed-node total even though it errored.
			state = state.WithIteration(iteration + 1)
			e.emitter.Emit(ctx, emit.Event{
				Kind:       emit.KindNodeFailed,
				RunID:      runID,
				NodeName:   current,
				Iteration:  iteration,
				Timestamp:  time.Now(),
				DurationMS: result.ExecutionTime.Milliseconds(),
				Status:     string(StatusFailed),
				Error:      result.Err.Error(),
			})
			e.finishFailed(ctx, g.Name, runID, state, start, iteration, result.Err)
			return state, result.Err
		}

		state = e.reducer(state, result.Delta)
		state = state.WithIteration(iteration)

		e.emitter.Emit(ctx, emit.Event{
			Kind:       emit.KindNodeCompleted,
			RunID:      runID,
			NodeName:   current,
			Iteration:  iteration,
			Timestamp:  time.Now(),
			DurationMS: result.ExecutionTime.Milliseconds(),
			Status:     string(StatusCompleted),
		})

		next, err := g.edgeManager.next(current, state)
		if err != nil {
			wrapped := &NodeExecutionError{NodeName: current, Cause: err}
			// current itself completed and was logged, so the count one
			// past it already includes it (state.WithIteration(iteration)
			// above stamped its zero-based index, not its count).
			state = state.WithIteration(iteration + 1)
			e.finishFailed(ctx, g.Name, runID, state, start, iteration, wrapped)
			return state, wrapped
		}

		current = next
		iteration++
		if e.metrics != nil {
			e.metrics.IncrementIteration(g.Name)
		}
	}

	// iteration now holds the total count of executed nodes; stamp it
	// onto the returned state so Run.total_iterations derived from it
	// matches the ExecutionLog's completed-row count (spec.md §8).
	state = state.WithIteration(iteration)

	e.emitter.Emit(ctx, emit.Event{
		Kind:       emit.KindWorkflowCompleted,
		RunID:      runID,
		Iteration:  iteration,
		Timestamp:  time.Now(),
		DurationMS: time.Since(start).Milliseconds(),
		Status:     "completed",
		FinalState: state,
	})
	if e.metrics != nil {
		e.metrics.RunFinished(g.Name, "completed")
	}

	return state, nil
}

func (e *Engine) recordRunStarted(graphName string) {
	if e.metrics != nil {
		e.metrics.RunStarted(graphName)
	}
}

func (e *Engine) recordNodeLatency(graphName, nodeName string, d time.Duration, status string) {
	if e.metrics != nil {
		e.metrics.RecordNodeLatency(graphName, nodeName, d, status)
	}
}

func (e *Engine) finishFailed(ctx context.Context, graphName, runID string, state State, start time.Time, iteration int, err error) {
	status := "failed"
	if _, ok := err.(*CancelledError); ok {
		status = "cancelled"
	}
	e.emitter.Emit(ctx, emit.Event{
		Kind:       emit.KindWorkflowCompleted,
		RunID:      runID,
		Iteration:  iteration,
		Timestamp:  time.Now(),
		DurationMS: time.Since(start).Milliseconds(),
		Status:     status,
		FinalState: state,
		Error:      err.Error(),
	})
	if e.metrics != nil {
		e.metrics.RunFinished(graphName, status)
	}
}
