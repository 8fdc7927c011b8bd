package run

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/flowgraph/workflow-core/graph"
	"github.com/flowgraph/workflow-core/graph/emit"
	"github.com/flowgraph/workflow-core/store"
)

// ErrGraphNotFound reports that a run was requested for an unknown or
// soft-deleted graph name (spec.md §4.6 step 1).
var ErrGraphNotFound = fmt.Errorf("graph not found")

// Coordinator drives runs to completion in the background: resolving
// the persisted graph definition, executing it with graph.Engine, and
// mirroring its event stream into both the Broker and the
// ExecutionLog repository, grounded on the teacher's
// examples/concurrent_workflow orchestration style and
// yesoreyeram-thaiyyal's registry-over-mutex CRUD bookkeeping.
type Coordinator struct {
	repo     store.Repository
	registry *graph.Registry
	broker   *Broker
	metrics  *graph.EngineMetrics

	// sem bounds concurrently executing runs (spec.md §6
	// MAX_CONCURRENT_RUNS). nil means unbounded.
	sem chan struct{}

	mu       sync.Mutex
	cancels  map[string]context.CancelFunc
}

// NewCoordinator returns a Coordinator backed by repo for persistence
// and registry for tool resolution. maxConcurrentRuns <= 0 means
// unbounded.
func NewCoordinator(repo store.Repository, registry *graph.Registry, maxConcurrentRuns int) *Coordinator {
	c := &Coordinator{
		repo:     repo,
		registry: registry,
		broker:   NewBroker(),
		cancels:  make(map[string]context.CancelFunc),
	}
	if maxConcurrentRuns > 0 {
		c.sem = make(chan struct{}, maxConcurrentRuns)
	}
	return c
}

// WithMetrics attaches engine metrics to every run this coordinator
// drives, returning the coordinator for chaining.
func (c *Coordinator) WithMetrics(m *graph.EngineMetrics) *Coordinator {
	c.metrics = m
	return c
}

// Broker returns the coordinator's event broker, for subscribing to a
// run's live event stream.
func (c *Coordinator) Broker() *Broker { return c.broker }

// StartRun resolves graphName, persists a pending Run row, and begins
// executing it on a background goroutine, returning the run_id
// immediately (spec.md §4.6 steps 1-4). graphOpts configure the
// Engine for this run (max iterations, timeout).
func (c *Coordinator) StartRun(ctx context.Context, graphName string, initial graph.State, graphOpts ...graph.Option) (string, error) {
	graphRec, err := c.repo.GetGraphByName(ctx, graphName)
	if err != nil {
		if err == store.ErrNotFound {
			return "", ErrGraphNotFound
		}
		return "", fmt.Errorf("resolve graph: %w", err)
	}

	var def graph.Definition
	if err := json.Unmarshal(graphRec.Definition, &def); err != nil {
		return "", fmt.Errorf("decode graph definition: %w", err)
	}

	opts := graph.DefaultOptions()
	for _, opt := range graphOpts {
		opt(&opts)
	}

	g, err := graph.Build(def, c.registry, opts.MaxConcurrentTools)
	if err != nil {
		return "", fmt.Errorf("build graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return "", fmt.Errorf("validate graph: %w", err)
	}

	initialJSON, err := json.Marshal(initial)
	if err != nil {
		return "", fmt.Errorf("encode initial state: %w", err)
	}

	runRec, err := c.repo.CreateRun(ctx, graphRec.ID, initialJSON)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancels[runRec.RunID] = cancel
	c.mu.Unlock()

	go c.execute(runCtx, cancel, g, runRec.RunID, initial, graphOpts)

	return runRec.RunID, nil
}

// Cancel requests cancellation of runID. It is a no-op if the run has
// already reached a terminal state or does not exist.
func (c *Coordinator) Cancel(runID string) {
	c.mu.Lock()
	cancel, ok := c.cancels[runID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Coordinator) execute(ctx context.Context, cancel context.CancelFunc, g *graph.Graph, runID string, initial graph.State, opts []graph.Option) {
	defer cancel()
	defer func() {
		c.mu.Lock()
		delete(c.cancels, runID)
		c.mu.Unlock()
	}()

	if c.sem != nil {
		select {
		case c.sem <- struct{}{}:
			defer func() { <-c.sem }()
		case <-ctx.Done():
			return
		}
	}

	now := time.Now()
	_ = c.repo.UpdateRunStatus(ctx, runID, store.RunRunning, &now, nil)

	emitter := &coordinatorEmitter{repo: c.repo, broker: c.broker, runID: runID}
	engine := graph.NewEngine(emitter, graph.DefaultReducer, opts...)
	if c.metrics != nil {
		engine.WithMetrics(c.metrics)
	}

	start := time.Now()
	finalState, runErr := engine.Execute(ctx, g, runID, initial)

	finalJSON, marshalErr := json.Marshal(finalState)
	if marshalErr != nil {
		finalJSON = []byte("{}")
	}

	status := store.RunCompleted
	var errMsg *string
	if runErr != nil {
		msg := runErr.Error()
		switch runErr.(type) {
		case *graph.CancelledError:
			msg = "cancelled"
			status = store.RunCancelled
		case *graph.TimeoutError:
			msg = "timeout"
			status = store.RunFailed
		default:
			status = store.RunFailed
		}
		errMsg = &msg
	}

	completed := time.Now()
	totalIterations := finalState.Iteration
	totalMS := time.Since(start).Milliseconds()

	// Persist terminal state with a context detached from runCtx: by the
	// time a run reaches here after cancellation, ctx is already done, and
	// these writes must still land rather than be silently dropped by a
	// context-aware backend's ExecContext.
	persistCtx := context.Background()
	_ = c.repo.UpdateRunFinalState(persistCtx, runID, finalJSON, totalIterations, totalMS, errMsg)
	_ = c.repo.UpdateRunCurrentState(persistCtx, runID, finalJSON)
	_ = c.repo.UpdateRunStatus(persistCtx, runID, status, nil, &completed)
}

// coordinatorEmitter bridges the Engine's event stream into the
// ExecutionLog repository and the Broker, writing the log row before
// publishing the corresponding event so a subscriber observing
// NodeCompleted is guaranteed a subsequent repository read sees it
// (spec.md §5 ordering guarantee).
type coordinatorEmitter struct {
	repo   store.Repository
	broker *Broker
	runID  string
}

func (e *coordinatorEmitter) Emit(ctx context.Context, event emit.Event) {
	switch event.Kind {
	case emit.KindStatusUpdate, emit.KindNodeCompleted, emit.KindNodeFailed:
		var errMsg *string
		if event.Error != "" {
			errMsg = &event.Error
		}
		var durMS *int64
		if event.DurationMS > 0 {
			durMS = &event.DurationMS
		}
		_ = e.repo.AppendLog(ctx, store.ExecutionLogRecord{
			RunID:           e.runID,
			NodeName:        event.NodeName,
			Status:          event.Status,
			Iteration:       event.Iteration,
			ExecutionTimeMS: durMS,
			Timestamp:       event.Timestamp,
			ErrorMessage:    errMsg,
		})
	}

	terminal := event.Kind == emit.KindWorkflowCompleted
	e.broker.Publish(ctx, e.runID, event, terminal)
}

func (e *coordinatorEmitter) Flush(context.Context) error { return nil }
