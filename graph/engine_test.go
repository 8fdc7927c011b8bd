package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowgraph/workflow-core/graph/emit"
)

// recordingEmitter captures every event for scenario assertions.
type recordingEmitter struct {
	events []emit.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e emit.Event) { r.events = append(r.events, e) }
func (r *recordingEmitter) Flush(context.Context) error          { return nil }

func (r *recordingEmitter) completedNodes() []string {
	var out []string
	for _, e := range r.events {
		if e.Kind == emit.KindNodeCompleted {
			out = append(out, e.NodeName)
		}
	}
	return out
}

func incrementCount(delta int) ToolFunc {
	return func(_ context.Context, s State) (State, error) {
		current, _ := s.Data["count"].(int)
		return State{Data: map[string]any{"count": current + delta}}, nil
	}
}

// Scenario A - two-step linear.
func TestEngine_ScenarioA_TwoStepLinear(t *testing.T) {
	g := New("linear", "", "a")
	g.AddNode("a", incrementCount(1), NodeMeta{}, true, nil)
	g.AddNode("b", incrementCount(1), NodeMeta{}, true, nil)
	g.AddEdge(Edge{From: "a", To: "b"})
	require.NoError(t, g.Validate())

	rec := &recordingEmitter{}
	engine := NewEngine(rec, DefaultReducer)
	final, err := engine.Execute(context.Background(), g, "run-a", NewState("linear", "run-a", nil))

	require.NoError(t, err)
	require.Equal(t, 2, final.Data["count"])
	require.Equal(t, 2, final.Iteration) // total executed-node count
	require.Equal(t, []string{"a", "b"}, rec.completedNodes())
}

// Scenario B - conditional branching.
func TestEngine_ScenarioB_ConditionalBranching(t *testing.T) {
	setPath := func(path string) ToolFunc {
		return func(_ context.Context, s State) (State, error) {
			return State{Data: map[string]any{"path": path}}, nil
		}
	}
	buildGraph := func() *Graph {
		g := New("branch", "", "a")
		g.AddNode("a", func(_ context.Context, s State) (State, error) { return State{}, nil }, NodeMeta{}, true, nil)
		g.AddNode("b", setPath("high"), NodeMeta{}, true, nil)
		g.AddNode("c", setPath("low"), NodeMeta{}, true, nil)
		g.AddEdge(Edge{From: "a", To: "b", Predicate: func(s State) (bool, error) {
			v, _ := s.Data["value"].(int)
			return v > 5, nil
		}})
		g.AddEdge(Edge{From: "a", To: "c", Predicate: func(s State) (bool, error) {
			v, _ := s.Data["value"].(int)
			return v <= 5, nil
		}})
		return g
	}

	engine := NewEngine(&recordingEmitter{}, DefaultReducer)

	g1 := buildGraph()
	require.NoError(t, g1.Validate())
	final1, err := engine.Execute(context.Background(), g1, "run-b1", NewState("branch", "run-b1", map[string]any{"value": 10}))
	require.NoError(t, err)
	require.Equal(t, "high", final1.Data["path"])

	g2 := buildGraph()
	final2, err := engine.Execute(context.Background(), g2, "run-b2", NewState("branch", "run-b2", map[string]any{"value": 3}))
	require.NoError(t, err)
	require.Equal(t, "low", final2.Data["path"])
}

// Scenario C - bounded loop.
func TestEngine_ScenarioC_BoundedLoop(t *testing.T) {
	g := New("loop", "", "a")
	g.AddNode("a", incrementCount(1), NodeMeta{}, true, nil)
	g.AddNode("b", func(_ context.Context, s State) (State, error) { return State{}, nil }, NodeMeta{}, true, nil)
	g.AddEdge(Edge{From: "a", To: "b", Predicate: func(s State) (bool, error) {
		c, _ := s.Data["count"].(int)
		return c < 3, nil
	}})
	g.AddEdge(Edge{From: "b", To: "a"})
	require.NoError(t, g.Validate())

	rec := &recordingEmitter{}
	engine := NewEngine(rec, DefaultReducer)
	final, err := engine.Execute(context.Background(), g, "run-c", NewState("loop", "run-c", nil))

	require.NoError(t, err)
	require.Equal(t, 3, final.Data["count"])
	require.Equal(t, []string{"a", "b", "a", "b", "a"}, rec.completedNodes())
}

// Scenario D - infinite-loop guard.
func TestEngine_ScenarioD_MaxIterationsGuard(t *testing.T) {
	g := New("infinite", "", "x")
	g.AddNode("x", func(_ context.Context, s State) (State, error) { return State{}, nil }, NodeMeta{}, true, nil)
	g.AddEdge(Edge{From: "x", To: "x", Predicate: func(State) (bool, error) { return true, nil }})
	require.NoError(t, g.Validate())

	rec := &recordingEmitter{}
	engine := NewEngine(rec, DefaultReducer, WithMaxIterations(5))
	_, err := engine.Execute(context.Background(), g, "run-d", NewState("infinite", "run-d", nil))

	require.Error(t, err)
	_, ok := err.(*MaxIterationsExceededError)
	require.True(t, ok, "expected MaxIterationsExceededError, got %T: %v", err, err)
	require.Len(t, rec.completedNodes(), 5)
}

// Scenario E - node failure.
func TestEngine_ScenarioE_NodeFailure(t *testing.T) {
	g := New("fails", "", "a")
	g.AddNode("a", func(_ context.Context, s State) (State, error) { return State{}, nil }, NodeMeta{}, true, nil)
	g.AddNode("b", func(_ context.Context, s State) (State, error) {
		return State{}, context.DeadlineExceeded
	}, NodeMeta{}, true, nil)
	g.AddEdge(Edge{From: "a", To: "b"})
	require.NoError(t, g.Validate())

	rec := &recordingEmitter{}
	engine := NewEngine(rec, DefaultReducer)
	final, err := engine.Execute(context.Background(), g, "run-e", NewState("fails", "run-e", nil))

	require.Error(t, err)
	require.Equal(t, []string{"a"}, rec.completedNodes())
	require.Len(t, final.Errors, 1)
	require.Contains(t, final.Errors[0], "b")
}

// Boundary: a single-node graph with no edges runs once and terminates.
func TestEngine_SingleNodeNoEdges(t *testing.T) {
	g := New("single", "", "only")
	g.AddNode("only", incrementCount(1), NodeMeta{}, true, nil)
	require.NoError(t, g.Validate())

	engine := NewEngine(&recordingEmitter{}, DefaultReducer)
	final, err := engine.Execute(context.Background(), g, "run-single", NewState("single", "run-single", nil))
	require.NoError(t, err)
	require.Equal(t, 1, final.Data["count"])
}

// Boundary: max_iterations = 0 fails before executing the entry node.
func TestEngine_MaxIterationsZeroFailsImmediately(t *testing.T) {
	g := New("single", "", "only")
	g.AddNode("only", incrementCount(1), NodeMeta{}, true, nil)
	require.NoError(t, g.Validate())

	rec := &recordingEmitter{}
	engine := NewEngine(rec, DefaultReducer, WithMaxIterations(0))
	_, err := engine.Execute(context.Background(), g, "run-zero", NewState("single", "run-zero", nil))

	require.Error(t, err)
	require.Empty(t, rec.completedNodes())
}

// Boundary: entry node with two unconditional edges selects the first-inserted.
func TestEngine_FirstInsertedUnconditionalEdgeWins(t *testing.T) {
	g := New("fanout", "", "a")
	g.AddNode("a", func(_ context.Context, s State) (State, error) { return State{}, nil }, NodeMeta{}, true, nil)
	g.AddNode("b", func(_ context.Context, s State) (State, error) {
		return State{Data: map[string]any{"hit": "b"}}, nil
	}, NodeMeta{}, true, nil)
	g.AddNode("c", func(_ context.Context, s State) (State, error) {
		return State{Data: map[string]any{"hit": "c"}}, nil
	}, NodeMeta{}, true, nil)
	g.AddEdge(Edge{From: "a", To: "b"})
	g.AddEdge(Edge{From: "a", To: "c"})
	require.NoError(t, g.Validate())

	engine := NewEngine(&recordingEmitter{}, DefaultReducer)
	final, err := engine.Execute(context.Background(), g, "run-fanout", NewState("fanout", "run-fanout", nil))
	require.NoError(t, err)
	require.Equal(t, "b", final.Data["hit"])
}

// Boundary: a context already cancelled terminates the run as Cancelled.
func TestEngine_CancellationObservedAtLoopHead(t *testing.T) {
	g := New("cancel", "", "a")
	g.AddNode("a", func(_ context.Context, s State) (State, error) { return State{}, nil }, NodeMeta{}, true, nil)
	require.NoError(t, g.Validate())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(&recordingEmitter{}, DefaultReducer)
	_, err := engine.Execute(ctx, g, "run-cancel", NewState("cancel", "run-cancel", nil))
	require.Error(t, err)
	_, ok := err.(*CancelledError)
	require.True(t, ok, "expected CancelledError, got %T: %v", err, err)
}
