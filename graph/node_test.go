package graph

import (
	"context"
	"errors"
	"testing"
)

func TestNode_Execute_Success(t *testing.T) {
	n := &Node{
		Name: "n1",
		Tool: func(ctx context.Context, s State) (State, error) {
			return State{Data: map[string]any{"ok": true}}, nil
		},
	}
	result := n.Execute(context.Background(), State{})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("expected StatusCompleted, got %s", result.Status)
	}
	if result.Delta.Data["ok"] != true {
		t.Fatalf("unexpected delta: %+v", result.Delta)
	}
}

func TestNode_Execute_ToolErrorWraps(t *testing.T) {
	n := &Node{
		Name: "n1",
		Tool: func(ctx context.Context, s State) (State, error) {
			return State{}, errors.New("boom")
		},
	}
	result := n.Execute(context.Background(), State{})
	nee, ok := result.Err.(*NodeExecutionError)
	if !ok || nee.NodeName != "n1" {
		t.Fatalf("expected NodeExecutionError for n1, got %v", result.Err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected StatusFailed, got %s", result.Status)
	}
	if len(result.Delta.Errors) != 1 {
		t.Fatalf("expected a single-entry error delta, got %v", result.Delta.Errors)
	}
}

func TestNode_Execute_PanicIsRecovered(t *testing.T) {
	n := &Node{
		Name: "n1",
		Tool: func(ctx context.Context, s State) (State, error) {
			panic("unexpected")
		},
	}
	result := n.Execute(context.Background(), State{})
	if result.Err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected StatusFailed after panic, got %s", result.Status)
	}
}

func TestNode_Execute_DispatchesOntoWorkerPool(t *testing.T) {
	pool := newWorkerPool(1)
	called := make(chan struct{}, 1)
	n := &Node{
		Name: "n1",
		Tool: func(ctx context.Context, s State) (State, error) {
			called <- struct{}{}
			return State{}, nil
		},
		async: false,
		pool:  pool,
	}
	result := n.Execute(context.Background(), State{})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	select {
	case <-called:
	default:
		t.Fatalf("expected tool to have been invoked via the pool")
	}
}
