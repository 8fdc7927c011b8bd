package graph

import (
	"context"
	"testing"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	fn := func(ctx context.Context, s State) (State, error) { return s, nil }
	if err := r.Register("echo", fn, ToolMeta{Description: "echoes state"}); err != nil {
		t.Fatalf("unexpected error registering: %v", err)
	}

	got, meta, err := r.Lookup("echo")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected non-nil ToolFunc")
	}
	if meta.Description != "echoes state" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestRegistry_DuplicateRegistrationFails(t *testing.T) {
	r := NewRegistry()
	fn := func(ctx context.Context, s State) (State, error) { return s, nil }
	if err := r.Register("echo", fn, ToolMeta{}); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	err := r.Register("echo", fn, ToolMeta{})
	if _, ok := err.(*ToolAlreadyRegisteredError); !ok {
		t.Fatalf("expected ToolAlreadyRegisteredError, got %v", err)
	}
}

func TestRegistry_LookupMissingFails(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Lookup("nope")
	if _, ok := err.(*ToolNotFoundError); !ok {
		t.Fatalf("expected ToolNotFoundError, got %v", err)
	}
}

func TestRegistry_PredicateRoundTrip(t *testing.T) {
	r := NewRegistry()
	pred := func(s State) (bool, error) { return true, nil }
	if err := r.RegisterPredicate("always", pred); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.LookupPredicate("always")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	ok, err := got(State{})
	if err != nil || !ok {
		t.Fatalf("predicate round-trip failed: ok=%v err=%v", ok, err)
	}
}
