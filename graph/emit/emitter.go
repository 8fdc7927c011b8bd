package emit

import "context"

// Emitter receives observability events from workflow execution. Emit
// must not block the engine's scheduling loop for long; slow backends
// should buffer or drop rather than stall node execution (spec.md §5).
//
// Implementations must be safe for concurrent use: multiple runs may
// share one Emitter.
type Emitter interface {
	// Emit sends a single event. It should not panic; backend failures
	// are the implementation's concern to log or swallow.
	Emit(ctx context.Context, event Event)

	// Flush blocks until any buffered events are delivered, or ctx is
	// done. Safe to call multiple times.
	Flush(ctx context.Context) error
}

// Multi fans an event out to several Emitters, continuing past an
// individual emitter's panic so one misbehaving backend (e.g. a broken
// OTel exporter) cannot take down the others.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, event Event) {
	for _, e := range m {
		safeEmit(ctx, e, event)
	}
}

func safeEmit(ctx context.Context, e Emitter, event Event) {
	defer func() { _ = recover() }()
	e.Emit(ctx, event)
}

// Flush implements Emitter.
func (m Multi) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range m {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
