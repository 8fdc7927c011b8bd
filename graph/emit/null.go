package emit

import "context"

// Null discards every event. Useful as the default Emitter for tests and
// for engines that only care about the persisted ExecutionLog, not
// real-time streaming.
type Null struct{}

// Emit implements Emitter.
func (Null) Emit(context.Context, Event) {}

// Flush implements Emitter.
func (Null) Flush(context.Context) error { return nil }
