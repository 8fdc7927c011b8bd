package graph

import "time"

// Options configures Engine.Execute behavior (spec.md §4.5, §6 env vars).
// Zero values are meaningful: MaxIterations == 0 means "fail before
// executing the entry node" (spec.md §8 boundary case), not "unlimited" —
// use DefaultOptions for sensible defaults.
type Options struct {
	// MaxIterations is the hard upper bound on executed nodes (spec.md
	// §4.5: "default 100"). Corresponds to DEFAULT_MAX_ITERATIONS (§6).
	MaxIterations int

	// Timeout is the wall-clock budget for the whole run, measured
	// between nodes (spec.md §4.5, §5). Zero disables the check.
	// Corresponds to DEFAULT_RUN_TIMEOUT_SECONDS (§6).
	Timeout time.Duration

	// MaxConcurrentTools bounds the worker pool used for synchronous
	// tools (spec.md §4.2). Zero means tools run inline.
	MaxConcurrentTools int
}

// DefaultOptions returns the engine's documented defaults: 100 max
// iterations (spec.md §4.5), no timeout, no tool concurrency bound.
func DefaultOptions() Options {
	return Options{MaxIterations: 100}
}

// Option is a functional option for Engine construction, following the
// teacher's `graph.Option` pattern (graph/options.go).
type Option func(*Options)

// WithMaxIterations overrides Options.MaxIterations.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithTimeout overrides Options.Timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxConcurrentTools overrides Options.MaxConcurrentTools.
func WithMaxConcurrentTools(n int) Option {
	return func(o *Options) { o.MaxConcurrentTools = n }
}
