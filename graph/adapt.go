package graph

import (
	"context"

	"github.com/flowgraph/workflow-core/graph/tool"
)

// InputKey is the well-known State.Data key a graph author populates
// before routing to a node wrapping an adapted tool.Tool, and OutputKey
// is where that tool's result lands in the returned delta. Graphs that
// need more structured wiring should register a ToolFunc directly instead
// of going through AdaptTool.
const (
	InputKey  = "_tool_input"
	OutputKey = "_tool_output"
)

// AdaptTool bridges a tool.Tool (operating on map[string]any) into a
// ToolFunc (operating on State) for registration in a Registry. The
// node's input is read from state.Data[InputKey] (nil if absent), and the
// tool's result is written to a delta's Data[OutputKey].
func AdaptTool(t tool.Tool) ToolFunc {
	return func(ctx context.Context, state State) (State, error) {
		var input map[string]any
		if raw, ok := state.Data[InputKey]; ok {
			input, _ = raw.(map[string]any)
		}
		out, err := t.Call(ctx, input)
		if err != nil {
			return State{}, err
		}
		return State{Data: map[string]any{OutputKey: out}}, nil
	}
}
