package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes structured event output to a writer, in text or JSONL
// form, grounded on the teacher's emit.LogEmitter (graph/emit/log.go).
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to w (os.Stdout if nil) in
// JSONL form when jsonMode is true, else a human-readable line format.
func NewLogEmitter(w io.Writer, jsonMode bool) *LogEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &LogEmitter{writer: w, jsonMode: jsonMode}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(_ context.Context, event Event) {
	if l.jsonMode {
		data, err := json.Marshal(event)
		if err != nil {
			_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
			return
		}
		_, _ = fmt.Fprintf(l.writer, "%s\n", data)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "[%s] run=%s node=%s iter=%d status=%s msg=%q\n",
		event.Kind, event.RunID, event.NodeName, event.Iteration, event.Status, event.Msg)
}

// Flush is a no-op: LogEmitter writes directly with no internal buffer.
// Wrap writer in a bufio.Writer and flush it directly if buffering is
// needed, matching the teacher's documented escape hatch.
func (l *LogEmitter) Flush(context.Context) error { return nil }
