package run

import (
	"context"
	"testing"
	"time"

	"github.com/flowgraph/workflow-core/graph/emit"
)

func TestBroker_PublishDeliversToActiveSubscriber(t *testing.T) {
	b := NewBroker()
	subn := b.Subscribe("run-1")
	defer subn.Stop()

	b.Publish(context.Background(), "run-1", emit.Event{Kind: emit.KindNodeCompleted, NodeName: "a"}, false)

	select {
	case e := <-subn.Events:
		if e.NodeName != "a" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// Scenario F: a subscriber joining after the run has completed receives
// exactly one synthesized terminal event, then end-of-stream.
func TestBroker_LateSubscriberGetsSynthesizedTerminalEvent(t *testing.T) {
	b := NewBroker()
	terminal := emit.Event{Kind: emit.KindWorkflowCompleted, RunID: "run-1", Status: "completed"}
	b.Publish(context.Background(), "run-1", terminal, true)

	subn := b.Subscribe("run-1")
	defer subn.Stop()

	select {
	case e, ok := <-subn.Events:
		if !ok {
			t.Fatal("expected one event before close")
		}
		if e.Kind != emit.KindWorkflowCompleted {
			t.Fatalf("expected synthesized WorkflowCompleted, got %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for synthesized event")
	}

	if subn.Dropped() {
		t.Fatal("a fresh synthesized-terminal subscription must never report Dropped")
	}

	select {
	case _, ok := <-subn.Events:
		if ok {
			t.Fatal("expected channel to be closed after the single synthesized event")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for end-of-stream")
	}
}

func TestBroker_PublishToRunWithNoSubscribersIsNoop(t *testing.T) {
	b := NewBroker()
	// Must not panic or block.
	b.Publish(context.Background(), "nobody-listening", emit.Event{Kind: emit.KindLogEntry}, false)
}

func TestBroker_SlowSubscriberDropsOldestRatherThanBlocking(t *testing.T) {
	b := NewBroker()
	subn := b.Subscribe("run-1")
	defer subn.Stop()

	// Flood well past the subscriber buffer without reading.
	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(context.Background(), "run-1", emit.Event{Kind: emit.KindProgressUpdate, Iteration: i}, false)
	}

	// The channel must still be readable (not deadlocked) and bounded in size.
	count := 0
drain:
	for {
		select {
		case _, ok := <-subn.Events:
			if !ok {
				break drain
			}
			count++
		default:
			break drain
		}
	}
	if count > subscriberBufferSize {
		t.Fatalf("expected at most %d buffered events, got %d", subscriberBufferSize, count)
	}
	if !subn.Dropped() {
		t.Fatal("expected Dropped to report true after flooding past the buffer")
	}
}
