package run

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/flowgraph/workflow-core/graph/emit"
)

// subscriberBufferSize bounds how many events a slow subscriber can
// queue before the broker starts dropping the oldest pending event for
// it, per the lossy-backpressure policy of spec.md §4.7.
const subscriberBufferSize = 64

// subscriber is one live listener for a run's event stream. lossy is
// read by Subscription.Dropped without holding Broker.mu, so it is an
// atomic rather than a plain bool.
type subscriber struct {
	ch     chan emit.Event
	lossy  atomic.Bool
	closed bool
}

// Subscription is a live handle on a run's event stream returned by
// Broker.Subscribe.
type Subscription struct {
	// Events yields the run's event stream; it is closed once the run
	// reaches a terminal state or Stop is called.
	Events <-chan emit.Event

	sub  *subscriber
	stop func()
}

// Dropped reports whether the broker has ever discarded a buffered
// event for this subscription because the caller fell behind (spec.md
// §4.7). A caller observing true has a gap in its event stream and
// should fall back to polling the repository's ExecutionLog/Run rows
// for ground truth.
func (s *Subscription) Dropped() bool {
	if s.sub == nil {
		return false
	}
	return s.sub.lossy.Load()
}

// Stop unsubscribes and releases the subscription's resources. Safe to
// call more than once.
func (s *Subscription) Stop() { s.stop() }

// Broker is a per-run publish/subscribe fan-out for observability
// events, grounded on the non-blocking backpressure-dropping send
// pattern of StreamingListener.emitEvent (jemygraw-langgraphgo/graph/
// streaming.go), adapted from a single global listener to a map of
// per-run subscriber sets guarded by one lock (spec.md §4.7, §5).
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
	terminal    map[string]emit.Event // run_id -> synthesized terminal event, set once
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[string]map[*subscriber]struct{}),
		terminal:    make(map[string]emit.Event),
	}
}

// Subscribe returns a Subscription for runID. If runID has already
// reached a terminal state, the returned Events channel yields exactly
// one synthesized terminal event and is then closed (spec.md §4.7).
// Subscription.Stop unsubscribes and must be called to release
// resources once the caller stops reading.
func (b *Broker) Subscribe(runID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if terminalEvent, done := b.terminal[runID]; done {
		ch := make(chan emit.Event, 1)
		ch <- terminalEvent
		close(ch)
		return &Subscription{Events: ch, stop: func() {}}
	}

	sub := &subscriber{ch: make(chan emit.Event, subscriberBufferSize)}
	if b.subscribers[runID] == nil {
		b.subscribers[runID] = make(map[*subscriber]struct{})
	}
	b.subscribers[runID][sub] = struct{}{}

	stop := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subscribers[runID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subscribers, runID)
			}
		}
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	return &Subscription{Events: sub.ch, sub: sub, stop: stop}
}

// Publish fans event out to every current subscriber of runID. A
// subscriber whose buffer is full has its oldest pending event dropped
// to make room, rather than blocking the caller (spec.md §4.7); Publish
// to a run with no subscribers is a no-op. If event marks a terminal
// outcome, Publish also records and later replays it to late
// subscribers, then closes every current subscriber's channel.
func (b *Broker) Publish(ctx context.Context, runID string, event emit.Event, terminal bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers[runID] {
		b.send(sub, event)
	}

	if terminal {
		b.terminal[runID] = event
		for sub := range b.subscribers[runID] {
			if !sub.closed {
				sub.closed = true
				close(sub.ch)
			}
		}
		delete(b.subscribers, runID)
	}
}

// send delivers event to sub without blocking, dropping the oldest
// queued event first if the buffer is saturated.
func (b *Broker) send(sub *subscriber, event emit.Event) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- event:
		return
	default:
	}

	select {
	case <-sub.ch:
		sub.lossy.Store(true)
	default:
	}
	select {
	case sub.ch <- event:
	default:
	}
}
