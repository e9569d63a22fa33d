// Package bus is the process-wide event bus of spec.md §4.5: a typed
// pub/sub fan-out feeding both internal callers (the pipeline waiting
// on its own progress) and the /events SSE endpoints.
//
// Grounded on the teacher pack's steveyegge-beads internal/eventbus
// package (Register/Unregister/Dispatch over a handler slice) and its
// internal/rpc SSE handler (in-memory fan-out fallback) — replacing
// NATS JetStream publishing with a plain in-process channel per
// subscriber, since spec.md's bus has no durability requirement.
package bus

import (
	"sync"
)

// Event is the tagged-variant event type described in spec.md §4.5:
// Tag names the kind (e.g. "scan.start"), Payload carries its
// kind-specific data.
type Event struct {
	Tag     string
	Payload any
}

// Subscriber receives every event published after it subscribes.
type Subscriber struct {
	ch chan Event
}

// Events returns the channel events are delivered on. It is never
// closed; a consumer should stop reading once it calls its unsubscribe
// function (typically on its own context cancellation).
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Bus fans out published events to every live subscriber, in
// insertion order. Publish is backpressure-preserving (spec.md §4.5):
// it awaits each subscriber's channel rather than dropping events, so
// a slow SSE writer never desyncs from the exact event ordering §5
// promises. The only bound on that wait is the subscriber's own
// lifetime — once it unsubscribes, any Publish still trying to reach
// it gives up instead of blocking forever on a gone reader.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscription
	next int
}

type subscription struct {
	id   int
	ch   chan Event
	done chan struct{} // closed on unsubscribe
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns it plus an
// unsubscribe function. The returned channel is small and unbuffered
// in effect: Publish blocks until this subscriber (or whichever is
// slowest) has received the event, or until it unsubscribes.
func (b *Bus) Subscribe() (*Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event)
	sub := &subscription{id: id, ch: ch, done: make(chan struct{})}
	b.subs = append(b.subs, sub)

	unsubscribe := func() { b.unsubscribe(id) }
	return &Subscriber{ch: ch}, unsubscribe
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			close(s.done)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish fans out an event to every current subscriber, awaiting
// each one in turn. It snapshots the subscriber list under lock, then
// sends outside the lock so a blocked send never holds up Subscribe/
// Unsubscribe of unrelated subscribers.
func (b *Bus) Publish(tag string, payload any) {
	b.mu.RLock()
	snapshot := make([]*subscription, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	event := Event{Tag: tag, Payload: payload}
	for _, s := range snapshot {
		select {
		case s.ch <- event:
		case <-s.done:
			// Subscriber is gone; don't block forever on a dead reader.
		}
	}
}

// SubscriberCount reports how many subscribers are currently live.
// The daemon's idle-shutdown accounting does not use it; IdleMonitor
// keeps its own active_sse counter.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
