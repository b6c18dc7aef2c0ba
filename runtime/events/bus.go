// Package events provides a lightweight pub/sub event bus for dialog observability.
package events

import (
	"sync"
	"sync/atomic"
)

// defaultQueueSize is the number of events buffered before Publish drops.
const defaultQueueSize = 1024

// Listener is a function that handles events.
type Listener func(*Event)

// EventBus delivers events to listeners on a single background goroutine, so
// listeners observe events in publish order. Publish never blocks; when the
// queue is full the event is dropped and counted.
type EventBus struct {
	mu              sync.RWMutex
	listeners       map[EventType][]Listener
	globalListeners []Listener

	queue   chan *Event
	done    chan struct{}
	closed  bool
	dropped atomic.Uint64

	pendingMu sync.Mutex
	drained   *sync.Cond
	pending   int
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithQueueSize sets the delivery buffer size.
func WithQueueSize(n int) BusOption {
	return func(eb *EventBus) {
		if n > 0 {
			eb.queue = make(chan *Event, n)
		}
	}
}

// NewEventBus creates a new event bus and starts its dispatcher.
func NewEventBus(opts ...BusOption) *EventBus {
	eb := &EventBus{
		listeners: make(map[EventType][]Listener),
		queue:     make(chan *Event, defaultQueueSize),
		done:      make(chan struct{}),
	}
	eb.drained = sync.NewCond(&eb.pendingMu)
	for _, opt := range opts {
		opt(eb)
	}
	go eb.dispatch()
	return eb
}

// Subscribe registers a listener for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, listener Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners[eventType] = append(eb.listeners[eventType], listener)
}

// SubscribeAll registers a listener for all event types.
func (eb *EventBus) SubscribeAll(listener Listener) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.globalListeners = append(eb.globalListeners, listener)
}

// Publish queues an event for delivery. Events published after Close are dropped.
func (eb *EventBus) Publish(event *Event) {
	if event == nil {
		return
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		eb.dropped.Add(1)
		return
	}
	eb.track(1)
	select {
	case eb.queue <- event:
	default:
		eb.track(-1)
		eb.dropped.Add(1)
	}
}

// Flush blocks until every queued event has been delivered.
func (eb *EventBus) Flush() {
	eb.pendingMu.Lock()
	defer eb.pendingMu.Unlock()
	for eb.pending > 0 {
		eb.drained.Wait()
	}
}

func (eb *EventBus) track(delta int) {
	eb.pendingMu.Lock()
	eb.pending += delta
	if eb.pending == 0 {
		eb.drained.Broadcast()
	}
	eb.pendingMu.Unlock()
}

// Close delivers queued events and stops the dispatcher. It is safe to call
// more than once.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	if !eb.closed {
		eb.closed = true
		close(eb.queue)
	}
	eb.mu.Unlock()
	<-eb.done
}

// Dropped returns how many events were discarded.
func (eb *EventBus) Dropped() uint64 {
	return eb.dropped.Load()
}

// Clear removes all listeners (primarily for tests).
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = make(map[EventType][]Listener)
	eb.globalListeners = nil
}

func (eb *EventBus) dispatch() {
	defer close(eb.done)
	for event := range eb.queue {
		eb.mu.RLock()
		specific := append([]Listener(nil), eb.listeners[event.Type]...)
		global := append([]Listener(nil), eb.globalListeners...)
		eb.mu.RUnlock()

		for _, listener := range specific {
			safeInvoke(listener, event)
		}
		for _, listener := range global {
			safeInvoke(listener, event)
		}
		eb.track(-1)
	}
}

func safeInvoke(listener Listener, event *Event) {
	defer func() { _ = recover() }()
	listener(event)
}
