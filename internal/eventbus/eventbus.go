// Package eventbus decouples document lifecycle publishers (the indexer,
// the git sync runner, the file watcher) from subscribers (the graph
// mirror, cache invalidation, external Kafka consumers) through an
// in-process dispatcher.
package eventbus

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"compendium/internal/tenant"
)

// Type enumerates the document lifecycle events the bus carries.
type Type string

const (
	Created            Type = "Created"
	Updated            Type = "Updated"
	Deleted            Type = "Deleted"
	Promoted           Type = "Promoted"
	Superseded         Type = "Superseded"
	ReferencesResolved Type = "ReferencesResolved"
	Validated          Type = "Validated"
)

// Event is one document lifecycle notification.
type Event struct {
	Type          Type           `json:"event_type"`
	FilePath      string         `json:"file_path"`
	TenantKey     tenant.Key     `json:"tenant_key"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// Handler reacts to an Event. A handler failure is logged and does not
// affect other handlers or future events.
type Handler func(Event)

// Disposable removes the handler it was returned for.
type Disposable func()

type subscription struct {
	id      uint64
	typ     Type // ignored when any is set
	any     bool
	handler Handler
}

// Bus is an in-process event channel buffered to 1024 events, with a
// single dispatcher goroutine fanning out to registered handlers in
// parallel. Publish blocks while the buffer is full; no event is dropped.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]subscription
	nextID uint64

	events chan Event
	done   chan struct{}
	closed bool

	sink Sink
}

// Sink is an optional additive publication target (e.g. Kafka) that never
// gates delivery to in-process handlers; Publish to the sink is
// fire-and-forget.
type Sink interface {
	Publish(Event) error
}

// New starts a Bus with its dispatcher goroutine running. sink may be nil.
func New(sink Sink) *Bus {
	b := &Bus{
		subs:   make(map[uint64]subscription),
		events: make(chan Event, 1024),
		done:   make(chan struct{}),
		sink:   sink,
	}
	go b.dispatch()
	return b
}

// OnAny registers a handler invoked for every event type.
func (b *Bus) OnAny(h Handler) Disposable {
	return b.subscribe(subscription{any: true, handler: h})
}

// On registers a handler invoked only for events of the given type.
func (b *Bus) On(t Type, h Handler) Disposable {
	return b.subscribe(subscription{typ: t, handler: h})
}

func (b *Bus) subscribe(sub subscription) Disposable {
	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, sub.id)
		b.mu.Unlock()
	}
}

// Publish enqueues ev for dispatch. Publishing after Close is a no-op that
// logs a warning.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		log.Warn().Str("event_type", string(ev.Type)).Msg("eventbus: publish after shutdown, dropping")
		return
	}
	b.events <- ev
}

// Close stops accepting new events and drains the dispatcher. Already
// queued events are delivered before returning.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.events)
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)
	for ev := range b.events {
		b.deliver(ev)
		if b.sink != nil {
			if err := b.sink.Publish(ev); err != nil {
				log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("eventbus: sink publish failed")
			}
		}
	}
}

func (b *Bus) deliver(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.any || sub.typ == ev.Type {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event_type", string(ev.Type)).Msg("eventbus: handler panicked")
				}
			}()
			h(ev)
		}(h)
	}
	wg.Wait()
}
