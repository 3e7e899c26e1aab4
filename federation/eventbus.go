package federation

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// Event is a typed bus message. The closed set of implementations below is
// everything the core publishes.
type Event interface {
	EventName() string
}

type NoteUpdated struct {
	NoteId uuid.UUID
}

func (NoteUpdated) EventName() string { return "note.updated" }

type ActorMoved struct {
	SrcURI string
	DstURI string
}

func (ActorMoved) EventName() string { return "actor.moved" }

type ActorRefreshed struct {
	URI string
}

func (ActorRefreshed) EventName() string { return "actor.refreshed" }

type CacheInvalidate struct {
	URI string
}

func (CacheInvalidate) EventName() string { return "cache.invalidate" }

// EventBus fans typed events out to subscribers. Subscription is an explicit
// lifecycle: Subscribe returns the unsubscribe func, to be called on shutdown.
type EventBus struct {
	mu     sync.RWMutex
	nextId int
	subs   map[int]func(Event)
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]func(Event))}
}

// Subscribe registers a handler for all events. Handlers must not block.
func (b *EventBus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextId
	b.nextId++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to every subscriber. A panicking subscriber is
// logged and skipped so one handler cannot take down the publisher.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()

	for _, fn := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("EventBus: Subscriber panicked on %s: %v", ev.EventName(), r)
				}
			}()
			fn(ev)
		}()
	}
}
