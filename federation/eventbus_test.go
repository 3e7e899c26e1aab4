package federation

import (
	"testing"

	"github.com/google/uuid"
)

func TestEventBusPublish(t *testing.T) {
	bus := NewEventBus()

	var got []Event
	bus.Subscribe(func(ev Event) {
		got = append(got, ev)
	})

	noteId := uuid.New()
	bus.Publish(NoteUpdated{NoteId: noteId})
	bus.Publish(ActorMoved{SrcURI: "https://a.example/u/x", DstURI: "https://b.example/u/x"})

	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if ev, ok := got[0].(NoteUpdated); !ok || ev.NoteId != noteId {
		t.Errorf("First event wrong: %v", got[0])
	}
	if got[1].EventName() != "actor.moved" {
		t.Errorf("Expected actor.moved, got %q", got[1].EventName())
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()

	first := 0
	second := 0
	unsub := bus.Subscribe(func(Event) { first++ })
	bus.Subscribe(func(Event) { second++ })

	bus.Publish(CacheInvalidate{URI: "https://example.com/users/alice"})
	unsub()
	bus.Publish(CacheInvalidate{URI: "https://example.com/users/alice"})

	if first != 1 {
		t.Errorf("Unsubscribed handler ran %d times, want 1", first)
	}
	if second != 2 {
		t.Errorf("Remaining handler ran %d times, want 2", second)
	}
}

func TestEventBusPanickingSubscriber(t *testing.T) {
	bus := NewEventBus()

	bus.Subscribe(func(Event) { panic("bad handler") })
	delivered := false
	bus.Subscribe(func(Event) { delivered = true })

	bus.Publish(ActorRefreshed{URI: "https://example.com/users/alice"})

	if !delivered {
		t.Error("Panicking subscriber stopped delivery to the others")
	}
}
