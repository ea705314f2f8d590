package events

import (
	"testing"
	"time"

	"github.com/dualpane/navigator/internal/location"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventLocationChanging)

	target := location.MustParse("/home/user/docs")
	bus.PublishLocation(EventLocationChanging, "left", target)

	select {
	case received := <-ch:
		ev, ok := received.(*LocationEvent)
		if !ok {
			t.Fatal("Expected LocationEvent")
		}
		if ev.PanelID != "left" {
			t.Errorf("Expected panel 'left', got '%s'", ev.PanelID)
		}
		if !ev.Location.Equal(target) {
			t.Errorf("Expected location %s, got %s", target, ev.Location)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch1 := bus.Subscribe(EventProgress)
	ch2 := bus.Subscribe(EventProgress)

	bus.PublishProgress("right", 50)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			ev, ok := received.(*ProgressEvent)
			if !ok {
				t.Fatal("Expected ProgressEvent")
			}
			if ev.Percent != 50 {
				t.Errorf("Subscriber %d: expected 50, got %d", i, ev.Percent)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeAll()

	bus.PublishProgress("left", 10)
	bus.PublishLocation(EventLocationChanged, "left", location.MustParse("/tmp"))

	var got []EventType
	for len(got) < 2 {
		select {
		case received := <-ch:
			got = append(got, received.Type())
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout, received %v", got)
		}
	}
	if got[0] != EventProgress || got[1] != EventLocationChanged {
		t.Errorf("Unexpected order: %v", got)
	}
}

func TestEventBus_DropsWhenFull(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	bus.Subscribe(EventProgress) // never drained

	bus.PublishProgress("left", 10)
	bus.PublishProgress("left", 20)

	if dropped := bus.DroppedEventCount(); dropped != 1 {
		t.Errorf("Expected 1 dropped event, got %d", dropped)
	}
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventProgress)
	bus.Unsubscribe(EventProgress, ch)

	bus.PublishProgress("left", 10)

	select {
	case ev := <-ch:
		t.Errorf("Expected no event after unsubscribe, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_PublishAfterClose(t *testing.T) {
	bus := NewEventBus(10)
	ch := bus.Subscribe(EventProgress)
	bus.Close()

	// Must not panic on closed channels.
	bus.PublishProgress("left", 10)

	if _, open := <-ch; open {
		t.Error("Channel should be closed")
	}
}
