package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"courtclub/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	handler := func(event *Event) error {
		received = event
		callCount++
		return nil
	}

	bus.Subscribe("test_event", handler)

	payload := map[string]string{"foo": "bar"}
	err := bus.PublishJSON("test_event", payload)
	if err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}

	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}

	var decoded map[string]string
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}

	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	// Should not panic
	bus.Publish(&Event{Type: "unknown"})
	err := bus.PublishJSON("unknown", nil)
	if err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}
}

func TestEventBusWildcard(t *testing.T) {
	bus := NewEventBus()
	var seen []string

	bus.Subscribe(AllEvents, func(e *Event) error { seen = append(seen, e.Type); return nil })
	bus.Subscribe(EventMemberJoined, func(_ *Event) error { return nil })

	bus.Publish(&Event{Type: EventMemberJoined})
	bus.Publish(&Event{Type: EventNewsChanged})

	if len(seen) != 2 || seen[0] != EventMemberJoined || seen[1] != EventNewsChanged {
		t.Errorf("wildcard handler saw %v", seen)
	}
}

func TestPublishAssignsID(t *testing.T) {
	bus := NewEventBus()
	var got *Event
	bus.Subscribe("x", func(e *Event) error { got = e; return nil })
	bus.Publish(&Event{Type: "x"})

	if got == nil || got.ID == "" || got.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be set, got %+v", got)
	}
}

func TestNewJSONEvent(t *testing.T) {
	payload := ReservationEventPayload{Reservation: models.Reservation{ID: "res-123", TimeLabel: "10:00 AM"}}
	event, err := NewJSONEvent(EventReservationCreated, payload)
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}

	if event.Type != EventReservationCreated {
		t.Errorf("expected %s, got %s", EventReservationCreated, event.Type)
	}

	if event.CreatedAt.IsZero() {
		t.Errorf("expected CreatedAt to be set")
	}

	var decoded ReservationEventPayload
	if err := event.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if decoded.Reservation.ID != "res-123" {
		t.Errorf("expected reservation res-123, got %s", decoded.Reservation.ID)
	}
}

func TestAsync(t *testing.T) {
	bus := NewEventBus()
	errs := make(chan error, 1)
	bus.Subscribe(EventMemberJoined, Async(func(e *Event) error {
		return errors.New("boom " + e.Type)
	}, func(_ *Event, err error) {
		errs <- err
	}))

	if err := bus.PublishJSON(EventMemberJoined, MemberEventPayload{}); err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	select {
	case err := <-errs:
		if err.Error() != "boom member_joined" {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("async handler did not run")
	}
}
