package events

import (
	"encoding/json"
	"sync"
	"time"

	"courtclub/internal/models"
)

const (
	EventReservationCreated = "reservation_created"
	EventReservationUpdated = "reservation_updated"
	EventReservationDeleted = "reservation_deleted"
	EventSlotToggled        = "slot_toggled"
	EventWaitlistJoined     = "waitlist_joined"
	EventWaitlistRemoved    = "waitlist_removed"
	EventMemberJoined       = "member_joined"
	EventMemberRemoved      = "member_removed"
	EventNewsChanged        = "news_changed"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// ReservationEventPayload carries the full reservation so that consumers do
// not need to read the store.
type ReservationEventPayload struct {
	Reservation models.Reservation `json:"reservation"`
	ChangedBy   string             `json:"changed_by,omitempty"`
}

type SlotEventPayload struct {
	Date      models.Date `json:"date"`
	TimeLabel string      `json:"time_label"`
	Closed    bool        `json:"closed"`
}

type WaitlistEventPayload struct {
	Entry models.WaitlistEntry `json:"entry"`
}

type MemberEventPayload struct {
	Member models.Member `json:"member"`
}

type NewsEventPayload struct {
	Action string          `json:"action"`
	Item   models.NewsItem `json:"item"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into out.
func (e *Event) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type, or for every type when
// eventType is AllEvents.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	handlers = append(handlers, b.subscribers[AllEvents]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == "" {
		event.ID = models.NewID("evt")
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// Async runs handler in its own goroutine so that slow consumers such as mail
// delivery do not hold up the publisher. Errors are reported to onError.
func Async(handler EventHandler, onError func(event *Event, err error)) EventHandler {
	return func(event *Event) error {
		go func() {
			if err := handler(event); err != nil && onError != nil {
				onError(event, err)
			}
		}()
		return nil
	}
}
