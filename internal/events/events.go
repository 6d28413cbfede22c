package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"salonbook/internal/models"

	"github.com/google/uuid"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventBookingUpdated   = "booking_updated"
)

// BookingEventTypes lists every booking event in lifecycle order.
var BookingEventTypes = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingCancelled,
	EventBookingCompleted,
	EventBookingUpdated,
}

// TransitionEvent maps a new booking status to the event it raises.
func TransitionEvent(status string) string {
	switch status {
	case models.StatusConfirmed:
		return EventBookingConfirmed
	case models.StatusCancelled:
		return EventBookingCancelled
	case models.StatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingUpdated
	}
}

// BookingEventPayload is the booking snapshot carried by every booking event.
type BookingEventPayload struct {
	BookingID     int64    `json:"booking_id"`
	PlaceID       int64    `json:"place_id"`
	EmployeeID    int64    `json:"employee_id"`
	UserID        *int64   `json:"user_id,omitempty"`
	CustomerName  string   `json:"customer_name"`
	BookingDate   string   `json:"booking_date"`
	BookingTime   string   `json:"booking_time"`
	Status        string   `json:"status"`
	PrevStatus    string   `json:"prev_status,omitempty"`
	TotalPrice    int64    `json:"total_price"`
	TotalDuration int      `json:"total_duration"`
	Changes       []string `json:"changes,omitempty"`
}

// PayloadFromBooking snapshots b.
func PayloadFromBooking(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:     b.ID,
		PlaceID:       b.PlaceID,
		EmployeeID:    b.EmployeeID,
		UserID:        b.UserID,
		CustomerName:  b.CustomerName,
		BookingDate:   b.DateString(),
		BookingTime:   b.Time.String(),
		Status:        b.Status,
		TotalPrice:    b.TotalPrice,
		TotalDuration: b.TotalDuration,
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	BookingID int64
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Outbox converts the event into a pending outbox row.
func (e *Event) Outbox() *models.OutboxEvent {
	return &models.OutboxEvent{
		EventID:   e.ID,
		EventType: e.Type,
		BookingID: e.BookingID,
		Payload:   string(e.Payload),
		Status:    models.OutboxPending,
	}
}

// FromOutbox rebuilds the event stored in an outbox row.
func FromOutbox(row *models.OutboxEvent) *Event {
	return &Event{
		ID:        row.EventID,
		Type:      row.EventType,
		BookingID: row.BookingID,
		Payload:   []byte(row.Payload),
		CreatedAt: row.CreatedAt,
	}
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers handler for every booking event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, t := range BookingEventTypes {
		b.Subscribe(t, handler)
	}
}

func (b *EventBus) handlers(eventType string) []EventHandler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]EventHandler(nil), b.subscribers[eventType]...)
}

// HasSubscribers reports whether anything listens for eventType.
func (b *EventBus) HasSubscribers(eventType string) bool {
	return len(b.handlers(eventType)) > 0
}

// Publish notifies subscribers of the event type, ignoring handler errors.
func (b *EventBus) Publish(ctx context.Context, event *Event) {
	_ = b.PublishSync(ctx, event)
}

// PublishSync runs every handler and joins their errors. Every handler runs
// even when an earlier one fails.
func (b *EventBus) PublishSync(ctx context.Context, event *Event) error {
	if b == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range b.handlers(event.Type) {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewJSONEvent builds an Event with a JSON payload and a fresh id.
func NewJSONEvent(eventType string, bookingID int64, payload any) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		BookingID: bookingID,
		Payload:   raw,
		CreatedAt: time.Now(),
	}, nil
}

// NewBookingEvent snapshots b into an event of eventType.
func NewBookingEvent(eventType string, b *models.Booking, mutate func(*BookingEventPayload)) (*Event, error) {
	payload := PayloadFromBooking(b)
	if mutate != nil {
		mutate(&payload)
	}
	return NewJSONEvent(eventType, b.ID, payload)
}
