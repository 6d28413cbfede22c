package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"salonbook/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe("test_event", func(_ context.Context, event *Event) error {
		received = event
		callCount++
		return nil
	})

	event, err := NewJSONEvent("test_event", 7, map[string]string{"foo": "bar"})
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}
	if err := bus.PublishSync(context.Background(), event); err != nil {
		t.Fatalf("PublishSync failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != "test_event" || received.BookingID != 7 {
		t.Errorf("unexpected event %+v", received)
	}

	var decoded map[string]string
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusJoinsHandlerErrors(t *testing.T) {
	bus := NewEventBus()
	first := errors.New("first")
	second := errors.New("second")
	var ran int

	bus.Subscribe("event", func(context.Context, *Event) error { ran++; return first })
	bus.Subscribe("event", func(context.Context, *Event) error { ran++; return nil })
	bus.Subscribe("event", func(context.Context, *Event) error { ran++; return second })

	err := bus.PublishSync(context.Background(), &Event{Type: "event"})
	if ran != 3 {
		t.Errorf("expected all three handlers to run, got %d", ran)
	}
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("expected both errors joined, got %v", err)
	}

	// Publish swallows the same errors.
	bus.Publish(context.Background(), &Event{Type: "event"})
	if ran != 6 {
		t.Errorf("expected handlers to run again, got %d", ran)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	bus.Publish(context.Background(), &Event{Type: "unknown"})
	if bus.HasSubscribers("unknown") {
		t.Errorf("expected no subscribers")
	}

	var nilBus *EventBus
	if err := nilBus.PublishSync(context.Background(), &Event{Type: "unknown"}); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	seen := map[string]bool{}
	bus.SubscribeAll(func(_ context.Context, e *Event) error {
		seen[e.Type] = true
		return nil
	})

	for _, typ := range BookingEventTypes {
		bus.Publish(context.Background(), &Event{Type: typ})
	}
	if len(seen) != len(BookingEventTypes) {
		t.Errorf("expected %d event types, got %d", len(BookingEventTypes), len(seen))
	}
}

func TestBookingEventRoundTrip(t *testing.T) {
	userID := int64(42)
	b := &models.Booking{
		ID:         5,
		PlaceID:    1,
		EmployeeID: 10,
		UserID:     &userID,
		Date:       time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		Time:       models.NewClock(10, 0),
		Status:     models.StatusCompleted,
		TotalPrice: 3300,
	}

	event, err := NewBookingEvent(EventBookingCompleted, b, func(p *BookingEventPayload) {
		p.PrevStatus = models.StatusConfirmed
	})
	if err != nil {
		t.Fatalf("NewBookingEvent failed: %v", err)
	}
	if event.ID == "" || event.CreatedAt.IsZero() {
		t.Errorf("expected id and timestamp to be set")
	}

	row := event.Outbox()
	if row.Status != models.OutboxPending || row.EventID != event.ID || row.BookingID != 5 {
		t.Errorf("unexpected outbox row %+v", row)
	}

	back := FromOutbox(row)
	var payload BookingEventPayload
	if err := back.Decode(&payload); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.BookingDate != "2025-06-02" || payload.BookingTime != "10:00" {
		t.Errorf("unexpected date/time %s %s", payload.BookingDate, payload.BookingTime)
	}
	if payload.UserID == nil || *payload.UserID != 42 {
		t.Errorf("expected user 42")
	}
	if payload.PrevStatus != models.StatusConfirmed {
		t.Errorf("expected prev status confirmed, got %s", payload.PrevStatus)
	}
}

func TestTransitionEvent(t *testing.T) {
	cases := map[string]string{
		models.StatusConfirmed: EventBookingConfirmed,
		models.StatusCancelled: EventBookingCancelled,
		models.StatusCompleted: EventBookingCompleted,
		models.StatusPending:   EventBookingUpdated,
	}
	for status, want := range cases {
		if got := TransitionEvent(status); got != want {
			t.Errorf("TransitionEvent(%s) = %s, want %s", status, got, want)
		}
	}
}
