package service

import (
	"context"
	"fmt"

	"salonbook/internal/domain"
	"salonbook/internal/events"

	"github.com/rs/zerolog"
)

// NotificationHandler forwards every booking event to a Notifier. Errors
// are returned so the dispatcher retries them.
type NotificationHandler struct {
	notifier domain.Notifier
	logger   *zerolog.Logger
}

func NewNotificationHandler(notifier domain.Notifier, logger *zerolog.Logger) *NotificationHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "notifications").Logger()
	return &NotificationHandler{notifier: notifier, logger: &l}
}

func (h *NotificationHandler) Register(bus *events.EventBus) {
	bus.SubscribeAll(h.Handle)
}

func (h *NotificationHandler) Handle(ctx context.Context, event *events.Event) error {
	if err := h.notifier.Notify(ctx, event.BookingID, event.Type); err != nil {
		h.logger.Warn().Err(err).Int64("booking_id", event.BookingID).Str("event", event.Type).Msg("notification failed")
		return fmt.Errorf("notify %s for booking %d: %w", event.Type, event.BookingID, err)
	}
	return nil
}
