package service

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/events"
	"salonbook/internal/logging"

	"github.com/rs/zerolog"
)

// SheetWriter mirrors a booking snapshot into an external spreadsheet.
type SheetWriter interface {
	UpsertBooking(ctx context.Context, payload events.BookingEventPayload, updatedAt time.Time) error
}

// SheetsSyncHandler keeps the spreadsheet copy of each booking current.
// Rows are rewritten from the event snapshot, so replays are harmless.
type SheetsSyncHandler struct {
	sheet  SheetWriter
	logger *zerolog.Logger
}

func NewSheetsSyncHandler(sheet SheetWriter, logger *zerolog.Logger) *SheetsSyncHandler {
	return &SheetsSyncHandler{sheet: sheet, logger: logging.Component(logger, "sheets-sync")}
}

func (h *SheetsSyncHandler) Register(bus *events.EventBus) {
	bus.SubscribeAll(h.Handle)
}

func (h *SheetsSyncHandler) Handle(ctx context.Context, event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("skipping undecodable event")
		return nil
	}

	updatedAt := event.CreatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if err := h.sheet.UpsertBooking(ctx, payload, updatedAt); err != nil {
		return fmt.Errorf("sync booking %d to sheet: %w", payload.BookingID, err)
	}
	return nil
}
