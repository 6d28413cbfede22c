package service

import (
	"context"
	"fmt"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/models"

	"github.com/rs/zerolog"
)

// PointsCalculator decides how many points a completed booking earns.
type PointsCalculator interface {
	Points(ctx context.Context, payload events.BookingEventPayload) (int64, error)
}

// FixedPoints awards the same amount for every completed booking.
type FixedPoints int64

func (f FixedPoints) Points(context.Context, events.BookingEventPayload) (int64, error) {
	return int64(f), nil
}

// PricePoints awards one point per whole currency unit; prices are stored in
// minor units.
type PricePoints struct {
	MinorPerUnit int64
}

func (p PricePoints) Points(_ context.Context, payload events.BookingEventPayload) (int64, error) {
	if p.MinorPerUnit <= 0 {
		return 0, fmt.Errorf("minor units per point must be positive, got %d", p.MinorPerUnit)
	}
	return payload.TotalPrice / p.MinorPerUnit, nil
}

// RewardsHandler awards loyalty points on booking_completed. Replays are
// absorbed by the ledger, and a failing calculator awards nothing.
type RewardsHandler struct {
	catalog    domain.CatalogReader
	ledger     domain.RewardsLedger
	calculator PointsCalculator
	logger     *zerolog.Logger
}

func NewRewardsHandler(catalog domain.CatalogReader, ledger domain.RewardsLedger, calculator PointsCalculator, logger *zerolog.Logger) *RewardsHandler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "rewards").Logger()
	return &RewardsHandler{catalog: catalog, ledger: ledger, calculator: calculator, logger: &l}
}

// Register subscribes the handler on bus.
func (h *RewardsHandler) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCompleted, h.Handle)
}

func (h *RewardsHandler) Handle(ctx context.Context, event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		// A malformed payload will never succeed on retry.
		h.logger.Error().Err(err).Str("event_id", event.ID).Msg("dropping undecodable reward event")
		return nil
	}
	if payload.Status != models.StatusCompleted || payload.PrevStatus == models.StatusCompleted {
		return nil
	}
	if payload.UserID == nil {
		h.logger.Debug().Int64("booking_id", payload.BookingID).Msg("no linked user, skipping reward")
		return nil
	}

	place, err := h.catalog.GetPlace(ctx, payload.PlaceID)
	if err != nil {
		return fmt.Errorf("failed to load place for reward: %w", err)
	}
	if !place.RewardsEnabled {
		return nil
	}

	points, err := h.calculator.Points(ctx, payload)
	if err != nil {
		h.logger.Warn().Err(err).Int64("booking_id", payload.BookingID).Msg("reward calculation failed, awarding nothing")
		return nil
	}
	if points <= 0 {
		return nil
	}

	awarded, err := h.ledger.AwardPoints(ctx, *payload.UserID, payload.PlaceID, payload.BookingID, points)
	if err != nil {
		return fmt.Errorf("failed to award points: %w", err)
	}
	h.logger.Info().
		Int64("booking_id", payload.BookingID).
		Int64("user_id", *payload.UserID).
		Int64("points", points).
		Bool("awarded", awarded).
		Msg("reward processed")
	return nil
}
