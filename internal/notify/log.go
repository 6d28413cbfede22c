package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the log. It is used when no chat is
// configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "log-notifier").Logger()
	return &LogNotifier{logger: &l}
}

func (n *LogNotifier) Notify(_ context.Context, bookingID int64, event string) error {
	n.logger.Info().Int64("booking_id", bookingID).Str("event", event).Msg("booking notification")
	return nil
}
