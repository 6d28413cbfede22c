package notify

import (
	"context"
	"fmt"
	"strings"

	"salonbook/internal/events"
	"salonbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const parseModeMarkdown = "Markdown"

// Sender is the part of the Telegram bot API the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BookingGetter loads the booking a notification is about.
type BookingGetter interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
}

// TelegramNotifier posts booking events into one staff chat.
type TelegramNotifier struct {
	sender   Sender
	bookings BookingGetter
	chatID   int64
	logger   *zerolog.Logger
}

func NewTelegramNotifier(sender Sender, bookings BookingGetter, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "telegram-notifier").Logger()
	return &TelegramNotifier{sender: sender, bookings: bookings, chatID: chatID, logger: &l}
}

// NewBotSender connects to the Bot API with token.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, bookingID int64, event string) error {
	booking, err := n.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking %d: %w", bookingID, err)
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatBooking(event, booking))
	msg.ParseMode = parseModeMarkdown
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.Debug().Int64("booking_id", bookingID).Str("event", event).Msg("telegram notification sent")
	return nil
}

var eventTitles = map[string]string{
	events.EventBookingCreated:   "🆕 New booking",
	events.EventBookingConfirmed: "✅ Booking confirmed",
	events.EventBookingCancelled: "❌ Booking cancelled",
	events.EventBookingCompleted: "🏁 Booking completed",
	events.EventBookingUpdated:   "✏️ Booking changed",
}

// FormatBooking renders a booking as a Markdown chat message.
func FormatBooking(event string, b *models.Booking) string {
	title, ok := eventTitles[event]
	if !ok {
		title = event
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "*%s* #%d\n", title, b.ID)
	fmt.Fprintf(&sb, "📅 %s %s\n", b.DateString(), b.Time)
	fmt.Fprintf(&sb, "👤 %s\n", escapeMarkdown(b.CustomerName))
	if b.CustomerPhone != "" {
		fmt.Fprintf(&sb, "📞 %s\n", escapeMarkdown(b.CustomerPhone))
	}
	if len(b.Services) > 0 {
		names := make([]string, 0, len(b.Services))
		for _, s := range b.Services {
			names = append(names, escapeMarkdown(s.Name))
		}
		fmt.Fprintf(&sb, "💇 %s (%d min)\n", strings.Join(names, ", "), b.TotalDuration)
	}
	fmt.Fprintf(&sb, "💰 %d.%02d\n", b.TotalPrice/100, b.TotalPrice%100)
	fmt.Fprintf(&sb, "Status: %s", b.Status)
	return sb.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
