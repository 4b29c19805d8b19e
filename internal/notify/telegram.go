// Package notify sends booking confirmations and front desk alerts in reaction
// to domain events.
package notify

import (
	"fmt"
	"strings"

	"courtclub/internal/domain"
	"courtclub/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier posts club activity to the front desk chat.
type TelegramNotifier struct {
	bot    domain.TelegramSender
	chatID int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatID int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}
}

// NewTelegramBot connects to the Bot API.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// HandleEvent is an events.EventHandler. Events without a front desk text are ignored.
func (n *TelegramNotifier) HandleEvent(e *events.Event) error {
	text, err := FrontDeskText(e)
	if err != nil {
		n.logger.Error().Err(err).Str("event_type", e.Type).Msg("failed to decode event")
		return err
	}
	if text == "" {
		return nil
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		n.logger.Error().Err(err).Str("event_type", e.Type).Msg("failed to send telegram alert")
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// FrontDeskText renders the alert for e, or "" when e needs none.
func FrontDeskText(e *events.Event) (string, error) {
	switch e.Type {
	case events.EventReservationCreated, events.EventReservationUpdated, events.EventReservationDeleted:
		var p events.ReservationEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		r := p.Reservation
		title := map[string]string{
			events.EventReservationCreated: "🎾 New booking",
			events.EventReservationUpdated: "✏️ Booking changed",
			events.EventReservationDeleted: "❌ Booking cancelled",
		}[e.Type]

		var b strings.Builder
		fmt.Fprintf(&b, "%s\n", title)
		fmt.Fprintf(&b, "%s, %s (%d min)\n", r.Date, r.TimeLabel, r.DurationMinutes)
		fmt.Fprintf(&b, "%s (%s), %s\n", r.PlayerName, r.PlayerType, r.Contact)
		fmt.Fprintf(&b, "Total: $%.2f", r.TotalPrice)
		if p.ChangedBy != "" {
			fmt.Fprintf(&b, "\nBy: %s", p.ChangedBy)
		}
		return b.String(), nil

	case events.EventSlotToggled:
		var p events.SlotEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		state := "opened"
		if p.Closed {
			state = "closed"
		}
		return fmt.Sprintf("🕒 Slot %s %s %s", p.Date, p.TimeLabel, state), nil

	case events.EventWaitlistJoined:
		var p events.WaitlistEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("📋 Waitlist: %s, %s", p.Entry.Name, p.Entry.Phone), nil

	case events.EventMemberJoined:
		var p events.MemberEventPayload
		if err := e.Decode(&p); err != nil {
			return "", err
		}
		return fmt.Sprintf("⭐ New member: %s, %s", p.Member.Name, p.Member.Phone), nil

	default:
		return "", nil
	}
}
