package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"courtclub/internal/events"
	"courtclub/internal/models"
	"courtclub/internal/receipt"

	"github.com/mailersend/mailersend-go"
	"github.com/rs/zerolog"
)

// EmailSender is the part of the MailerSend client used here.
type EmailSender interface {
	Send(ctx context.Context, message *mailersend.Message) (*mailersend.Response, error)
}

// EmailNotifier mails the receipt to visitors who chose the Email channel.
// WhatsApp has no delivery backend and is only logged.
type EmailNotifier struct {
	sender   EmailSender
	from     mailersend.From
	clubName string
	timeout  time.Duration
	logger   *zerolog.Logger
}

// NewMailerSend returns the MailerSend email service for apiKey.
func NewMailerSend(apiKey string) EmailSender {
	return mailersend.NewMailersend(apiKey).Email
}

func NewEmailNotifier(sender EmailSender, fromEmail, fromName, clubName string, logger *zerolog.Logger) *EmailNotifier {
	if clubName == "" {
		clubName = models.DefaultClubName
	}
	if fromName == "" {
		fromName = clubName
	}
	return &EmailNotifier{
		sender:   sender,
		from:     mailersend.From{Name: fromName, Email: fromEmail},
		clubName: clubName,
		timeout:  10 * time.Second,
		logger:   logger,
	}
}

// HandleEvent sends a confirmation for every new reservation.
func (n *EmailNotifier) HandleEvent(e *events.Event) error {
	if e.Type != events.EventReservationCreated {
		return nil
	}
	var p events.ReservationEventPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	return n.Confirm(context.Background(), p.Reservation)
}

func (n *EmailNotifier) Confirm(ctx context.Context, res models.Reservation) error {
	switch res.NotificationChannel {
	case models.ChannelWhatsApp:
		n.logger.Info().Str("reservation_id", res.ID).Msg("whatsapp delivery is not supported, confirmation not sent")
		return nil
	case models.ChannelEmail:
	default:
		return nil
	}

	addr, err := mail.ParseAddress(strings.TrimSpace(res.Contact))
	if err != nil {
		n.logger.Warn().Str("reservation_id", res.ID).Msg("contact is not an email address, confirmation not sent")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	message := &mailersend.Message{}
	message.SetFrom(n.from)
	message.SetRecipients([]mailersend.Recipient{{Name: res.PlayerName, Email: addr.Address}})
	message.SetSubject(fmt.Sprintf("%s: booking confirmed for %s", n.clubName, receipt.LongDate(res.Date)))
	message.SetText(strings.Join(receipt.Lines(res), "\n"))

	resp, err := n.sender.Send(ctx, message)
	if err != nil {
		n.logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to send confirmation email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	msgID := ""
	if resp != nil {
		msgID = resp.Header.Get("X-Message-Id")
	}
	n.logger.Info().Str("reservation_id", res.ID).Str("message_id", msgID).Msg("confirmation email sent")
	return nil
}
