// Package assistant answers visitor questions about the club through a
// language model. Every failure degrades to a fixed apology.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/metrics"
	"courtclub/internal/models"

	"github.com/rs/zerolog"
)

const (
	EmptyReplyFallback = "I apologize, I'm having trouble connecting to my systems."
	ErrorFallback      = "I'm sorry, I'm currently resting. Please try again in a moment."
	NoSlotsText        = "No slots currently available"
)

// Reply is one concierge answer. Degraded marks a fallback text.
type Reply struct {
	Text     string `json:"text"`
	Degraded bool   `json:"degraded"`
}

// Facts is the club data the model may talk about.
type Facts struct {
	ClubName       string
	AvailableSlots []string
	Rates          models.ClubRates
	NewsTitles     []string
}

// WelcomeMessage greets a visitor before the first question.
func WelcomeMessage(clubName string) string {
	if clubName == "" {
		clubName = models.DefaultClubName
	}
	return fmt.Sprintf("Welcome to %s concierge. How may I assist you with your booking today?", clubName)
}

// SystemInstruction renders the facts into the model instruction.
func SystemInstruction(f Facts) string {
	clubName := f.ClubName
	if clubName == "" {
		clubName = models.DefaultClubName
	}
	slots := strings.Join(f.AvailableSlots, ", ")
	if slots == "" {
		slots = NoSlotsText
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are the premium concierge for %q.\n", clubName)
	b.WriteString("Be professional, helpful, and sophisticated.\n")
	b.WriteString("Here is the current club data:\n")
	fmt.Fprintf(&b, "- Available time slots today: %s\n", slots)
	fmt.Fprintf(&b, "- Rates: $%s/hr for members, $%s/hr for non-members. Guest fee is $%s.\n",
		amount(f.Rates.Member), amount(f.Rates.NonMember), amount(f.Rates.GuestFee))
	fmt.Fprintf(&b, "- Latest news highlights: %s.\n\n", strings.Join(f.NewsTitles, ", "))
	b.WriteString("Answer user questions about availability and rates concisely. ")
	b.WriteString("If they want to book, tell them to use the reservation engine on the page.")
	return b.String()
}

func amount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// Concierge wraps a language oracle with a deadline and the fallback texts.
type Concierge struct {
	oracle  domain.LanguageOracle
	timeout time.Duration
	logger  *zerolog.Logger
}

// NewConcierge accepts a nil oracle; every answer is then the error fallback.
func NewConcierge(oracle domain.LanguageOracle, timeout time.Duration, logger *zerolog.Logger) *Concierge {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Concierge{oracle: oracle, timeout: timeout, logger: logger}
}

func (c *Concierge) Ask(ctx context.Context, facts Facts, utterance string) Reply {
	if c.oracle == nil {
		metrics.IncAssistant("fallback")
		return Reply{Text: ErrorFallback, Degraded: true}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.oracle.Generate(ctx, SystemInstruction(facts), strings.TrimSpace(utterance))
	if err != nil {
		c.logger.Warn().Err(err).Msg("assistant request failed")
		metrics.IncAssistant("fallback")
		return Reply{Text: ErrorFallback, Degraded: true}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.IncAssistant("empty")
		return Reply{Text: EmptyReplyFallback, Degraded: true}
	}
	metrics.IncAssistant("answered")
	return Reply{Text: text}
}
