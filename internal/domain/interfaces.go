package domain

import (
	"context"
	"time"

	"courtclub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RemoteStore is the system of record shared by every workflow. Calls are not
// retried; a failure is terminal for that operation.
type RemoteStore interface {
	Insert(ctx context.Context, collection models.Collection, record models.Record) error
	FetchAll(ctx context.Context, collection models.Collection, orderBy string) ([]models.Record, error)
	Update(ctx context.Context, collection models.Collection, id string, record models.Record) error
	Delete(ctx context.Context, collection models.Collection, id string) error
}

// StateRepository keeps per-session booking drafts and rate limit counters.
type StateRepository interface {
	GetDraft(ctx context.Context, sessionID string) (*models.BookingDraft, error)
	SetDraft(ctx context.Context, draft *models.BookingDraft) error
	ClearDraft(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ReceiptIssuer builds the confirmation artifact for a stored reservation.
type ReceiptIssuer interface {
	Issue(res models.Reservation) (*models.Receipt, error)
}

// LanguageOracle turns a system instruction and a user utterance into free text.
type LanguageOracle interface {
	Generate(ctx context.Context, systemInstruction, utterance string) (string, error)
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}
