package models

import (
	"strings"
	"time"
)

type PlayerType string

const (
	PlayerMember PlayerType = "Member"
	PlayerGuest  PlayerType = "Guest"
)

// ParsePlayerType is case-insensitive.
func ParsePlayerType(s string) (PlayerType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member":
		return PlayerMember, true
	case "guest", "non-member", "nonmember":
		return PlayerGuest, true
	default:
		return "", false
	}
}

type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "Email"
	ChannelWhatsApp NotificationChannel = "WhatsApp"
)

func ParseNotificationChannel(s string) (NotificationChannel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return ChannelEmail, true
	case "whatsapp":
		return ChannelWhatsApp, true
	default:
		return "", false
	}
}

// Allowed booking lengths in minutes.
const (
	Duration60 = 60
	Duration90 = 90
)

func ValidDuration(minutes int) bool {
	return minutes == Duration60 || minutes == Duration90
}

type Reservation struct {
	ID                  string              `json:"id"`
	Date                Date                `json:"date"`
	TimeLabel           string              `json:"time_label"`
	DurationMinutes     int                 `json:"duration_minutes"`
	PlayerName          string              `json:"player_name"`
	Contact             string              `json:"contact"`
	NotificationChannel NotificationChannel `json:"notification_channel"`
	PlayerType          PlayerType          `json:"player_type"`
	TotalPrice          float64             `json:"total_price"`
	CreatedAt           time.Time           `json:"created_at"`
}

// BookingDraft is the booking form of one visitor while the reservation
// workflow is idle.
type BookingDraft struct {
	SessionID           string              `json:"session_id"`
	Date                Date                `json:"date"`
	TimeLabel           string              `json:"time_label"`
	DurationMinutes     int                 `json:"duration_minutes"`
	PlayerType          PlayerType          `json:"player_type"`
	PlayerName          string              `json:"player_name"`
	Contact             string              `json:"contact"`
	NotificationChannel NotificationChannel `json:"notification_channel"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// NewBookingDraft returns the form defaults: today, one hour, member rate, email.
func NewBookingDraft(sessionID string, today Date) *BookingDraft {
	return &BookingDraft{
		SessionID:           sessionID,
		Date:                today,
		DurationMinutes:     Duration60,
		PlayerType:          PlayerMember,
		NotificationChannel: ChannelEmail,
	}
}

// ClearIdentity empties the fields a successful booking resets.
func (d *BookingDraft) ClearIdentity() {
	d.TimeLabel = ""
	d.PlayerName = ""
	d.Contact = ""
}

// Receipt is the confirmation artifact handed out after a booking succeeds.
type Receipt struct {
	ReservationID  string   `json:"reservation_id"`
	Lines          []string `json:"lines"`
	Text           string   `json:"text"`
	CheckInPayload string   `json:"check_in_payload"`
	QRCodePNG      []byte   `json:"qr_png,omitempty"`
}
