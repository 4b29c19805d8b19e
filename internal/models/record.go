package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Collection names a logical table of the remote store.
type Collection string

const (
	CollectionReservations Collection = "reservations"
	CollectionWaitlist     Collection = "waitlist"
	CollectionMembers      Collection = "members"
)

// Record is a row as the remote store sees it: snake_case keys, dates as
// YYYY-MM-DD strings and timestamps as RFC 3339 strings.
type Record map[string]any

// Columns lists the stored keys of every collection in a stable order.
var Columns = map[Collection][]string{
	CollectionReservations: {
		"id", "date", "time_label", "duration_minutes", "player_name", "contact",
		"notification_channel", "player_type", "total_price", "created_at",
	},
	CollectionWaitlist: {"id", "name", "phone", "email", "joined_at"},
	CollectionMembers:  {"id", "name", "phone", "joined_at"},
}

// DefaultOrder is the fetchAll ordering each collection is loaded with.
var DefaultOrder = map[Collection]string{
	CollectionReservations: "date",
	CollectionWaitlist:     "joined_at",
	CollectionMembers:      "joined_at",
}

// HasColumn reports whether key is a stored column of c.
func HasColumn(c Collection, key string) bool {
	for _, col := range Columns[c] {
		if col == key {
			return true
		}
	}
	return false
}

func (r Record) ID() string {
	return r.String("id")
}

func (r Record) String(key string) string {
	val, ok := r[key]
	if !ok || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r Record) Int(key string) int {
	return int(r.Float(key))
}

// Float tolerates the number types the different drivers hand back.
func (r Record) Float(key string) float64 {
	val, ok := r[key]
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	default:
		return 0
	}
}

func (r Record) Time(key string) time.Time {
	val, ok := r[key]
	if !ok || val == nil {
		return time.Time{}
	}
	if t, ok := val.(time.Time); ok {
		return t
	}
	raw := r.String(key)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t, err = time.Parse("2006-01-02 15:04:05.999999999-07:00", raw)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}

func (r Record) Date(key string) (Date, error) {
	if t, ok := r[key].(time.Time); ok {
		return DateOf(t), nil
	}
	return ParseDate(r.String(key))
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (res Reservation) Record() Record {
	return Record{
		"id":                   res.ID,
		"date":                 res.Date.String(),
		"time_label":           res.TimeLabel,
		"duration_minutes":     res.DurationMinutes,
		"player_name":          res.PlayerName,
		"contact":              res.Contact,
		"notification_channel": string(res.NotificationChannel),
		"player_type":          string(res.PlayerType),
		"total_price":          res.TotalPrice,
		"created_at":           formatTimestamp(res.CreatedAt),
	}
}

// ReservationFromRecord rehydrates a stored reservation.
func ReservationFromRecord(rec Record) (Reservation, error) {
	if rec.ID() == "" {
		return Reservation{}, fmt.Errorf("reservation record without id")
	}
	date, err := rec.Date("date")
	if err != nil {
		return Reservation{}, fmt.Errorf("reservation %s: %w", rec.ID(), err)
	}
	playerType, ok := ParsePlayerType(rec.String("player_type"))
	if !ok {
		playerType = PlayerMember
	}
	channel, ok := ParseNotificationChannel(rec.String("notification_channel"))
	if !ok {
		channel = ChannelEmail
	}
	return Reservation{
		ID:                  rec.ID(),
		Date:                date,
		TimeLabel:           rec.String("time_label"),
		DurationMinutes:     rec.Int("duration_minutes"),
		PlayerName:          rec.String("player_name"),
		Contact:             rec.String("contact"),
		NotificationChannel: channel,
		PlayerType:          playerType,
		TotalPrice:          rec.Float("total_price"),
		CreatedAt:           rec.Time("created_at"),
	}, nil
}

func (e WaitlistEntry) Record() Record {
	return Record{
		"id":        e.ID,
		"name":      e.Name,
		"phone":     e.Phone,
		"email":     e.Email,
		"joined_at": formatTimestamp(e.JoinedAt),
	}
}

func WaitlistEntryFromRecord(rec Record) (WaitlistEntry, error) {
	if rec.ID() == "" {
		return WaitlistEntry{}, fmt.Errorf("waitlist record without id")
	}
	return WaitlistEntry{
		ID:       rec.ID(),
		Name:     rec.String("name"),
		Phone:    rec.String("phone"),
		Email:    rec.String("email"),
		JoinedAt: rec.Time("joined_at"),
	}, nil
}

func (m Member) Record() Record {
	return Record{
		"id":        m.ID,
		"name":      m.Name,
		"phone":     m.Phone,
		"joined_at": formatTimestamp(m.JoinedAt),
	}
}

func MemberFromRecord(rec Record) (Member, error) {
	if rec.ID() == "" {
		return Member{}, fmt.Errorf("member record without id")
	}
	return Member{
		ID:       rec.ID(),
		Name:     rec.String("name"),
		Phone:    rec.String("phone"),
		JoinedAt: rec.Time("joined_at"),
	}, nil
}
