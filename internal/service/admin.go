package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"courtclub/internal/availability"
	"courtclub/internal/domain"
	"courtclub/internal/events"
	"courtclub/internal/export"
	"courtclub/internal/models"
	"courtclub/internal/pricing"
	"courtclub/internal/state"
)

// ReservationEdit is the admin edit form. Zero values keep the current value,
// except name and contact which are always required.
type ReservationEdit struct {
	Date                models.Date                `json:"date"`
	TimeLabel           string                     `json:"time_label"`
	DurationMinutes     int                        `json:"duration_minutes"`
	PlayerType          models.PlayerType          `json:"player_type"`
	PlayerName          string                     `json:"player_name"`
	Contact             string                     `json:"contact"`
	NotificationChannel models.NotificationChannel `json:"notification_channel"`
}

type NewsInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
	ImageURL    string `json:"image_url"`
}

// Overview is the admin dashboard for one day.
type Overview struct {
	Date            models.Date            `json:"date"`
	Slots           []models.TimeSlot      `json:"slots"`
	DayReservations []models.Reservation   `json:"day_reservations"`
	Reservations    []models.Reservation   `json:"reservations"`
	Waitlist        []models.WaitlistEntry `json:"waitlist"`
	Members         []models.Member        `json:"members"`
	News            []models.NewsItem      `json:"news"`
	OpenSlots       int                    `json:"open_slots"`
	DayRevenue      float64                `json:"day_revenue"`
}

// AdminConsole holds the club management operations. Stored records are
// changed in the remote store first and locally only after it accepted.
type AdminConsole struct {
	deps       *Deps
	accessCode string
}

func NewAdminConsole(deps *Deps, accessCode string) *AdminConsole {
	return &AdminConsole{deps: deps, accessCode: accessCode}
}

// Authenticate compares code with the configured access code in constant time.
func (a *AdminConsole) Authenticate(code string) error {
	if a.accessCode == "" || subtle.ConstantTimeCompare([]byte(code), []byte(a.accessCode)) != 1 {
		a.deps.Logger.Warn().Msg("admin access denied")
		return ErrAccessDenied
	}
	return nil
}

// ToggleSlot flips the manual override of a slot and reports whether it is
// now closed. Reservations are not touched.
func (a *AdminConsole) ToggleSlot(date models.Date, timeLabel string) (bool, error) {
	timeLabel = strings.TrimSpace(timeLabel)
	if date.IsZero() || timeLabel == "" {
		return false, ErrIncomplete
	}
	if err := a.deps.Store.Dispatch(state.SlotToggled{Date: date, TimeLabel: timeLabel}); err != nil {
		return false, err
	}
	closed := a.deps.Store.Snapshot().Overrides.Closed(date, timeLabel)
	a.deps.publish(events.EventSlotToggled, events.SlotEventPayload{Date: date, TimeLabel: timeLabel, Closed: closed})
	a.deps.Logger.Info().Str("date", date.String()).Str("time", timeLabel).Bool("closed", closed).Msg("slot toggled")
	return closed, nil
}

func (a *AdminConsole) UpdateReservation(ctx context.Context, id string, edit ReservationEdit) (models.Reservation, error) {
	snapshot := a.deps.Store.Snapshot()
	current, ok := snapshot.Reservation(id)
	if !ok {
		return models.Reservation{}, fmt.Errorf("reservation %s: %w", id, state.ErrNotFound)
	}

	edit.PlayerName = strings.TrimSpace(edit.PlayerName)
	edit.Contact = strings.TrimSpace(edit.Contact)
	if edit.PlayerName == "" || edit.Contact == "" {
		return models.Reservation{}, ErrIncomplete
	}

	next := current
	next.PlayerName = edit.PlayerName
	next.Contact = edit.Contact
	if !edit.Date.IsZero() {
		next.Date = edit.Date
	}
	if label := strings.TrimSpace(edit.TimeLabel); label != "" {
		next.TimeLabel = label
	}
	if edit.DurationMinutes != 0 {
		next.DurationMinutes = edit.DurationMinutes
	}
	if edit.PlayerType != "" {
		next.PlayerType = edit.PlayerType
	}
	if edit.NotificationChannel != "" {
		next.NotificationChannel = edit.NotificationChannel
	}

	if !models.ValidDuration(next.DurationMinutes) {
		return models.Reservation{}, ErrInvalidDuration
	}
	if next.PlayerType != models.PlayerMember && next.PlayerType != models.PlayerGuest {
		return models.Reservation{}, ErrInvalidPlayerType
	}
	if next.NotificationChannel != models.ChannelEmail && next.NotificationChannel != models.ChannelWhatsApp {
		return models.Reservation{}, ErrInvalidChannel
	}
	if _, ok := models.FindSlot(snapshot.Slots, next.TimeLabel); !ok {
		return models.Reservation{}, ErrUnknownSlot
	}
	moved := next.Date != current.Date || next.TimeLabel != current.TimeLabel
	if moved {
		// A move lands on the same checks as a visitor booking, closed slots included.
		if err := checkSlot(snapshot, next.Date, next.TimeLabel, id); err != nil {
			return models.Reservation{}, err
		}
	} else if _, taken := availability.FindConflict(snapshot.Reservations, next.Date, next.TimeLabel, id); taken {
		return models.Reservation{}, ErrSlotTaken
	}
	next.TotalPrice = pricing.Price(a.deps.Rates, next.PlayerType, next.DurationMinutes)

	rctx, cancel := a.deps.remoteContext(ctx)
	defer cancel()
	if err := a.deps.Remote.Update(rctx, models.CollectionReservations, id, next.Record()); err != nil {
		a.deps.Logger.Error().Err(err).Str("reservation_id", id).Msg("failed to update reservation")
		return models.Reservation{}, remoteWriteError(err)
	}
	if err := a.deps.Store.Dispatch(state.ReservationUpdated{Reservation: next}); err != nil {
		return models.Reservation{}, err
	}

	a.deps.publish(events.EventReservationUpdated, events.ReservationEventPayload{Reservation: next, ChangedBy: "admin"})
	a.deps.Logger.Info().Str("reservation_id", id).Msg("reservation updated")
	return next, nil
}

// DeleteReservation removes a reservation and frees its slot, clearing any
// manual override on it. A record already gone from the store is removed locally.
func (a *AdminConsole) DeleteReservation(ctx context.Context, id string) error {
	res, ok := a.deps.Store.Snapshot().Reservation(id)
	if !ok {
		return fmt.Errorf("reservation %s: %w", id, state.ErrNotFound)
	}
	if err := a.remoteDelete(ctx, models.CollectionReservations, id); err != nil {
		return err
	}
	if err := a.deps.Store.Dispatch(state.ReservationRemoved{ID: id}); err != nil {
		return err
	}
	a.deps.publish(events.EventReservationDeleted, events.ReservationEventPayload{Reservation: res, ChangedBy: "admin"})
	a.deps.Logger.Info().Str("reservation_id", id).Msg("reservation deleted")
	return nil
}

func (a *AdminConsole) RemoveWaitlistEntry(ctx context.Context, id string) error {
	var entry models.WaitlistEntry
	found := false
	for _, e := range a.deps.Store.Snapshot().Waitlist {
		if e.ID == id {
			entry, found = e, true
			break
		}
	}
	if !found {
		return fmt.Errorf("waitlist entry %s: %w", id, state.ErrNotFound)
	}
	if err := a.remoteDelete(ctx, models.CollectionWaitlist, id); err != nil {
		return err
	}
	if err := a.deps.Store.Dispatch(state.WaitlistEntryRemoved{ID: id}); err != nil {
		return err
	}
	a.deps.publish(events.EventWaitlistRemoved, events.WaitlistEventPayload{Entry: entry})
	return nil
}

func (a *AdminConsole) RemoveMember(ctx context.Context, id string) error {
	var member models.Member
	found := false
	for _, m := range a.deps.Store.Snapshot().Members {
		if m.ID == id {
			member, found = m, true
			break
		}
	}
	if !found {
		return fmt.Errorf("member %s: %w", id, state.ErrNotFound)
	}
	if err := a.remoteDelete(ctx, models.CollectionMembers, id); err != nil {
		return err
	}
	if err := a.deps.Store.Dispatch(state.MemberRemoved{ID: id}); err != nil {
		return err
	}
	a.deps.publish(events.EventMemberRemoved, events.MemberEventPayload{Member: member})
	return nil
}

func (a *AdminConsole) remoteDelete(ctx context.Context, collection models.Collection, id string) error {
	rctx, cancel := a.deps.remoteContext(ctx)
	defer cancel()
	err := a.deps.Remote.Delete(rctx, collection, id)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRecordNotFound) {
		a.deps.Logger.Warn().Str("collection", string(collection)).Str("id", id).Msg("record already missing in store")
		return nil
	}
	a.deps.Logger.Error().Err(err).Str("collection", string(collection)).Str("id", id).Msg("failed to delete record")
	return remoteWriteError(err)
}

// PostNews puts a new item at the top of the list.
func (a *AdminConsole) PostNews(in NewsInput) (models.NewsItem, error) {
	item, err := a.newsItem(models.NewID(models.IDPrefixNews), in)
	if err != nil {
		return models.NewsItem{}, err
	}
	if err := a.deps.Store.Dispatch(state.NewsPosted{Item: item}); err != nil {
		return models.NewsItem{}, err
	}
	a.deps.publish(events.EventNewsChanged, events.NewsEventPayload{Action: "posted", Item: item})
	return item, nil
}

func (a *AdminConsole) EditNews(id string, in NewsInput) (models.NewsItem, error) {
	item, err := a.newsItem(id, in)
	if err != nil {
		return models.NewsItem{}, err
	}
	if err := a.deps.Store.Dispatch(state.NewsEdited{Item: item}); err != nil {
		return models.NewsItem{}, err
	}
	a.deps.publish(events.EventNewsChanged, events.NewsEventPayload{Action: "edited", Item: item})
	return item, nil
}

func (a *AdminConsole) DeleteNews(id string) error {
	if err := a.deps.Store.Dispatch(state.NewsRemoved{ID: id}); err != nil {
		return err
	}
	a.deps.publish(events.EventNewsChanged, events.NewsEventPayload{Action: "deleted", Item: models.NewsItem{ID: id}})
	return nil
}

func (a *AdminConsole) newsItem(id string, in NewsInput) (models.NewsItem, error) {
	item := models.NewsItem{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Tag:         strings.TrimSpace(in.Tag),
		ImageURL:    strings.TrimSpace(in.ImageURL),
	}
	if item.Title == "" || item.Description == "" {
		return models.NewsItem{}, ErrIncomplete
	}
	if item.Tag == "" {
		item.Tag = models.DefaultNewsTag
	}
	if item.ImageURL == "" {
		item.ImageURL = fmt.Sprintf(models.NewsImageURLFormat, a.deps.now().UnixMilli())
	}
	return item, nil
}

func (a *AdminConsole) Overview(date models.Date) Overview {
	snapshot := a.deps.Store.Snapshot()
	if date.IsZero() {
		date = a.deps.Today()
	}

	order := make(map[string]int, len(snapshot.Slots))
	for i, s := range snapshot.Slots {
		order[s.TimeLabel] = i
	}
	all := append([]models.Reservation(nil), snapshot.Reservations...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date.Before(all[j].Date)
		}
		return order[all[i].TimeLabel] < order[all[j].TimeLabel]
	})

	o := Overview{
		Date:         date,
		Slots:        snapshot.SlotsFor(date),
		Reservations: all,
		Waitlist:     snapshot.Waitlist,
		Members:      snapshot.Members,
		News:         snapshot.News,
	}
	for _, r := range all {
		if r.Date == date {
			o.DayReservations = append(o.DayReservations, r)
			o.DayRevenue += r.TotalPrice
		}
	}
	o.OpenSlots = len(availability.Available(o.Slots))
	return o
}

// Export writes the reservations, waitlist and members as an xlsx workbook.
func (a *AdminConsole) Export(w io.Writer) error {
	snapshot := a.deps.Store.Snapshot()
	return export.WriteWorkbook(w, export.Data{
		ClubName:     a.deps.clubName(),
		GeneratedAt:  a.deps.now().In(a.deps.location()),
		Reservations: snapshot.Reservations,
		Waitlist:     snapshot.Waitlist,
		Members:      snapshot.Members,
	})
}
