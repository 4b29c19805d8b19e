package state

import (
	"fmt"

	"courtclub/internal/models"
)

// CatalogLoaded replaces the slot template and the news list.
type CatalogLoaded struct {
	Slots []models.TimeSlot
	News  []models.NewsItem
}

func (a CatalogLoaded) apply(s *AppState) error {
	s.Slots = append([]models.TimeSlot(nil), a.Slots...)
	s.News = append([]models.NewsItem(nil), a.News...)
	return nil
}

// ReservationsLoaded replaces the reservation list with a fresh fetch.
// Known holds the ids present locally when the fetch began; with it set,
// records added or removed locally while the fetch was running survive the
// replace. A nil Known replaces the list as is.
type ReservationsLoaded struct {
	Reservations []models.Reservation
	Known        map[string]bool
}

func (a ReservationsLoaded) apply(s *AppState) error {
	s.Reservations = mergeFetched(a.Reservations, s.Reservations, a.Known, func(r models.Reservation) string { return r.ID })
	return nil
}

// ReservationAdded appends a reservation confirmed by the remote store. The
// slot it occupies derives as unavailable from then on.
type ReservationAdded struct {
	Reservation models.Reservation
}

func (a ReservationAdded) apply(s *AppState) error {
	if _, ok := s.Reservation(a.Reservation.ID); ok {
		return fmt.Errorf("reservation %s: %w", a.Reservation.ID, ErrDuplicateID)
	}
	s.Reservations = append(s.Reservations, a.Reservation)
	return nil
}

// ReservationUpdated replaces a reservation after an admin edit.
type ReservationUpdated struct {
	Reservation models.Reservation
}

func (a ReservationUpdated) apply(s *AppState) error {
	for i, r := range s.Reservations {
		if r.ID == a.Reservation.ID {
			s.Reservations[i] = a.Reservation
			return nil
		}
	}
	return fmt.Errorf("reservation %s: %w", a.Reservation.ID, ErrNotFound)
}

// ReservationRemoved deletes a reservation and releases its slot, including
// any manual override on it.
type ReservationRemoved struct {
	ID string
}

func (a ReservationRemoved) apply(s *AppState) error {
	for i, r := range s.Reservations {
		if r.ID == a.ID {
			s.Reservations = append(s.Reservations[:i], s.Reservations[i+1:]...)
			s.Overrides = s.Overrides.Release(r.Date, r.TimeLabel)
			return nil
		}
	}
	return fmt.Errorf("reservation %s: %w", a.ID, ErrNotFound)
}

// SlotToggled flips the manual override of a slot on a given day.
type SlotToggled struct {
	Date      models.Date
	TimeLabel string
}

func (a SlotToggled) apply(s *AppState) error {
	if _, ok := models.FindSlot(s.Slots, a.TimeLabel); !ok {
		return fmt.Errorf("slot %q: %w", a.TimeLabel, ErrNotFound)
	}
	s.Overrides, _ = s.Overrides.Toggle(a.Date, a.TimeLabel)
	return nil
}

type WaitlistLoaded struct {
	Entries []models.WaitlistEntry
	Known   map[string]bool
}

func (a WaitlistLoaded) apply(s *AppState) error {
	s.Waitlist = mergeFetched(a.Entries, s.Waitlist, a.Known, func(e models.WaitlistEntry) string { return e.ID })
	return nil
}

type WaitlistJoined struct {
	Entry models.WaitlistEntry
}

func (a WaitlistJoined) apply(s *AppState) error {
	for _, e := range s.Waitlist {
		if e.ID == a.Entry.ID {
			return fmt.Errorf("waitlist entry %s: %w", e.ID, ErrDuplicateID)
		}
	}
	s.Waitlist = append(s.Waitlist, a.Entry)
	return nil
}

type WaitlistEntryRemoved struct {
	ID string
}

func (a WaitlistEntryRemoved) apply(s *AppState) error {
	for i, e := range s.Waitlist {
		if e.ID == a.ID {
			s.Waitlist = append(s.Waitlist[:i], s.Waitlist[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("waitlist entry %s: %w", a.ID, ErrNotFound)
}

type MembersLoaded struct {
	Members []models.Member
	Known   map[string]bool
}

func (a MembersLoaded) apply(s *AppState) error {
	s.Members = mergeFetched(a.Members, s.Members, a.Known, func(m models.Member) string { return m.ID })
	return nil
}

type MemberJoined struct {
	Member models.Member
}

func (a MemberJoined) apply(s *AppState) error {
	for _, m := range s.Members {
		if m.ID == a.Member.ID {
			return fmt.Errorf("member %s: %w", m.ID, ErrDuplicateID)
		}
	}
	s.Members = append(s.Members, a.Member)
	return nil
}

type MemberRemoved struct {
	ID string
}

func (a MemberRemoved) apply(s *AppState) error {
	for i, m := range s.Members {
		if m.ID == a.ID {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", a.ID, ErrNotFound)
}

// NewsPosted puts a new item at the top of the list.
type NewsPosted struct {
	Item models.NewsItem
}

func (a NewsPosted) apply(s *AppState) error {
	for _, n := range s.News {
		if n.ID == a.Item.ID {
			return fmt.Errorf("news %s: %w", n.ID, ErrDuplicateID)
		}
	}
	s.News = append([]models.NewsItem{a.Item}, s.News...)
	return nil
}

type NewsEdited struct {
	Item models.NewsItem
}

func (a NewsEdited) apply(s *AppState) error {
	for i, n := range s.News {
		if n.ID == a.Item.ID {
			s.News[i] = a.Item
			return nil
		}
	}
	return fmt.Errorf("news %s: %w", a.Item.ID, ErrNotFound)
}

type NewsRemoved struct {
	ID string
}

func (a NewsRemoved) apply(s *AppState) error {
	for i, n := range s.News {
		if n.ID == a.ID {
			s.News = append(s.News[:i], s.News[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("news %s: %w", a.ID, ErrNotFound)
}

// mergeFetched takes the fetched records as the new list. A fetched record
// that was known at fetch start but is gone locally was removed in the
// meantime and stays out. A local record the fetch did not see and that was
// not known at fetch start was confirmed in the meantime and is kept.
func mergeFetched[T any](fetched, local []T, known map[string]bool, id func(T) string) []T {
	if known == nil {
		return append([]T(nil), fetched...)
	}

	current := make(map[string]bool, len(local))
	for _, v := range local {
		current[id(v)] = true
	}

	out := make([]T, 0, len(fetched)+len(local))
	seen := make(map[string]bool, len(fetched))
	for _, v := range fetched {
		key := id(v)
		seen[key] = true
		if known[key] && !current[key] {
			continue
		}
		out = append(out, v)
	}
	for _, v := range local {
		key := id(v)
		if !seen[key] && !known[key] {
			out = append(out, v)
		}
	}
	return out
}
