// Package state holds the club application state and applies every change to
// it as a discrete, reducer-style action.
package state

import (
	"errors"
	"sync"

	"courtclub/internal/availability"
	"courtclub/internal/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicateID = errors.New("duplicate id")
)

// AppState is the whole client-side view of the club.
type AppState struct {
	Slots        []models.TimeSlot
	Overrides    availability.Overrides
	Reservations []models.Reservation
	Waitlist     []models.WaitlistEntry
	Members      []models.Member
	News         []models.NewsItem
}

// Clone returns a deep copy so that callers can never write into the store.
func (s AppState) Clone() AppState {
	return AppState{
		Slots:        append([]models.TimeSlot(nil), s.Slots...),
		Overrides:    s.Overrides.Clone(),
		Reservations: append([]models.Reservation(nil), s.Reservations...),
		Waitlist:     append([]models.WaitlistEntry(nil), s.Waitlist...),
		Members:      append([]models.Member(nil), s.Members...),
		News:         append([]models.NewsItem(nil), s.News...),
	}
}

// SlotsFor derives slot availability for date.
func (s AppState) SlotsFor(date models.Date) []models.TimeSlot {
	return availability.Derive(s.Slots, s.Reservations, s.Overrides, date)
}

func (s AppState) Reservation(id string) (models.Reservation, bool) {
	for _, r := range s.Reservations {
		if r.ID == id {
			return r, true
		}
	}
	return models.Reservation{}, false
}

// Action is a single state transition.
type Action interface {
	apply(s *AppState) error
}

// Reduce applies a to a copy of s. On error the returned state is s unchanged.
func Reduce(s AppState, a Action) (AppState, error) {
	next := s.Clone()
	if err := a.apply(&next); err != nil {
		return s, err
	}
	return next, nil
}

// Store serializes actions against the shared AppState.
type Store struct {
	mu    sync.RWMutex
	state AppState
}

func NewStore(initial AppState) *Store {
	if initial.Overrides == nil {
		initial.Overrides = availability.Overrides{}
	}
	return &Store{state: initial.Clone()}
}

// Dispatch applies every action in order. Either all of them take effect or none does.
func (s *Store) Dispatch(actions ...Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	for _, a := range actions {
		var err error
		next, err = Reduce(next, a)
		if err != nil {
			return err
		}
	}
	s.state = next
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) SlotsFor(date models.Date) []models.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.SlotsFor(date)
}
