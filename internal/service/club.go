package service

import (
	"fmt"

	"courtclub/internal/availability"
	"courtclub/internal/models"
	"courtclub/internal/pricing"
	"courtclub/internal/state"
)

// ClubService answers the read-only questions of the public pages.
type ClubService struct {
	deps *Deps
}

func NewClubService(deps *Deps) *ClubService {
	return &ClubService{deps: deps}
}

func (c *ClubService) Name() string { return c.deps.clubName() }

func (c *ClubService) Today() models.Date { return c.deps.Today() }

// Slots lists the template for date with derived availability.
func (c *ClubService) Slots(date models.Date) []models.TimeSlot {
	return c.deps.Store.SlotsFor(date)
}

func (c *ClubService) AvailableSlots(date models.Date) []models.TimeSlot {
	return availability.Available(c.Slots(date))
}

func (c *ClubService) Rates() models.ClubRates { return c.deps.Rates }

func (c *ClubService) Quote(playerType models.PlayerType, durationMinutes int) (pricing.Quote, error) {
	if !models.ValidDuration(durationMinutes) {
		return pricing.Quote{}, ErrInvalidDuration
	}
	if playerType != models.PlayerMember && playerType != models.PlayerGuest {
		return pricing.Quote{}, ErrInvalidPlayerType
	}
	return pricing.Calculate(c.deps.Rates, playerType, durationMinutes), nil
}

func (c *ClubService) News() []models.NewsItem {
	return c.deps.Store.Snapshot().News
}

func (c *ClubService) Reservation(id string) (models.Reservation, error) {
	res, ok := c.deps.Store.Snapshot().Reservation(id)
	if !ok {
		return models.Reservation{}, fmt.Errorf("reservation %s: %w", id, state.ErrNotFound)
	}
	return res, nil
}

func (c *ClubService) WaitlistCount() int {
	return len(c.deps.Store.Snapshot().Waitlist)
}
