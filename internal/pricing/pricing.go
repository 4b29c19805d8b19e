// Package pricing computes the amount due for a court booking.
package pricing

import "courtclub/internal/models"

// Quote is the breakdown shown on the pricing summary panel.
type Quote struct {
	PlayerType      models.PlayerType `json:"player_type"`
	DurationMinutes int               `json:"duration_minutes"`
	HourlyRate      float64           `json:"hourly_rate"`
	Hours           float64           `json:"hours"`
	Base            float64           `json:"base"`
	GuestFee        float64           `json:"guest_fee"`
	Total           float64           `json:"total"`
}

// HourlyRate returns the member rate for members and the non-member rate otherwise.
func HourlyRate(rates models.ClubRates, playerType models.PlayerType) float64 {
	if playerType == models.PlayerMember {
		return rates.Member
	}
	return rates.NonMember
}

// Calculate prices a booking. The guest fee is flat and is not scaled by duration.
// Durations are validated by callers.
func Calculate(rates models.ClubRates, playerType models.PlayerType, durationMinutes int) Quote {
	q := Quote{
		PlayerType:      playerType,
		DurationMinutes: durationMinutes,
		HourlyRate:      HourlyRate(rates, playerType),
		Hours:           float64(durationMinutes) / 60,
	}
	q.Base = q.HourlyRate * q.Hours
	if playerType == models.PlayerGuest {
		q.GuestFee = rates.GuestFee
	}
	q.Total = q.Base + q.GuestFee
	return q
}

// Price returns the amount due.
func Price(rates models.ClubRates, playerType models.PlayerType, durationMinutes int) float64 {
	return Calculate(rates, playerType, durationMinutes).Total
}
