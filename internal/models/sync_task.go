package models

import "time"

// SyncTask is a queued mirror job for the reservation schedule sheet.
type SyncTask struct {
	Type          string       `json:"type"`
	ReservationID string       `json:"reservation_id"`
	Reservation   *Reservation `json:"reservation,omitempty"`
	Attempt       int          `json:"attempt"`
	LastError     string       `json:"last_error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
