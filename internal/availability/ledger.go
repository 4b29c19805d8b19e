// Package availability derives which slots can be booked on a given day.
package availability

import "courtclub/internal/models"

// SlotKey identifies one slot on one calendar day.
type SlotKey struct {
	Date      models.Date
	TimeLabel string
}

// Overrides holds the slots an administrator closed by hand. Only closed
// slots are present.
type Overrides map[SlotKey]bool

func (o Overrides) Closed(date models.Date, timeLabel string) bool {
	return o[SlotKey{Date: date, TimeLabel: timeLabel}]
}

// Clone returns an independent copy.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		if v {
			out[k] = true
		}
	}
	return out
}

// Toggle flips the manual flag of a slot and returns the new overrides and
// whether the slot is now closed. Reservations are not touched.
func (o Overrides) Toggle(date models.Date, timeLabel string) (Overrides, bool) {
	out := o.Clone()
	key := SlotKey{Date: date, TimeLabel: timeLabel}
	if out[key] {
		delete(out, key)
		return out, false
	}
	out[key] = true
	return out, true
}

// Release clears the manual flag of a slot.
func (o Overrides) Release(date models.Date, timeLabel string) Overrides {
	out := o.Clone()
	delete(out, SlotKey{Date: date, TimeLabel: timeLabel})
	return out
}

// Derive marks every template slot available unless a reservation holds it on
// date or an override closed it. The result depends only on the inputs.
func Derive(template []models.TimeSlot, reservations []models.Reservation, overrides Overrides, date models.Date) []models.TimeSlot {
	booked := make(map[string]bool, len(reservations))
	for _, r := range reservations {
		if r.Date == date {
			booked[r.TimeLabel] = true
		}
	}

	out := make([]models.TimeSlot, len(template))
	for i, slot := range template {
		out[i] = models.TimeSlot{
			ID:          slot.ID,
			TimeLabel:   slot.TimeLabel,
			IsAvailable: !booked[slot.TimeLabel] && !overrides.Closed(date, slot.TimeLabel),
		}
	}
	return out
}

// Available filters derived slots down to the bookable ones.
func Available(slots []models.TimeSlot) []models.TimeSlot {
	out := make([]models.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if s.IsAvailable {
			out = append(out, s)
		}
	}
	return out
}

// FindConflict returns the reservation occupying (date, timeLabel), ignoring
// the reservation with excludeID. Dates compare by calendar day.
func FindConflict(reservations []models.Reservation, date models.Date, timeLabel, excludeID string) (models.Reservation, bool) {
	for _, r := range reservations {
		if r.ID == excludeID && excludeID != "" {
			continue
		}
		if r.Date == date && r.TimeLabel == timeLabel {
			return r, true
		}
	}
	return models.Reservation{}, false
}
