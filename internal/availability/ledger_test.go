package availability

import (
	"testing"
	"time"

	"courtclub/internal/models"

	"github.com/stretchr/testify/assert"
)

var (
	today    = models.Date{Year: 2025, Month: time.May, Day: 10}
	tomorrow = models.Date{Year: 2025, Month: time.May, Day: 11}
)

func availableLabels(slots []models.TimeSlot) []string {
	var out []string
	for _, s := range Available(slots) {
		out = append(out, s.TimeLabel)
	}
	return out
}

func TestDerive(t *testing.T) {
	template := []models.TimeSlot{
		{ID: "1", TimeLabel: "07:00 AM"},
		{ID: "2", TimeLabel: "08:30 AM"},
		{ID: "3", TimeLabel: "10:00 AM"},
	}
	reservations := []models.Reservation{
		{ID: "res-1", Date: today, TimeLabel: "08:30 AM"},
		{ID: "res-2", Date: tomorrow, TimeLabel: "10:00 AM"},
	}

	t.Run("reservations only block their own day", func(t *testing.T) {
		assert.Equal(t, []string{"07:00 AM", "10:00 AM"}, availableLabels(Derive(template, reservations, nil, today)))
		assert.Equal(t, []string{"07:00 AM", "08:30 AM"}, availableLabels(Derive(template, reservations, nil, tomorrow)))
	})

	t.Run("overrides close slots", func(t *testing.T) {
		overrides := Overrides{{Date: today, TimeLabel: "07:00 AM"}: true}
		assert.Equal(t, []string{"10:00 AM"}, availableLabels(Derive(template, reservations, overrides, today)))
	})

	t.Run("idempotent", func(t *testing.T) {
		overrides := Overrides{{Date: today, TimeLabel: "10:00 AM"}: true}
		first := Derive(template, reservations, overrides, today)
		second := Derive(template, reservations, overrides, today)
		assert.Equal(t, first, second)
		assert.Len(t, template, 3)
		assert.False(t, template[1].IsAvailable, "template must not be mutated")
	})
}

func TestToggleAndRelease(t *testing.T) {
	var o Overrides

	o, closed := o.Toggle(today, "07:00 AM")
	assert.True(t, closed)
	assert.True(t, o.Closed(today, "07:00 AM"))
	assert.False(t, o.Closed(tomorrow, "07:00 AM"))

	reopened, closed := o.Toggle(today, "07:00 AM")
	assert.False(t, closed)
	assert.False(t, reopened.Closed(today, "07:00 AM"))
	assert.True(t, o.Closed(today, "07:00 AM"), "toggle returns a copy")

	released := o.Release(today, "07:00 AM")
	assert.Empty(t, released)
}

func TestFindConflict(t *testing.T) {
	reservations := []models.Reservation{{ID: "res-1", Date: today, TimeLabel: "10:00 AM"}}

	found, ok := FindConflict(reservations, today, "10:00 AM", "")
	assert.True(t, ok)
	assert.Equal(t, "res-1", found.ID)

	_, ok = FindConflict(reservations, today, "10:00 AM", "res-1")
	assert.False(t, ok)

	_, ok = FindConflict(reservations, tomorrow, "10:00 AM", "")
	assert.False(t, ok)
}
