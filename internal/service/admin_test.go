package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"courtclub/internal/availability"
	"courtclub/internal/domain"
	"courtclub/internal/events"
	"courtclub/internal/models"
	"courtclub/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAdminConsole_Authenticate(t *testing.T) {
	deps, _ := newTestDeps(t, new(mockRemote), state.AppState{})

	admin := NewAdminConsole(deps, "letmein")
	assert.NoError(t, admin.Authenticate("letmein"))
	assert.ErrorIs(t, admin.Authenticate("letmeout"), ErrAccessDenied)
	assert.ErrorIs(t, admin.Authenticate(""), ErrAccessDenied)

	assert.ErrorIs(t, NewAdminConsole(deps, "").Authenticate(""), ErrAccessDenied)
}

func TestAdminConsole_ToggleSlot(t *testing.T) {
	remote := new(mockRemote)
	booked := existingReservation(t, "res-1", "08:30 AM", testToday())
	deps, pub := newTestDeps(t, remote, state.AppState{Reservations: []models.Reservation{booked}})
	admin := NewAdminConsole(deps, "code")

	closed, err := admin.ToggleSlot(testToday(), "07:00 AM")
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = admin.ToggleSlot(testToday(), "07:00 AM")
	require.NoError(t, err)
	assert.False(t, closed)

	// toggling a booked slot never removes the booking
	_, err = admin.ToggleSlot(testToday(), "08:30 AM")
	require.NoError(t, err)
	_, err = admin.ToggleSlot(testToday(), "08:30 AM")
	require.NoError(t, err)
	assert.Len(t, deps.Store.Snapshot().Reservations, 1)
	for _, s := range deps.Store.SlotsFor(testToday()) {
		if s.TimeLabel == "08:30 AM" {
			assert.False(t, s.IsAvailable)
		}
	}

	_, err = admin.ToggleSlot(testToday(), "09:99 AM")
	assert.ErrorIs(t, err, state.ErrNotFound)

	assert.Equal(t, []string{
		events.EventSlotToggled, events.EventSlotToggled, events.EventSlotToggled, events.EventSlotToggled,
	}, pub.types())
	remote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminConsole_UpdateReservation(t *testing.T) {
	remote := new(mockRemote)
	r1 := existingReservation(t, "res-1", "08:30 AM", testToday())
	r2 := existingReservation(t, "res-2", "02:30 PM", testToday())
	deps, pub := newTestDeps(t, remote, state.AppState{Reservations: []models.Reservation{r1, r2}})
	admin := NewAdminConsole(deps, "code")
	ctx := context.Background()

	t.Run("requires name and contact", func(t *testing.T) {
		_, err := admin.UpdateReservation(ctx, "res-1", ReservationEdit{PlayerName: "X"})
		assert.ErrorIs(t, err, ErrIncomplete)
	})

	t.Run("conflict with another booking", func(t *testing.T) {
		_, err := admin.UpdateReservation(ctx, "res-1", ReservationEdit{
			PlayerName: "X", Contact: "x@example.com", TimeLabel: "02:30 PM",
		})
		assert.ErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := admin.UpdateReservation(ctx, "res-9", ReservationEdit{PlayerName: "X", Contact: "y"})
		assert.True(t, IsNotFound(err))
	})

	remote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	t.Run("moves and reprices", func(t *testing.T) {
		remote.On("Update", mock.Anything, models.CollectionReservations, "res-1", mock.MatchedBy(func(r models.Record) bool {
			return r.String("time_label") == "10:00 AM" && r.Float("total_price") == 1400
		})).Return(nil).Once()

		updated, err := admin.UpdateReservation(ctx, "res-1", ReservationEdit{
			PlayerName: "Julianne", Contact: "j@example.com", TimeLabel: "10:00 AM",
			PlayerType: models.PlayerGuest, DurationMinutes: 90,
		})
		require.NoError(t, err)
		assert.Equal(t, 1400.0, updated.TotalPrice)
		assert.Equal(t, testToday(), updated.Date)

		got, ok := deps.Store.Snapshot().Reservation("res-1")
		require.True(t, ok)
		assert.Equal(t, "10:00 AM", got.TimeLabel)
		assert.Contains(t, pub.types(), events.EventReservationUpdated)
	})

	t.Run("keeps its own slot", func(t *testing.T) {
		remote.On("Update", mock.Anything, models.CollectionReservations, "res-2", mock.Anything).Return(nil).Once()
		_, err := admin.UpdateReservation(ctx, "res-2", ReservationEdit{PlayerName: "Bob", Contact: "bob@x"})
		require.NoError(t, err)
	})

	t.Run("remote failure leaves state", func(t *testing.T) {
		remote.On("Update", mock.Anything, models.CollectionReservations, "res-2", mock.Anything).
			Return(domain.ErrStoreUnavailable).Once()
		_, err := admin.UpdateReservation(ctx, "res-2", ReservationEdit{PlayerName: "Changed", Contact: "c"})
		assert.ErrorIs(t, err, ErrRemoteWrite)
		got, _ := deps.Store.Snapshot().Reservation("res-2")
		assert.Equal(t, "Bob", got.PlayerName)
	})
}

func TestAdminConsole_UpdateReservationRespectsClosedSlots(t *testing.T) {
	remote := new(mockRemote)
	r1 := existingReservation(t, "res-1", "08:30 AM", testToday())
	deps, _ := newTestDeps(t, remote, state.AppState{Reservations: []models.Reservation{r1}})
	admin := NewAdminConsole(deps, "code")
	ctx := context.Background()

	_, err := admin.ToggleSlot(testToday(), "10:00 AM")
	require.NoError(t, err)
	_, err = admin.ToggleSlot(testToday(), "08:30 AM")
	require.NoError(t, err)

	_, err = admin.UpdateReservation(ctx, "res-1", ReservationEdit{
		PlayerName: "X", Contact: "x@example.com", TimeLabel: "10:00 AM",
	})
	assert.ErrorIs(t, err, ErrSlotClosed)
	remote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	remote.On("Update", mock.Anything, models.CollectionReservations, "res-1", mock.Anything).Return(nil).Once()
	updated, err := admin.UpdateReservation(ctx, "res-1", ReservationEdit{PlayerName: "Renamed", Contact: "x@example.com"})
	require.NoError(t, err, "a closed override on its own slot does not block an edit in place")
	assert.Equal(t, "Renamed", updated.PlayerName)
}

func TestAdminConsole_DeleteReservationReleasesSlot(t *testing.T) {
	remote := new(mockRemote)
	r1 := existingReservation(t, "res-1", "08:30 AM", testToday())
	overrides := availability.Overrides{availability.SlotKey{Date: testToday(), TimeLabel: "08:30 AM"}: true}
	deps, pub := newTestDeps(t, remote, state.AppState{Reservations: []models.Reservation{r1}, Overrides: overrides})
	admin := NewAdminConsole(deps, "code")

	remote.On("Delete", mock.Anything, models.CollectionReservations, "res-1").Return(nil).Once()
	require.NoError(t, admin.DeleteReservation(context.Background(), "res-1"))

	snap := deps.Store.Snapshot()
	assert.Empty(t, snap.Reservations)
	assert.False(t, snap.Overrides.Closed(testToday(), "08:30 AM"))
	for _, s := range snap.SlotsFor(testToday()) {
		assert.True(t, s.IsAvailable, s.TimeLabel)
	}
	assert.Equal(t, []string{events.EventReservationDeleted}, pub.types())

	err := admin.DeleteReservation(context.Background(), "res-1")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestAdminConsole_DeleteTolerateMissingRemote(t *testing.T) {
	remote := new(mockRemote)
	r1 := existingReservation(t, "res-1", "08:30 AM", testToday())
	deps, _ := newTestDeps(t, remote, state.AppState{Reservations: []models.Reservation{r1}})
	admin := NewAdminConsole(deps, "code")

	remote.On("Delete", mock.Anything, models.CollectionReservations, "res-1").
		Return(fmt.Errorf("delete: %w", domain.ErrRecordNotFound))
	require.NoError(t, admin.DeleteReservation(context.Background(), "res-1"))
	assert.Empty(t, deps.Store.Snapshot().Reservations)
}

func TestAdminConsole_DeleteRemoteFailure(t *testing.T) {
	remote := new(mockRemote)
	r1 := existingReservation(t, "res-1", "08:30 AM", testToday())
	deps, _ := newTestDeps(t, remote, state.AppState{Reservations: []models.Reservation{r1}})
	admin := NewAdminConsole(deps, "code")

	remote.On("Delete", mock.Anything, models.CollectionReservations, "res-1").Return(errors.New("down"))
	err := admin.DeleteReservation(context.Background(), "res-1")
	assert.ErrorIs(t, err, ErrRemoteWrite)
	assert.Len(t, deps.Store.Snapshot().Reservations, 1)
}

func TestAdminConsole_RemovePeople(t *testing.T) {
	remote := new(mockRemote)
	deps, pub := newTestDeps(t, remote, state.AppState{
		Waitlist: []models.WaitlistEntry{{ID: "wl-1", Name: "Ann", Phone: "1"}},
		Members:  []models.Member{{ID: "mem-1", Name: "Bob", Phone: "2"}},
	})
	admin := NewAdminConsole(deps, "code")
	ctx := context.Background()

	remote.On("Delete", mock.Anything, models.CollectionWaitlist, "wl-1").Return(nil).Once()
	remote.On("Delete", mock.Anything, models.CollectionMembers, "mem-1").Return(nil).Once()

	require.NoError(t, admin.RemoveWaitlistEntry(ctx, "wl-1"))
	require.NoError(t, admin.RemoveMember(ctx, "mem-1"))
	assert.True(t, IsNotFound(admin.RemoveMember(ctx, "mem-1")))

	snap := deps.Store.Snapshot()
	assert.Empty(t, snap.Waitlist)
	assert.Empty(t, snap.Members)
	assert.Equal(t, []string{events.EventWaitlistRemoved, events.EventMemberRemoved}, pub.types())
	remote.AssertExpectations(t)
}

func TestAdminConsole_News(t *testing.T) {
	deps, _ := newTestDeps(t, new(mockRemote), state.AppState{News: models.DefaultNews()})
	admin := NewAdminConsole(deps, "code")

	_, err := admin.PostNews(NewsInput{Title: "Only title"})
	assert.ErrorIs(t, err, ErrIncomplete)

	item, err := admin.PostNews(NewsInput{Title: "Night league", Description: "Starts Monday"})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNewsTag, item.Tag)
	assert.Equal(t, fmt.Sprintf("https://picsum.photos/seed/%d/400/300", testNow.UnixMilli()), item.ImageURL)

	news := deps.Store.Snapshot().News
	require.Len(t, news, 4)
	assert.Equal(t, item.ID, news[0].ID)

	edited, err := admin.EditNews(item.ID, NewsInput{Title: "Night league", Description: "Starts Tuesday", Tag: "Event", ImageURL: "http://img"})
	require.NoError(t, err)
	assert.Equal(t, "Event", edited.Tag)
	assert.Equal(t, "Starts Tuesday", deps.Store.Snapshot().News[0].Description)

	_, err = admin.EditNews("missing", NewsInput{Title: "a", Description: "b"})
	assert.ErrorIs(t, err, state.ErrNotFound)

	require.NoError(t, admin.DeleteNews(item.ID))
	assert.Len(t, deps.Store.Snapshot().News, 3)
}

func TestAdminConsole_Overview(t *testing.T) {
	r1 := existingReservation(t, "res-1", "02:30 PM", testToday())
	r2 := existingReservation(t, "res-2", "08:30 AM", testToday())
	r3 := existingReservation(t, "res-3", "07:00 AM", testToday().AddDays(1))
	deps, _ := newTestDeps(t, new(mockRemote), state.AppState{Reservations: []models.Reservation{r3, r1, r2}})
	admin := NewAdminConsole(deps, "code")

	o := admin.Overview(models.Date{})
	assert.Equal(t, testToday(), o.Date)
	require.Len(t, o.Reservations, 3)
	assert.Equal(t, []string{"res-2", "res-1", "res-3"}, []string{o.Reservations[0].ID, o.Reservations[1].ID, o.Reservations[2].ID})
	assert.Len(t, o.DayReservations, 2)
	assert.Equal(t, 1000.0, o.DayRevenue)
	assert.Equal(t, len(models.DefaultSlots())-2, o.OpenSlots)
}

func TestAdminConsole_Export(t *testing.T) {
	r1 := existingReservation(t, "res-1", "08:30 AM", testToday())
	deps, _ := newTestDeps(t, new(mockRemote), state.AppState{Reservations: []models.Reservation{r1}})
	admin := NewAdminConsole(deps, "code")

	var buf bytes.Buffer
	require.NoError(t, admin.Export(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Reservations")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
