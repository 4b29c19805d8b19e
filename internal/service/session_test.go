package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"courtclub/internal/models"
	"courtclub/internal/repository"
	"courtclub/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newTestSessions(t *testing.T, remote *mockRemote) (*SessionService, *Deps) {
	t.Helper()
	deps, _ := newTestDeps(t, remote, state.AppState{})
	repo := repository.NewMemoryStateRepository(time.Hour)
	return NewSessionService(deps, repo, SessionOptions{ChatRateLimit: 2, ChatRateWindow: time.Minute}), deps
}

func TestSessionService_DraftDefaults(t *testing.T) {
	sessions, _ := newTestSessions(t, new(mockRemote))

	draft, err := sessions.Draft(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", draft.SessionID)
	assert.Equal(t, testToday(), draft.Date)
	assert.Equal(t, 60, draft.DurationMinutes)
	assert.Equal(t, models.PlayerMember, draft.PlayerType)
	assert.Equal(t, models.ChannelEmail, draft.NotificationChannel)
	assert.Empty(t, draft.TimeLabel)
}

func TestSessionService_UpdateDraft(t *testing.T) {
	sessions, _ := newTestSessions(t, new(mockRemote))
	ctx := context.Background()

	_, err := sessions.UpdateDraft(ctx, "s1", DraftPatch{TimeLabel: ptr("07:00 AM"), DurationMinutes: ptr(90)})
	require.NoError(t, err)
	draft, err := sessions.UpdateDraft(ctx, "s1", DraftPatch{PlayerName: ptr("Jane")})
	require.NoError(t, err)

	assert.Equal(t, "07:00 AM", draft.TimeLabel)
	assert.Equal(t, 90, draft.DurationMinutes)
	assert.Equal(t, "Jane", draft.PlayerName)
	assert.Equal(t, testNow, draft.UpdatedAt)
}

func TestSessionService_SubmitClearsIdentity(t *testing.T) {
	remote := new(mockRemote)
	sessions, deps := newTestSessions(t, remote)
	ctx := context.Background()
	remote.On("Insert", mock.Anything, models.CollectionReservations, mock.Anything).Return(nil).Once()

	out, err := sessions.SubmitBooking(ctx, "s1", DraftPatch{
		TimeLabel:  ptr("07:00 AM"),
		PlayerName: ptr("Jane"),
		Contact:    ptr("jane@example.com"),
	})
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, out.Phase)
	assert.Len(t, deps.Store.Snapshot().Reservations, 1)

	draft, err := sessions.Draft(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, draft.TimeLabel)
	assert.Empty(t, draft.PlayerName)
	assert.Empty(t, draft.Contact)
	assert.Equal(t, testToday(), draft.Date)
}

func TestSessionService_FailedSubmitKeepsDraft(t *testing.T) {
	remote := new(mockRemote)
	sessions, _ := newTestSessions(t, remote)
	ctx := context.Background()
	remote.On("Insert", mock.Anything, models.CollectionReservations, mock.Anything).Return(errors.New("boom"))

	_, err := sessions.SubmitBooking(ctx, "s1", DraftPatch{
		TimeLabel:  ptr("07:00 AM"),
		PlayerName: ptr("Jane"),
		Contact:    ptr("jane@example.com"),
	})
	require.Error(t, err)

	draft, err := sessions.Draft(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", draft.PlayerName)
	assert.Equal(t, "07:00 AM", draft.TimeLabel)
}

func TestSessionService_SessionsAreIsolated(t *testing.T) {
	sessions, _ := newTestSessions(t, new(mockRemote))

	a := sessions.Session("a")
	assert.Same(t, a, sessions.Session("a"))
	assert.NotSame(t, a.Reservation, sessions.Session("b").Reservation)
}

func TestSessionService_Sweep(t *testing.T) {
	sessions, deps := newTestSessions(t, new(mockRemote))
	sessions.Session("old")

	later := testNow.Add(2 * models.DefaultDraftTTL)
	deps.Now = func() time.Time { return later }
	sessions.Session("fresh")

	assert.Equal(t, 1, sessions.Sweep())
	sessions.mu.Lock()
	defer sessions.mu.Unlock()
	assert.Contains(t, sessions.sessions, "fresh")
	assert.NotContains(t, sessions.sessions, "old")
}

func TestSessionService_AllowChat(t *testing.T) {
	sessions, _ := newTestSessions(t, new(mockRemote))
	ctx := context.Background()

	assert.NoError(t, sessions.AllowChat(ctx, "s1"))
	assert.NoError(t, sessions.AllowChat(ctx, "s1"))
	assert.ErrorIs(t, sessions.AllowChat(ctx, "s1"), ErrRateLimited)
	assert.NoError(t, sessions.AllowChat(ctx, "s2"))
}
