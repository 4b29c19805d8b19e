package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"courtclub/internal/models"
	"courtclub/internal/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Insert(ctx context.Context, c models.Collection, r models.Record) error {
	return m.Called(ctx, c, r).Error(0)
}

func (m *mockRemote) FetchAll(ctx context.Context, c models.Collection, orderBy string) ([]models.Record, error) {
	args := m.Called(ctx, c, orderBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Record), args.Error(1)
}

func (m *mockRemote) Update(ctx context.Context, c models.Collection, id string, r models.Record) error {
	return m.Called(ctx, c, id, r).Error(0)
}

func (m *mockRemote) Delete(ctx context.Context, c models.Collection, id string) error {
	return m.Called(ctx, c, id).Error(0)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishJSON(eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(res models.Reservation) (*models.Receipt, error) {
	return &models.Receipt{ReservationID: res.ID, Text: "ok"}, nil
}

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func testToday() models.Date { return models.DateOf(testNow) }

func newTestDeps(t *testing.T, remote *mockRemote, initial state.AppState) (*Deps, *recordingPublisher) {
	t.Helper()
	if initial.Slots == nil {
		initial.Slots = models.DefaultSlots()
	}
	logger := zerolog.Nop()
	pub := &recordingPublisher{}
	return &Deps{
		Store:         state.NewStore(initial),
		Remote:        remote,
		Events:        pub,
		Receipts:      fakeIssuer{},
		ClubName:      "Test Club",
		Rates:         models.DefaultRates(),
		Location:      time.UTC,
		RemoteTimeout: time.Second,
		Now:           func() time.Time { return testNow },
		Logger:        &logger,
	}, pub
}

func existingReservation(t *testing.T, id, label string, date models.Date) models.Reservation {
	t.Helper()
	require.NotEmpty(t, label)
	return models.Reservation{
		ID:                  id,
		Date:                date,
		TimeLabel:           label,
		DurationMinutes:     60,
		PlayerName:          "Robert De Niro",
		Contact:             "bob@hollywood.com",
		NotificationChannel: models.ChannelWhatsApp,
		PlayerType:          models.PlayerMember,
		TotalPrice:          500,
		CreatedAt:           testNow,
	}
}
