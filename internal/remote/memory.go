package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/models"
	"courtclub/internal/pricing"
)

// MemoryStore is an in-process RemoteStore for development and tests.
type MemoryStore struct {
	mu                sync.RWMutex
	collections       map[models.Collection]map[string]models.Record
	enforceUniqueSlot bool
}

var _ domain.RemoteStore = (*MemoryStore)(nil)

func NewMemoryStore(enforceUniqueSlot bool) *MemoryStore {
	s := &MemoryStore{
		collections:       make(map[models.Collection]map[string]models.Record),
		enforceUniqueSlot: enforceUniqueSlot,
	}
	for c := range models.Columns {
		s.collections[c] = make(map[string]models.Record)
	}
	return s
}

func copyRecord(r models.Record) models.Record {
	out := make(models.Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func (s *MemoryStore) table(collection models.Collection) (map[string]models.Record, error) {
	t, ok := s.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: unknown collection %q", domain.ErrRecordRejected, collection)
	}
	return t, nil
}

func checkColumns(collection models.Collection, record models.Record) error {
	for key := range record {
		if !models.HasColumn(collection, key) {
			return fmt.Errorf("%w: unknown column %q", domain.ErrRecordRejected, key)
		}
	}
	return nil
}

func (s *MemoryStore) slotTaken(t map[string]models.Record, candidate models.Record, selfID string) bool {
	date, label := candidate.String("date"), candidate.String("time_label")
	for id, rec := range t {
		if id != selfID && rec.String("date") == date && rec.String("time_label") == label {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Insert(ctx context.Context, collection models.Collection, record models.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(collection)
	if err != nil {
		return err
	}
	id := record.ID()
	if id == "" {
		return fmt.Errorf("%w: record without id", domain.ErrRecordRejected)
	}
	if err := checkColumns(collection, record); err != nil {
		return err
	}
	if _, exists := t[id]; exists {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateRecord, collection, id)
	}
	if s.enforceUniqueSlot && collection == models.CollectionReservations && s.slotTaken(t, record, "") {
		return fmt.Errorf("%w: slot %s %s", domain.ErrDuplicateRecord, record.String("date"), record.String("time_label"))
	}
	t[id] = copyRecord(record)
	return nil
}

func (s *MemoryStore) FetchAll(ctx context.Context, collection models.Collection, orderBy string) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.table(collection)
	if err != nil {
		return nil, err
	}
	if orderBy == "" {
		orderBy = models.DefaultOrder[collection]
	}
	if !models.HasColumn(collection, orderBy) {
		return nil, fmt.Errorf("%w: cannot order by %q", domain.ErrRecordRejected, orderBy)
	}

	out := make([]models.Record, 0, len(t))
	for _, rec := range t {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].String(orderBy), out[j].String(orderBy)
		if a != b {
			return a < b
		}
		return out[i].ID() < out[j].ID()
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection models.Collection, id string, record models.Record) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(collection)
	if err != nil {
		return err
	}
	if err := checkColumns(collection, record); err != nil {
		return err
	}
	current, ok := t[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	merged := copyRecord(current)
	for k, v := range record {
		if k == "id" {
			continue
		}
		merged[k] = v
	}
	if s.enforceUniqueSlot && collection == models.CollectionReservations && s.slotTaken(t, merged, id) {
		return fmt.Errorf("%w: slot %s %s", domain.ErrDuplicateRecord, merged.String("date"), merged.String("time_label"))
	}
	t[id] = merged
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection models.Collection, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(collection)
	if err != nil {
		return err
	}
	if _, ok := t[id]; !ok {
		return fmt.Errorf("%w: %s/%s", domain.ErrRecordNotFound, collection, id)
	}
	delete(t, id)
	return nil
}

// DemoReservations are the two bookings a fresh demo club starts with.
func DemoReservations(today models.Date, rates models.ClubRates, now time.Time) []models.Reservation {
	return []models.Reservation{
		{
			ID:                  "res-1",
			Date:                today,
			TimeLabel:           "08:30 AM",
			DurationMinutes:     models.Duration90,
			PlayerName:          "Julianne Moore",
			Contact:             "j.moore@example.com",
			NotificationChannel: models.ChannelEmail,
			PlayerType:          models.PlayerMember,
			TotalPrice:          pricing.Price(rates, models.PlayerMember, models.Duration90),
			CreatedAt:           now,
		},
		{
			ID:                  "res-2",
			Date:                today,
			TimeLabel:           "02:30 PM",
			DurationMinutes:     models.Duration60,
			PlayerName:          "Robert De Niro",
			Contact:             "bob@hollywood.com",
			NotificationChannel: models.ChannelWhatsApp,
			PlayerType:          models.PlayerMember,
			TotalPrice:          pricing.Price(rates, models.PlayerMember, models.Duration60),
			CreatedAt:           now,
		},
	}
}

// SeedDemo inserts DemoReservations, skipping ids already present.
func (s *MemoryStore) SeedDemo(ctx context.Context, today models.Date, rates models.ClubRates, now time.Time) error {
	for _, res := range DemoReservations(today, rates, now) {
		err := s.Insert(ctx, models.CollectionReservations, res.Record())
		if err != nil && !isDuplicate(err) {
			return err
		}
	}
	return nil
}
