package service

import (
	"context"
	"fmt"

	"courtclub/internal/models"
	"courtclub/internal/state"
)

// Loader pulls the stored collections into the application state.
type Loader struct {
	deps *Deps
}

func NewLoader(deps *Deps) *Loader {
	return &Loader{deps: deps}
}

// Refresh fetches every collection and replaces the local copies in one
// dispatch. When any fetch fails the state is left as it was. Records that
// cannot be decoded are skipped and logged. Writes confirmed by workflows
// while the fetch is running are merged in, not overwritten.
func (l *Loader) Refresh(ctx context.Context) error {
	before := l.deps.Store.Snapshot()

	rctx, cancel := l.deps.remoteContext(ctx)
	defer cancel()

	resRecords, err := l.fetch(rctx, models.CollectionReservations)
	if err != nil {
		return err
	}
	wlRecords, err := l.fetch(rctx, models.CollectionWaitlist)
	if err != nil {
		return err
	}
	memRecords, err := l.fetch(rctx, models.CollectionMembers)
	if err != nil {
		return err
	}

	reservations := decodeAll(l, models.CollectionReservations, resRecords, models.ReservationFromRecord)
	waitlist := decodeAll(l, models.CollectionWaitlist, wlRecords, models.WaitlistEntryFromRecord)
	members := decodeAll(l, models.CollectionMembers, memRecords, models.MemberFromRecord)

	if err := l.deps.Store.Dispatch(
		state.ReservationsLoaded{
			Reservations: reservations,
			Known:        knownIDs(before.Reservations, func(r models.Reservation) string { return r.ID }),
		},
		state.WaitlistLoaded{
			Entries: waitlist,
			Known:   knownIDs(before.Waitlist, func(e models.WaitlistEntry) string { return e.ID }),
		},
		state.MembersLoaded{
			Members: members,
			Known:   knownIDs(before.Members, func(m models.Member) string { return m.ID }),
		},
	); err != nil {
		return fmt.Errorf("apply refresh: %w", err)
	}

	after := l.deps.Store.Snapshot()
	l.deps.Logger.Info().
		Int("reservations", len(after.Reservations)).
		Int("waitlist", len(after.Waitlist)).
		Int("members", len(after.Members)).
		Msg("state refreshed from store")
	return nil
}

func (l *Loader) fetch(ctx context.Context, collection models.Collection) ([]models.Record, error) {
	records, err := l.deps.Remote.FetchAll(ctx, collection, models.DefaultOrder[collection])
	if err != nil {
		l.deps.Logger.Error().Err(err).Str("collection", string(collection)).Msg("failed to fetch collection")
		return nil, fmt.Errorf("fetch %s: %w", collection, err)
	}
	return records, nil
}

func decodeAll[T any](l *Loader, collection models.Collection, records []models.Record, decode func(models.Record) (T, error)) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := decode(rec)
		if err != nil {
			l.deps.Logger.Warn().Err(err).Str("collection", string(collection)).Msg("skipping malformed record")
			continue
		}
		out = append(out, v)
	}
	return out
}

func knownIDs[T any](items []T, id func(T) string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, v := range items {
		out[id(v)] = true
	}
	return out
}
