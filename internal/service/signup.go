package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/events"
	"courtclub/internal/models"
	"courtclub/internal/state"
)

// SignupRequest is the waitlist and membership form.
type SignupRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// SignupOutcome tells the caller what to show and for how long.
type SignupOutcome struct {
	Phase        Phase                 `json:"phase"`
	Message      string                `json:"message,omitempty"`
	DismissAfter time.Duration         `json:"-"`
	Entry        *models.WaitlistEntry `json:"entry,omitempty"`
	Member       *models.Member        `json:"member,omitempty"`
}

// DismissAfterMillis is DismissAfter as a JSON friendly number.
func (o *SignupOutcome) DismissAfterMillis() int64 {
	return o.DismissAfter.Milliseconds()
}

// signupFlow is the shared shape of the waitlist and membership workflows:
// duplicate phone check, one remote insert, then a local append.
type signupFlow[T any] struct {
	collection   models.Collection
	prefix       string
	eventType    string
	confirmation string

	build   func(id string, req SignupRequest, joinedAt time.Time) T
	phones  func(s state.AppState) []string
	record  func(v T) models.Record
	action  func(v T) state.Action
	payload func(v T) interface{}
}

func (f *signupFlow[T]) run(ctx context.Context, m *machine, deps *Deps, req SignupRequest) (T, error) {
	var zero T

	m.enter(PhaseValidating)
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)
	phone := models.NormalizePhone(req.Phone)
	if req.Name == "" || phone == "" {
		return zero, ErrIncomplete
	}

	m.enter(PhaseChecking)
	for _, p := range f.phones(deps.Store.Snapshot()) {
		if models.NormalizePhone(p) == phone {
			return zero, ErrDuplicateContact
		}
	}

	m.enter(PhasePersisting)
	v := f.build(models.NewID(f.prefix), req, deps.now().UTC())

	rctx, cancel := deps.remoteContext(ctx)
	defer cancel()
	if err := deps.Remote.Insert(rctx, f.collection, f.record(v)); err != nil {
		deps.Logger.Error().Err(err).Str("collection", string(f.collection)).Msg("failed to persist signup")
		if errors.Is(err, domain.ErrDuplicateRecord) {
			return zero, fmt.Errorf("%w: %w", ErrDuplicateContact, err)
		}
		return zero, remoteWriteError(err)
	}

	if err := deps.Store.Dispatch(f.action(v)); err != nil {
		deps.Logger.Error().Err(err).Str("collection", string(f.collection)).Msg("failed to apply signup locally")
	}
	deps.publish(f.eventType, f.payload(v))
	return v, nil
}

// WaitlistWorkflow adds visitors to the court waitlist.
type WaitlistWorkflow struct {
	machine
	deps *Deps
	flow *signupFlow[models.WaitlistEntry]
}

func NewWaitlistWorkflow(deps *Deps) *WaitlistWorkflow {
	w := &WaitlistWorkflow{deps: deps, flow: &signupFlow[models.WaitlistEntry]{
		collection:   models.CollectionWaitlist,
		prefix:       models.IDPrefixWaitlist,
		eventType:    events.EventWaitlistJoined,
		confirmation: "You're on the list! We'll notify you as soon as a slot becomes available.",
		build: func(id string, req SignupRequest, joinedAt time.Time) models.WaitlistEntry {
			return models.WaitlistEntry{ID: id, Name: req.Name, Phone: req.Phone, Email: req.Email, JoinedAt: joinedAt}
		},
		phones: func(s state.AppState) []string {
			out := make([]string, 0, len(s.Waitlist))
			for _, e := range s.Waitlist {
				out = append(out, e.Phone)
			}
			return out
		},
		record: func(e models.WaitlistEntry) models.Record { return e.Record() },
		action: func(e models.WaitlistEntry) state.Action { return state.WaitlistJoined{Entry: e} },
		payload: func(e models.WaitlistEntry) interface{} {
			return events.WaitlistEventPayload{Entry: e}
		},
	}}
	w.init("waitlist")
	return w
}

func (w *WaitlistWorkflow) Submit(ctx context.Context, req SignupRequest) (*SignupOutcome, error) {
	release, err := w.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	entry, err := w.flow.run(ctx, &w.machine, w.deps, req)
	w.finish(err)
	outcome := &SignupOutcome{Phase: w.Phase()}
	if err != nil {
		outcome.Message = UserMessage(err)
		return outcome, err
	}
	outcome.Entry = &entry
	outcome.Message = w.flow.confirmation
	outcome.DismissAfter = w.deps.confirmationDelay()
	w.deps.Logger.Info().Str("entry_id", entry.ID).Msg("waitlist joined")
	return outcome, nil
}

// MembershipWorkflow registers new club members.
type MembershipWorkflow struct {
	machine
	deps *Deps
	flow *signupFlow[models.Member]
}

func NewMembershipWorkflow(deps *Deps) *MembershipWorkflow {
	w := &MembershipWorkflow{deps: deps, flow: &signupFlow[models.Member]{
		collection:   models.CollectionMembers,
		prefix:       models.IDPrefixMember,
		eventType:    events.EventMemberJoined,
		confirmation: "Welcome, Elite Member. Your membership has been verified.",
		build: func(id string, req SignupRequest, joinedAt time.Time) models.Member {
			return models.Member{ID: id, Name: req.Name, Phone: req.Phone, JoinedAt: joinedAt}
		},
		phones: func(s state.AppState) []string {
			out := make([]string, 0, len(s.Members))
			for _, m := range s.Members {
				out = append(out, m.Phone)
			}
			return out
		},
		record: func(m models.Member) models.Record { return m.Record() },
		action: func(m models.Member) state.Action { return state.MemberJoined{Member: m} },
		payload: func(m models.Member) interface{} {
			return events.MemberEventPayload{Member: m}
		},
	}}
	w.init("membership")
	return w
}

func (w *MembershipWorkflow) Submit(ctx context.Context, req SignupRequest) (*SignupOutcome, error) {
	release, err := w.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	member, err := w.flow.run(ctx, &w.machine, w.deps, req)
	w.finish(err)
	outcome := &SignupOutcome{Phase: w.Phase()}
	if err != nil {
		outcome.Message = UserMessage(err)
		return outcome, err
	}
	outcome.Member = &member
	outcome.Message = w.flow.confirmation
	outcome.DismissAfter = w.deps.confirmationDelay()
	w.deps.Logger.Info().Str("member_id", member.ID).Msg("member joined")
	return outcome, nil
}
