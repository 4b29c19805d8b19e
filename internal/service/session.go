package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/models"
)

// ErrRateLimited is returned when a session sends chat messages too fast.
var ErrRateLimited = errors.New("too many requests")

// DraftPatch changes only the fields that are set.
type DraftPatch struct {
	Date                *models.Date                `json:"date,omitempty"`
	TimeLabel           *string                     `json:"time_label,omitempty"`
	DurationMinutes     *int                        `json:"duration_minutes,omitempty"`
	PlayerType          *models.PlayerType          `json:"player_type,omitempty"`
	PlayerName          *string                     `json:"player_name,omitempty"`
	Contact             *string                     `json:"contact,omitempty"`
	NotificationChannel *models.NotificationChannel `json:"notification_channel,omitempty"`
}

func (p DraftPatch) apply(d *models.BookingDraft) {
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.TimeLabel != nil {
		d.TimeLabel = *p.TimeLabel
	}
	if p.DurationMinutes != nil {
		d.DurationMinutes = *p.DurationMinutes
	}
	if p.PlayerType != nil {
		d.PlayerType = *p.PlayerType
	}
	if p.PlayerName != nil {
		d.PlayerName = *p.PlayerName
	}
	if p.Contact != nil {
		d.Contact = *p.Contact
	}
	if p.NotificationChannel != nil {
		d.NotificationChannel = *p.NotificationChannel
	}
}

// Session is one visitor: a booking draft plus one instance of every workflow.
type Session struct {
	ID          string
	Reservation *ReservationWorkflow
	Waitlist    *WaitlistWorkflow
	Membership  *MembershipWorkflow

	lastSeen time.Time
}

type SessionOptions struct {
	IdleTTL        time.Duration
	ChatRateLimit  int
	ChatRateWindow time.Duration
}

// SessionService keeps visitor sessions and their booking drafts.
type SessionService struct {
	deps      *Deps
	stateRepo domain.StateRepository
	opts      SessionOptions

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionService(deps *Deps, stateRepo domain.StateRepository, opts SessionOptions) *SessionService {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = models.DefaultDraftTTL
	}
	if opts.ChatRateLimit <= 0 {
		opts.ChatRateLimit = models.ChatRateLimitMessages
	}
	if opts.ChatRateWindow <= 0 {
		opts.ChatRateWindow = models.ChatRateLimitWindow
	}
	return &SessionService{
		deps:      deps,
		stateRepo: stateRepo,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the session for id, creating it on first use.
func (s *SessionService) Session(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{
			ID:          id,
			Reservation: NewReservationWorkflow(s.deps),
			Waitlist:    NewWaitlistWorkflow(s.deps),
			Membership:  NewMembershipWorkflow(s.deps),
		}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.deps.now()
	return sess
}

// Sweep forgets sessions idle for longer than the draft TTL. Sessions with a
// submission in flight are kept.
func (s *SessionService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.deps.now().Add(-s.opts.IdleTTL)
	removed := 0
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) && !sess.busy() {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (sess *Session) busy() bool {
	return sess.Reservation.InFlight() || sess.Waitlist.InFlight() || sess.Membership.InFlight()
}

// Draft returns the stored draft or the form defaults.
func (s *SessionService) Draft(ctx context.Context, sessionID string) (*models.BookingDraft, error) {
	draft, err := s.stateRepo.GetDraft(ctx, sessionID)
	if err != nil {
		s.deps.Logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to get booking draft")
		return nil, err
	}
	if draft == nil {
		draft = models.NewBookingDraft(sessionID, s.deps.Today())
	}
	return draft, nil
}

func (s *SessionService) UpdateDraft(ctx context.Context, sessionID string, patch DraftPatch) (*models.BookingDraft, error) {
	draft, err := s.Draft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	patch.apply(draft)
	draft.UpdatedAt = s.deps.now().UTC()
	if err := s.stateRepo.SetDraft(ctx, draft); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return draft, nil
}

// SubmitBooking merges patch into the draft and submits it. After a success
// the name, contact and time are cleared from the draft.
func (s *SessionService) SubmitBooking(ctx context.Context, sessionID string, patch DraftPatch) (*BookingOutcome, error) {
	draft, err := s.UpdateDraft(ctx, sessionID, patch)
	if err != nil {
		return nil, err
	}

	outcome, err := s.Session(sessionID).Reservation.Submit(ctx, RequestFromDraft(*draft))
	if err != nil {
		return outcome, err
	}

	draft.ClearIdentity()
	draft.UpdatedAt = s.deps.now().UTC()
	if err := s.stateRepo.SetDraft(ctx, draft); err != nil {
		s.deps.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to reset booking draft")
	}
	return outcome, nil
}

func (s *SessionService) JoinWaitlist(ctx context.Context, sessionID string, req SignupRequest) (*SignupOutcome, error) {
	return s.Session(sessionID).Waitlist.Submit(ctx, req)
}

func (s *SessionService) BecomeMember(ctx context.Context, sessionID string, req SignupRequest) (*SignupOutcome, error) {
	return s.Session(sessionID).Membership.Submit(ctx, req)
}

// AllowChat counts one assistant message against the session budget.
func (s *SessionService) AllowChat(ctx context.Context, sessionID string) error {
	ok, err := s.stateRepo.CheckRateLimit(ctx, "chat:"+sessionID, s.opts.ChatRateLimit, s.opts.ChatRateWindow)
	if err != nil {
		// лимит не должен ломать чат
		s.deps.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("chat rate limit check failed")
		return nil
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
