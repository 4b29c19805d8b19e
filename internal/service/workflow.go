package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"courtclub/internal/domain"
	"courtclub/internal/metrics"
	"courtclub/internal/models"
	"courtclub/internal/state"

	"github.com/rs/zerolog"
)

// Phase is the position of a workflow in its submission state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseValidating Phase = "validating"
	PhaseChecking   Phase = "checking"
	PhasePersisting Phase = "persisting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Deps are the collaborators shared by every workflow of every session.
type Deps struct {
	Store    *state.Store
	Remote   domain.RemoteStore
	Events   domain.EventPublisher
	Receipts domain.ReceiptIssuer

	ClubName          string
	Rates             models.ClubRates
	Location          *time.Location
	RemoteTimeout     time.Duration
	ConfirmationDelay time.Duration

	Now    func() time.Time
	Logger *zerolog.Logger
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) clubName() string {
	if d.ClubName != "" {
		return d.ClubName
	}
	return models.DefaultClubName
}

func (d *Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.Local
}

// Today is the current club date.
func (d *Deps) Today() models.Date {
	return models.Today(d.now(), d.location())
}

func (d *Deps) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.RemoteTimeout
	if timeout <= 0 {
		timeout = models.DefaultRemoteTimeout
	}
	// запрос клиента может оборваться, но начатая запись доводится до конца
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func (d *Deps) publish(eventType string, payload interface{}) {
	if d.Events == nil {
		return
	}
	if err := d.Events.PublishJSON(eventType, payload); err != nil {
		d.Logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}

func (d *Deps) confirmationDelay() time.Duration {
	if d.ConfirmationDelay > 0 {
		return d.ConfirmationDelay
	}
	return models.DefaultConfirmationDelay
}

// machine tracks the phase and the single in-flight submission of a workflow.
type machine struct {
	name     string
	inFlight atomic.Bool
	mu       sync.RWMutex
	phase    Phase
	onPhase  func(Phase)
}

func (m *machine) init(name string) {
	m.name = name
	m.phase = PhaseIdle
}

func (m *machine) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

func (m *machine) enter(p Phase) {
	m.mu.Lock()
	m.phase = p
	hook := m.onPhase
	m.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// begin claims the in-flight slot. The returned func releases it.
func (m *machine) begin() (func(), error) {
	if !m.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInFlight
	}
	return func() { m.inFlight.Store(false) }, nil
}

// InFlight reports whether a submission is outstanding.
func (m *machine) InFlight() bool {
	return m.inFlight.Load()
}

func (m *machine) finish(err error) {
	switch {
	case err == nil:
		m.enter(PhaseSucceeded)
		metrics.ObserveWorkflow(m.name, "succeeded")
	case errors.Is(err, ErrIncomplete):
		m.enter(PhaseIdle)
		metrics.ObserveWorkflow(m.name, "blocked")
	default:
		m.enter(PhaseFailed)
		metrics.ObserveWorkflow(m.name, "failed")
	}
}
