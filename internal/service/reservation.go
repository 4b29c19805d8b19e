package service

import (
	"context"
	"strings"

	"courtclub/internal/availability"
	"courtclub/internal/events"
	"courtclub/internal/models"
	"courtclub/internal/pricing"
	"courtclub/internal/state"
)

// BookingRequest is one submission of the booking form.
type BookingRequest struct {
	Date                models.Date                `json:"date"`
	TimeLabel           string                     `json:"time_label"`
	DurationMinutes     int                        `json:"duration_minutes"`
	PlayerType          models.PlayerType          `json:"player_type"`
	PlayerName          string                     `json:"player_name"`
	Contact             string                     `json:"contact"`
	NotificationChannel models.NotificationChannel `json:"notification_channel"`
}

func RequestFromDraft(d models.BookingDraft) BookingRequest {
	return BookingRequest{
		Date:                d.Date,
		TimeLabel:           d.TimeLabel,
		DurationMinutes:     d.DurationMinutes,
		PlayerType:          d.PlayerType,
		PlayerName:          d.PlayerName,
		Contact:             d.Contact,
		NotificationChannel: d.NotificationChannel,
	}
}

// BookingOutcome is what a submission leaves behind for the caller.
type BookingOutcome struct {
	Phase       Phase               `json:"phase"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
	Receipt     *models.Receipt     `json:"receipt,omitempty"`
	Quote       *pricing.Quote      `json:"quote,omitempty"`
	Message     string              `json:"message,omitempty"`
}

// ReservationWorkflow runs a booking through validating, checking and
// persisting. Local state changes only after the remote store accepted the
// reservation, so a failure leaves nothing behind.
type ReservationWorkflow struct {
	machine
	deps *Deps
}

func NewReservationWorkflow(deps *Deps) *ReservationWorkflow {
	w := &ReservationWorkflow{deps: deps}
	w.init("reservation")
	return w
}

// Submit returns ErrSubmissionInFlight without touching the phase when
// another submission of this workflow has not finished yet.
func (w *ReservationWorkflow) Submit(ctx context.Context, req BookingRequest) (*BookingOutcome, error) {
	release, err := w.begin()
	if err != nil {
		return nil, err
	}
	defer release()

	outcome, err := w.run(ctx, req)
	w.finish(err)
	outcome.Phase = w.Phase()
	if err != nil {
		outcome.Message = UserMessage(err)
	}
	return outcome, err
}

func (w *ReservationWorkflow) run(ctx context.Context, req BookingRequest) (*BookingOutcome, error) {
	outcome := &BookingOutcome{}

	w.enter(PhaseValidating)
	req = normalizeRequest(req)
	snapshot := w.deps.Store.Snapshot()
	if err := w.validate(req, snapshot); err != nil {
		return outcome, err
	}

	w.enter(PhaseChecking)
	if err := checkSlot(snapshot, req.Date, req.TimeLabel, ""); err != nil {
		w.deps.Logger.Info().Err(err).Str("date", req.Date.String()).Str("time", req.TimeLabel).Msg("booking rejected by local check")
		return outcome, err
	}

	w.enter(PhasePersisting)
	quote := pricing.Calculate(w.deps.Rates, req.PlayerType, req.DurationMinutes)
	outcome.Quote = &quote
	res := models.Reservation{
		ID:                  models.NewID(models.IDPrefixReservation),
		Date:                req.Date,
		TimeLabel:           req.TimeLabel,
		DurationMinutes:     req.DurationMinutes,
		PlayerName:          req.PlayerName,
		Contact:             req.Contact,
		NotificationChannel: req.NotificationChannel,
		PlayerType:          req.PlayerType,
		TotalPrice:          quote.Total,
		CreatedAt:           w.deps.now().UTC(),
	}

	rctx, cancel := w.deps.remoteContext(ctx)
	defer cancel()
	if err := w.deps.Remote.Insert(rctx, models.CollectionReservations, res.Record()); err != nil {
		w.deps.Logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to persist reservation")
		return outcome, remoteWriteError(err)
	}

	if err := w.deps.Store.Dispatch(state.ReservationAdded{Reservation: res}); err != nil {
		// запись уже есть в удаленном хранилище, локально догонит refresh
		w.deps.Logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to apply stored reservation locally")
	}
	outcome.Reservation = &res

	if w.deps.Receipts != nil {
		receipt, err := w.deps.Receipts.Issue(res)
		if err != nil {
			w.deps.Logger.Error().Err(err).Str("reservation_id", res.ID).Msg("failed to issue receipt")
		} else {
			outcome.Receipt = receipt
		}
	}

	w.deps.publish(events.EventReservationCreated, events.ReservationEventPayload{Reservation: res, ChangedBy: "visitor"})
	w.deps.Logger.Info().Str("reservation_id", res.ID).Str("date", res.Date.String()).Str("time", res.TimeLabel).
		Float64("total", res.TotalPrice).Msg("reservation created")
	return outcome, nil
}

func normalizeRequest(req BookingRequest) BookingRequest {
	req.TimeLabel = strings.TrimSpace(req.TimeLabel)
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	req.Contact = strings.TrimSpace(req.Contact)
	return req
}

func (w *ReservationWorkflow) validate(req BookingRequest, snapshot state.AppState) error {
	if req.Date.IsZero() || req.TimeLabel == "" || req.PlayerName == "" || req.Contact == "" {
		return ErrIncomplete
	}
	if !models.ValidDuration(req.DurationMinutes) {
		return ErrInvalidDuration
	}
	if req.PlayerType != models.PlayerMember && req.PlayerType != models.PlayerGuest {
		return ErrInvalidPlayerType
	}
	if req.NotificationChannel != models.ChannelEmail && req.NotificationChannel != models.ChannelWhatsApp {
		return ErrInvalidChannel
	}
	if req.Date.Before(w.deps.Today()) {
		return ErrPastDate
	}
	if _, ok := models.FindSlot(snapshot.Slots, req.TimeLabel); !ok {
		return ErrUnknownSlot
	}
	return nil
}

// checkSlot is the double-booking guard shared with the admin edit.
func checkSlot(snapshot state.AppState, date models.Date, timeLabel, excludeID string) error {
	if _, taken := availability.FindConflict(snapshot.Reservations, date, timeLabel, excludeID); taken {
		return ErrSlotTaken
	}
	if snapshot.Overrides.Closed(date, timeLabel) {
		return ErrSlotClosed
	}
	return nil
}
