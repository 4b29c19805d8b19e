package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"courtclub/internal/assistant"
	"courtclub/internal/metrics"
	"courtclub/internal/models"
	"courtclub/internal/receipt"
	"courtclub/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const sessionHeader = "X-Session-ID"

// sessionID returns the visitor session from the header, minting one when the
// client has none yet. The id is echoed back so the client can keep it.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(sessionHeader, id)
	return id
}

// dateParam reads ?date=, defaulting to the club's today.
func (s *HTTPServer) dateParam(r *http.Request) (models.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		return s.svc.Club.Today(), nil
	}
	return models.ParseDate(raw)
}

func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	slots := s.svc.Club.Slots(date)
	open := 0
	for _, slot := range slots {
		if slot.IsAvailable {
			open++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       date,
		"slots":      slots,
		"open_slots": open,
	})
}

func (s *HTTPServer) handleRates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Club.Rates())
}

func (s *HTTPServer) handlePricing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	playerType, ok := models.ParsePlayerType(q.Get("player_type"))
	if !ok {
		s.writeFailure(w, r, service.ErrInvalidPlayerType)
		return
	}
	duration, err := strconv.Atoi(strings.TrimSpace(q.Get("duration")))
	if err != nil {
		s.writeFailure(w, r, service.ErrInvalidDuration)
		return
	}

	quote, err := s.svc.Club.Quote(playerType, duration)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (s *HTTPServer) handleNews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"news": s.svc.Club.News()})
}

func (s *HTTPServer) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := s.svc.Sessions.Draft(r.Context(), sessionID(w, r))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	var patch service.DraftPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	draft, err := s.svc.Sessions.UpdateDraft(r.Context(), id, patch)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// handleSubmitReservation merges the optional body into the session draft
// and submits it.
func (s *HTTPServer) handleSubmitReservation(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	var patch service.DraftPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := s.svc.Sessions.SubmitBooking(r.Context(), id, patch)
	if err != nil {
		if outcome == nil || statusFor(err) == http.StatusUnprocessableEntity {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, statusFor(err), outcome)
		return
	}
	writeJSON(w, http.StatusCreated, outcome)
}

func (s *HTTPServer) reservation(w http.ResponseWriter, r *http.Request) (models.Reservation, bool) {
	res, err := s.svc.Club.Reservation(mux.Vars(r)["id"])
	if err != nil {
		s.writeFailure(w, r, err)
		return models.Reservation{}, false
	}
	return res, true
}

func (s *HTTPServer) handleReceiptPDF(w http.ResponseWriter, r *http.Request) {
	res, ok := s.reservation(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := s.svc.Receipts.WritePDF(&buf, res); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="receipt-`+res.ID+`.pdf"`)
	writeBlob(w, "application/pdf", buf.Bytes())
}

func (s *HTTPServer) handleReceiptQR(w http.ResponseWriter, r *http.Request) {
	res, ok := s.reservation(w, r)
	if !ok {
		return
	}
	png, err := s.svc.Receipts.QRCode(res)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeBlob(w, "image/png", png)
}

func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Payload string `json:"payload"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	checkIn, err := s.svc.Receipts.Verify(strings.TrimSpace(body.Payload))
	switch {
	case errors.Is(err, receipt.ErrBadSignature):
		writeJSON(w, http.StatusForbidden, map[string]any{"valid": false, "error": "signature does not match"})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": "malformed check-in code"})
		return
	}

	res, err := s.svc.Club.Reservation(checkIn.ReservationID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"valid": false, "error": service.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":       true,
		"check_in":    checkIn,
		"reservation": res,
	})
}

type signupFunc func(ctx context.Context, sessionID string, req service.SignupRequest) (*service.SignupOutcome, error)

type signupResponse struct {
	*service.SignupOutcome
	DismissAfterMS int64 `json:"dismiss_after_ms"`
}

func (s *HTTPServer) handleJoinWaitlist(w http.ResponseWriter, r *http.Request) {
	s.handleSignup(w, r, s.svc.Sessions.JoinWaitlist)
}

func (s *HTTPServer) handleBecomeMember(w http.ResponseWriter, r *http.Request) {
	s.handleSignup(w, r, s.svc.Sessions.BecomeMember)
}

func (s *HTTPServer) handleSignup(w http.ResponseWriter, r *http.Request, submit signupFunc) {
	id := sessionID(w, r)
	var req service.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	outcome, err := submit(r.Context(), id, req)
	if err != nil {
		if outcome == nil || statusFor(err) == http.StatusUnprocessableEntity {
			s.writeFailure(w, r, err)
			return
		}
		writeJSON(w, statusFor(err), signupResponse{SignupOutcome: outcome})
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{
		SignupOutcome:  outcome,
		DismissAfterMS: outcome.DismissAfterMillis(),
	})
}

func (s *HTTPServer) handleAssistantWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, assistant.Reply{Text: assistant.WelcomeMessage(s.svc.Club.Name())})
}

func (s *HTTPServer) handleAssistantChat(w http.ResponseWriter, r *http.Request) {
	id := sessionID(w, r)
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	utterance := strings.TrimSpace(body.Message)
	if utterance == "" {
		s.writeFailure(w, r, service.ErrIncomplete)
		return
	}

	if err := s.svc.Sessions.AllowChat(r.Context(), id); err != nil {
		metrics.IncAssistant("limited")
		s.writeFailure(w, r, err)
		return
	}

	reply := s.svc.Concierge.Ask(r.Context(), s.facts(), utterance)
	writeJSON(w, http.StatusOK, reply)
}

// facts is what the concierge may talk about: today's open slots, rates and
// the news headlines.
func (s *HTTPServer) facts() assistant.Facts {
	club := s.svc.Club
	facts := assistant.Facts{
		ClubName: club.Name(),
		Rates:    club.Rates(),
	}
	for _, slot := range club.AvailableSlots(club.Today()) {
		facts.AvailableSlots = append(facts.AvailableSlots, slot.TimeLabel)
	}
	for _, item := range club.News() {
		facts.NewsTitles = append(facts.NewsTitles, item.Title)
	}
	return facts
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Loader.Refresh(r.Context()); err != nil {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("refresh failed")
		writeError(w, http.StatusBadGateway, "The reservation service is unreachable right now. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"waitlist": s.svc.Club.WaitlistCount(),
	})
}
