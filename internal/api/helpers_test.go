package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courtclub/internal/assistant"
	"courtclub/internal/config"
	"courtclub/internal/events"
	"courtclub/internal/models"
	"courtclub/internal/receipt"
	"courtclub/internal/remote"
	"courtclub/internal/repository"
	"courtclub/internal/service"
	"courtclub/internal/state"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

const (
	testAccessCode = "letmein"
	tomorrow       = "2026-10-20"
)

type stubOracle struct {
	text string
	err  error
}

func (o stubOracle) Generate(_ context.Context, _, _ string) (string, error) {
	return o.text, o.err
}

type testEnv struct {
	srv    *HTTPServer
	remote *remote.MemoryStore
	store  *state.Store
	issuer *receipt.Issuer
	deps   *service.Deps
}

type envOption func(cfg *config.APIConfig)

func newTestEnv(t *testing.T, oracle stubOracle, opts ...envOption) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	store := state.NewStore(state.AppState{Slots: models.DefaultSlots(), News: models.DefaultNews()})
	mem := remote.NewMemoryStore(false)
	issuer, err := receipt.NewIssuer("receipt-secret", "Test Club")
	require.NoError(t, err)

	deps := &service.Deps{
		Store:         store,
		Remote:        mem,
		Events:        events.NewEventBus(),
		Receipts:      issuer,
		ClubName:      "Test Club",
		Rates:         models.DefaultRates(),
		Location:      time.UTC,
		RemoteTimeout: time.Second,
		Now:           func() time.Time { return testNow },
		Logger:        &logger,
	}

	cfg := &config.APIConfig{
		Admin: config.APIAdminConfig{TokenSecret: "token-secret", TokenTTL: time.Hour},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	sessions := service.NewSessionService(deps, repository.NewMemoryStateRepository(time.Hour), service.SessionOptions{
		ChatRateLimit:  2,
		ChatRateWindow: time.Minute,
	})
	svc := Services{
		Club:      service.NewClubService(deps),
		Sessions:  sessions,
		Admin:     service.NewAdminConsole(deps, testAccessCode),
		Loader:    service.NewLoader(deps),
		Concierge: assistant.NewConcierge(oracle, time.Second, &logger),
		Receipts:  issuer,
	}

	return &testEnv{
		srv:    NewHTTPServer(cfg, svc, &logger),
		remote: mem,
		store:  store,
		issuer: issuer,
		deps:   deps,
	}
}

// do sends a request through the full middleware chain.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func session(id string) map[string]string {
	return map[string]string{sessionHeader: id}
}

func (e *testEnv) adminToken(t *testing.T) map[string]string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/admin/login", map[string]string{"access_code": testAccessCode}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	decode(t, rec, &body)
	require.NotEmpty(t, body.Token)
	return map[string]string{"Authorization": "Bearer " + body.Token}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func booking(label, name string) map[string]any {
	return map[string]any{
		"date":                 tomorrow,
		"time_label":           label,
		"duration_minutes":     60,
		"player_type":          "Member",
		"player_name":          name,
		"contact":              "player@example.com",
		"notification_channel": "Email",
	}
}

type bookingResponse struct {
	Phase       string              `json:"phase"`
	Message     string              `json:"message"`
	Reservation *models.Reservation `json:"reservation"`
	Receipt     *models.Receipt     `json:"receipt"`
	Error       string              `json:"error"`
	Blocked     bool                `json:"blocked"`
}

func (e *testEnv) book(t *testing.T, sessionID string, body map[string]any) (*httptest.ResponseRecorder, bookingResponse) {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/reservations", body, session(sessionID))
	var out bookingResponse
	decode(t, rec, &out)
	return rec, out
}
