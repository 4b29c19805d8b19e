package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"courtclub/internal/assistant"
	"courtclub/internal/config"
	"courtclub/internal/metrics"
	"courtclub/internal/receipt"
	"courtclub/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Services are the application services behind the HTTP surface.
type Services struct {
	Club      *service.ClubService
	Sessions  *service.SessionService
	Admin     *service.AdminConsole
	Loader    *service.Loader
	Concierge *assistant.Concierge
	Receipts  *receipt.Issuer
}

// HTTPServer is the JSON API used by the booking front end and the admin
// dashboard.
type HTTPServer struct {
	cfg     *config.APIConfig
	svc     Services
	tokens  *adminTokens
	limiter *rateLimiter
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	log     zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		tokens:  newAdminTokens(cfg.Admin),
		limiter: newRateLimiter(cfg.RateLimit),
		router:  mux.NewRouter(),
		log:     zerolog.Nop(),
	}
	if logger != nil {
		srv.log = logger.With().Str("component", "http").Logger()
	}

	srv.routes()

	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", sessionHeader, requestIDHeader},
		ExposedHeaders: []string{sessionHeader, requestIDHeader},
	}).Handler(srv.rateLimitMiddleware(srv.router))

	srv.handler = requestIDMiddleware(srv.accessLogMiddleware(srv.metricsMiddleware(corsHandler)))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes() {
	r := s.router
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/slots", s.handleSlots).Methods(http.MethodGet)
	v1.HandleFunc("/rates", s.handleRates).Methods(http.MethodGet)
	v1.HandleFunc("/pricing", s.handlePricing).Methods(http.MethodGet)
	v1.HandleFunc("/news", s.handleNews).Methods(http.MethodGet)
	v1.HandleFunc("/session/draft", s.handleGetDraft).Methods(http.MethodGet)
	v1.HandleFunc("/session/draft", s.handleUpdateDraft).Methods(http.MethodPut)
	v1.HandleFunc("/reservations", s.handleSubmitReservation).Methods(http.MethodPost)
	v1.HandleFunc("/reservations/{id}/receipt.pdf", s.handleReceiptPDF).Methods(http.MethodGet)
	v1.HandleFunc("/reservations/{id}/qr.png", s.handleReceiptQR).Methods(http.MethodGet)
	v1.HandleFunc("/checkin", s.handleCheckIn).Methods(http.MethodPost)
	v1.HandleFunc("/waitlist", s.handleJoinWaitlist).Methods(http.MethodPost)
	v1.HandleFunc("/members", s.handleBecomeMember).Methods(http.MethodPost)
	v1.HandleFunc("/assistant/welcome", s.handleAssistantWelcome).Methods(http.MethodGet)
	v1.HandleFunc("/assistant/chat", s.handleAssistantChat).Methods(http.MethodPost)
	v1.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/admin/login", s.handleAdminLogin).Methods(http.MethodPost)

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/overview", s.handleAdminOverview).Methods(http.MethodGet)
	admin.HandleFunc("/slots/toggle", s.handleToggleSlot).Methods(http.MethodPost)
	admin.HandleFunc("/reservations/{id}", s.handleUpdateReservation).Methods(http.MethodPut)
	admin.HandleFunc("/reservations/{id}", s.handleDeleteReservation).Methods(http.MethodDelete)
	admin.HandleFunc("/news", s.handlePostNews).Methods(http.MethodPost)
	admin.HandleFunc("/news/{id}", s.handleEditNews).Methods(http.MethodPut)
	admin.HandleFunc("/news/{id}", s.handleDeleteNews).Methods(http.MethodDelete)
	admin.HandleFunc("/waitlist/{id}", s.handleRemoveWaitlistEntry).Methods(http.MethodDelete)
	admin.HandleFunc("/members/{id}", s.handleRemoveMember).Methods(http.MethodDelete)
	admin.HandleFunc("/export.xlsx", s.handleExport).Methods(http.MethodGet)
}

// Handler returns the fully wrapped handler, for httptest.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "club": s.svc.Club.Name()})
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	adminClaimsKey
)

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (s *HTTPServer) accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.log.Info().
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// metricsMiddleware labels requests by route template so ids do not blow up
// the label set.
func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.IncHTTP(s.endpoint(r))
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) endpoint(r *http.Request) string {
	var match mux.RouteMatch
	if !s.router.Match(r, &match) || match.Route == nil {
		return "unmatched"
	}
	tpl, err := match.Route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return r.Method + " " + tpl
}

func (s *HTTPServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(remoteHost(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return clientKeyUnknown
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrIncomplete):
		return http.StatusUnprocessableEntity
	case service.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusUnauthorized
	case service.IsConflict(err), errors.Is(err, service.ErrSubmissionInFlight):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrRemoteWrite):
		if service.IsTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case service.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure renders a service error. A missing required field is not an
// error for the visitor: the submit is only blocked.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusUnprocessableEntity {
		writeJSON(w, code, map[string]bool{"blocked": true})
		return
	}
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Str("request_id", requestIDFrom(r.Context())).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, code, service.UserMessage(err))
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeBlob(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
