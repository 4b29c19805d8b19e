package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"courtclub/internal/config"
	"courtclub/internal/models"
	"courtclub/internal/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const adminRole = "admin"

var errInvalidToken = errors.New("invalid admin token")

// AdminClaims is the payload of an admin session token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// adminTokens signs and checks HS256 admin session tokens.
type adminTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newAdminTokens(cfg config.APIAdminConfig) *adminTokens {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = models.DefaultAdminTokenTTL
	}
	return &adminTokens{secret: []byte(cfg.TokenSecret), ttl: ttl, now: time.Now}
}

func (t *adminTokens) issue() (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := &AdminClaims{
		Role: adminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   adminRole,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, expires, nil
}

func (t *adminTokens) parse(tokenStr string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if !token.Valid || claims.Role != adminRole {
		return nil, errInvalidToken
	}
	return claims, nil
}

func (s *HTTPServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			writeError(w, http.StatusUnauthorized, "admin token required")
			return
		}
		claims, err := s.tokens.parse(strings.TrimSpace(tokenStr))
		if err != nil {
			s.log.Warn().Err(err).Str("request_id", requestIDFrom(r.Context())).Msg("admin token rejected")
			writeError(w, http.StatusUnauthorized, "admin token is invalid or expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminClaimsKey, claims)))
	})
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessCode string `json:"access_code"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.svc.Admin.Authenticate(body.AccessCode); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	token, expires, err := s.tokens.issue()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expires.UTC(),
	})
}

func (s *HTTPServer) handleAdminOverview(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Admin.Overview(date))
}

func (s *HTTPServer) handleToggleSlot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date      models.Date `json:"date"`
		TimeLabel string      `json:"time_label"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	closed, err := s.svc.Admin.ToggleSlot(body.Date, body.TimeLabel)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":       body.Date,
		"time_label": strings.TrimSpace(body.TimeLabel),
		"closed":     closed,
	})
}

func (s *HTTPServer) handleUpdateReservation(w http.ResponseWriter, r *http.Request) {
	var edit service.ReservationEdit
	if err := decodeJSON(r, &edit); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	res, err := s.svc.Admin.UpdateReservation(r.Context(), mux.Vars(r)["id"], edit)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleDeleteReservation(w http.ResponseWriter, r *http.Request) {
	s.writeDeleted(w, r, s.svc.Admin.DeleteReservation(r.Context(), mux.Vars(r)["id"]))
}

func (s *HTTPServer) handleRemoveWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	s.writeDeleted(w, r, s.svc.Admin.RemoveWaitlistEntry(r.Context(), mux.Vars(r)["id"]))
}

func (s *HTTPServer) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	s.writeDeleted(w, r, s.svc.Admin.RemoveMember(r.Context(), mux.Vars(r)["id"]))
}

func (s *HTTPServer) writeDeleted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.log.Info().
		Str("request_id", requestIDFrom(r.Context())).
		Str("admin_token", adminTokenID(r.Context())).
		Str("path", r.URL.Path).
		Msg("admin removed record")
	w.WriteHeader(http.StatusNoContent)
}

func adminTokenID(ctx context.Context) string {
	if claims, ok := ctx.Value(adminClaimsKey).(*AdminClaims); ok {
		return claims.ID
	}
	return ""
}

func (s *HTTPServer) handlePostNews(w http.ResponseWriter, r *http.Request) {
	var in service.NewsInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := s.svc.Admin.PostNews(in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *HTTPServer) handleEditNews(w http.ResponseWriter, r *http.Request) {
	var in service.NewsInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := s.svc.Admin.EditNews(mux.Vars(r)["id"], in)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteNews(w http.ResponseWriter, r *http.Request) {
	s.writeDeleted(w, r, s.svc.Admin.DeleteNews(mux.Vars(r)["id"]))
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Admin.Export(&buf); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	filename := fmt.Sprintf("courtclub-%s.xlsx", s.svc.Club.Today())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	writeBlob(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
