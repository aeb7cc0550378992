package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aman-churiwal/quota-gateway/internal/metrics"
	"github.com/aman-churiwal/quota-gateway/internal/models"
	"github.com/aman-churiwal/quota-gateway/internal/ratelimit"
	"github.com/aman-churiwal/quota-gateway/internal/repository"
	"github.com/aman-churiwal/quota-gateway/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var directory = []models.User{
	{ID: "u1", Username: "alice", Password: "pass123", Tier: models.TierFree},
}

func newAuthService(tokens *repository.TokenRepository) *service.AuthService {
	return service.NewAuthService(repository.NewUserRepository(directory), tokens, zap.NewNop())
}

func serve(h gin.HandlerFunc, method, body string) *httptest.ResponseRecorder {
	router := gin.New()
	router.Handle(method, "/", h)

	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLogin(t *testing.T) {
	m := metrics.New()
	h := NewAuthHandler(newAuthService(repository.NewTokenRepository()), m, zap.NewNop())

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantBody string
	}{
		{"malformed json", `{"username":`, http.StatusBadRequest, `{"success":false,"error":"Invalid request body"}`},
		{"wrong password", `{"username":"alice","password":"x"}`, http.StatusUnauthorized, `{"success":false,"error":"Invalid credentials"}`},
		{"empty object", `{}`, http.StatusUnauthorized, `{"success":false,"error":"Invalid credentials"}`},
		{"empty body", ``, http.StatusUnauthorized, `{"success":false,"error":"Invalid credentials"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h.Login, http.MethodPost, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}

	rec := serve(h.Login, http.MethodPost, `{"username":"alice","password":"pass123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_type":"free"`)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.Logins.WithLabelValues(metrics.LoginInvalidCredentials)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TokensIssued))
}

func TestLogin_TokenFailure(t *testing.T) {
	tokens := repository.NewTokenRepositoryWithGenerator(func() (uuid.UUID, error) {
		return uuid.Nil, errors.New("entropy exhausted")
	})
	m := metrics.New()
	h := NewAuthHandler(newAuthService(tokens), m, zap.NewNop())

	rec := serve(h.Login, http.MethodPost, `{"username":"alice","password":"pass123"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Failed to issue token"}`, rec.Body.String())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Logins.WithLabelValues(metrics.LoginError)))
}

type failingLimiter struct {
	ratelimit.Limiter
}

func (failingLimiter) Remaining(ctx context.Context, identity models.Identity) (int, error) {
	return 0, errors.New("store unavailable")
}

func TestStatus(t *testing.T) {
	auth := newAuthService(repository.NewTokenRepository())
	limiter := ratelimit.NewFixedWindow(ratelimit.NewQuotaTable(), ratelimit.DefaultPolicy())
	h := NewChatHandler(auth, limiter, zap.NewNop())

	rec := serve(h.Status, http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"remaining_requests":3}`, rec.Body.String())

	h = NewChatHandler(auth, failingLimiter{}, zap.NewNop())
	rec = serve(h.Status, http.MethodGet, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChat(t *testing.T) {
	h := NewChatHandler(nil, nil, zap.NewNop())
	rec := serve(func(c *gin.Context) {
		h.Chat(c, ratelimit.Decision{Allowed: true, Tier: models.TierGuest, Limit: 3, Remaining: 2})
	}, http.MethodPost, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"This is a fake AI response.","remaining_requests":2}`, rec.Body.String())
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		database   Pinger
		wantCode   int
		wantStatus string
	}{
		{"no database", nil, http.StatusOK, `"status":"healthy"`},
		{"database up", stubPinger{}, http.StatusOK, `"database":true`},
		{"database down", stubPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, `"status":"degraded"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler(tt.database, zap.NewNop())
			rec := serve(h.Health, http.MethodGet, "")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantStatus)
		})
	}
}
