package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/graphgen-api/internal/api/shared"
	"github.com/phrazzld/graphgen-api/internal/config"
	"github.com/phrazzld/graphgen-api/internal/platform/logger"
	"github.com/phrazzld/graphgen-api/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJWTService struct {
	claims *auth.Claims
	err    error
}

func (s *stubJWTService) GenerateToken(ctx context.Context, subject string) (string, error) {
	return "token-for-" + subject, nil
}

func (s *stubJWTService) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func subjectEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ := shared.GetSubject(r.Context())
		_, _ = io.WriteString(w, subject)
	})
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		svc        *stubJWTService
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer good", &stubJWTService{claims: &auth.Claims{Subject: "ci"}}, http.StatusOK, "ci"},
		{"lowercase scheme", "bearer good", &stubJWTService{claims: &auth.Claims{Subject: "ci"}}, http.StatusOK, "ci"},
		{"missing header", "", &stubJWTService{}, http.StatusUnauthorized, "Authorization header required"},
		{"wrong scheme", "Basic abc", &stubJWTService{}, http.StatusUnauthorized, "Invalid authorization format"},
		{"empty token", "Bearer ", &stubJWTService{}, http.StatusUnauthorized, "Invalid authorization format"},
		{"expired", "Bearer old", &stubJWTService{err: auth.ErrExpiredToken}, http.StatusUnauthorized, "Token expired"},
		{"invalid", "Bearer bad", &stubJWTService{err: auth.ErrInvalidToken}, http.StatusUnauthorized, "Invalid token"},
		{"unexpected error", "Bearer x", &stubJWTService{err: errors.New("boom")}, http.StatusInternalServerError, "Authentication error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAuthMiddleware(tt.svc).Authenticate(subjectEcho())
			req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAuthenticate_RealTokens(t *testing.T) {
	svc, err := auth.NewJWTService(configFor("an-integration-secret-of-32-chars-or-more"))
	require.NoError(t, err)
	token, err := svc.GenerateToken(context.Background(), "web-ui")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	NewAuthMiddleware(svc).Authenticate(subjectEcho()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "web-ui", w.Body.String())
}

func TestTrace(t *testing.T) {
	base, buf := logger.NewTestLogger()

	var traceID string
	var ctxLogger *slog.Logger
	handler := Trace(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = shared.GetTraceID(r.Context())
		ctxLogger = logger.FromContext(r.Context())
		ctxLogger.Info("inside handler")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, w.Header().Get(TraceIDHeader))
	assert.NotSame(t, base, ctxLogger)

	entries, err := buf.GetLogEntries()
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, traceID, e["trace_id"])
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		CORS([]string{"http://localhost:5173"})(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		CORS([]string{"http://localhost:5173"})(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("wildcard preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/jobs", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		CORS([]string{"*"})(next).ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})
}

func configFor(secret string) config.AuthConfig {
	return config.AuthConfig{JWTSecret: secret, TokenLifetimeMinutes: 60}
}
