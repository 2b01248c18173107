package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/palazzo-labs/statecraft/internal/app/services/players"
	"github.com/palazzo-labs/statecraft/internal/app/storage/memory"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

func newVerifier(t *testing.T) (*players.Service, string) {
	t.Helper()
	log := logger.NewDefault("auth-test")
	log.SetOutput(io.Discard)
	svc := players.NewService(memory.NewStore(), players.Config{JWTSecret: "test-secret", TokenTTL: time.Hour}, log)

	_, err := svc.Register(context.Background(), "giulia", "passw0rd")
	require.NoError(t, err)
	token, err := svc.Login(context.Background(), "giulia", "passw0rd")
	require.NoError(t, err)
	return svc, token
}

func authHandler(t *testing.T, verifier TokenVerifier) http.Handler {
	t.Helper()
	log := logger.NewDefault("auth-test")
	log.SetOutput(io.Discard)
	mw := NewAuthMiddleware(verifier, log, []string{"/healthz"})
	return mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(PlayerID(r.Context())))
	}))
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	svc, token := newVerifier(t)
	handler := authHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/game/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Body.String())
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	svc, _ := newVerifier(t)
	handler := authHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/game/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	svc, _ := newVerifier(t)
	handler := authHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/game/state", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthMiddlewareSkipsConfiguredPaths(t *testing.T) {
	svc, _ := newVerifier(t)
	handler := authHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
