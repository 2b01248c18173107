// Package middleware provides the HTTP middleware chain: authentication,
// CORS, rate limiting and request instrumentation.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/palazzo-labs/statecraft/internal/errors"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

type contextKey string

const playerIDKey contextKey = "player_id"

// TokenVerifier validates a bearer token and returns the player id it
// names. Implemented by the players service.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// AuthMiddleware enforces bearer-token authentication on every route
// except the configured skip paths.
type AuthMiddleware struct {
	verifier  TokenVerifier
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{verifier: verifier, logger: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("Missing Authorization header."))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("Invalid Authorization header format."))
			return
		}

		playerID, err := m.verifier.Verify(parts[1])
		if err != nil {
			m.logger.WithError(err).Warn("token verification failed")
			m.respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), playerIDKey, playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("Authentication failed.", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(serviceErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    serviceErr.Code,
			"message": serviceErr.Message,
		},
	})

	m.logger.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("request rejected")
}

// PlayerID extracts the authenticated player id from the request context.
func PlayerID(ctx context.Context) string {
	id, _ := ctx.Value(playerIDKey).(string)
	return id
}

// WithPlayerID returns a context carrying the given player id; used by
// handler tests to bypass the middleware.
func WithPlayerID(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerIDKey, playerID)
}
