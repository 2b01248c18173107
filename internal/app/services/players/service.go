// Package players handles account registration, login and token
// verification.
package players

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/palazzo-labs/statecraft/internal/app/domain/player"
	"github.com/palazzo-labs/statecraft/internal/app/storage"
	"github.com/palazzo-labs/statecraft/internal/errors"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

const minPasswordLength = 6

// Config carries the token signing parameters.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// Service implements player accounts on top of PlayerStore.
type Service struct {
	store  storage.PlayerStore
	cfg    Config
	logger *logger.Logger
}

// NewService creates the players service.
func NewService(store storage.PlayerStore, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("players")
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{store: store, cfg: cfg, logger: log}
}

// Register creates a new account. Conflict when the username is taken.
func (s *Service) Register(ctx context.Context, username, password string) (player.Player, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return player.Player{}, errors.Validation("Username and password are required.")
	}
	if len(password) < minPasswordLength {
		return player.Player{}, errors.Validation("Password must be at least 6 characters long.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return player.Player{}, errors.Internal("failed to hash password", err)
	}

	created, err := s.store.CreatePlayer(ctx, player.Player{
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		return player.Player{}, err
	}

	s.logger.WithField("player_id", created.ID).Info("player registered")
	created.PasswordHash = ""
	return created, nil
}

// Login verifies the credentials and issues a signed token. The error is
// identical for an unknown username and a wrong password.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	p, err := s.store.GetPlayerByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.IsCode(err, errors.CodeNotFound) {
			return "", errors.Unauthorized("Invalid credentials.")
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		return "", errors.Unauthorized("Invalid credentials.")
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      p.ID,
		"username": p.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.TokenTTL).Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", errors.Internal("failed to sign token", err)
	}

	s.logger.WithField("player_id", p.ID).Info("player logged in")
	return signed, nil
}

// Verify parses a bearer token and returns the player id it names.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.InvalidToken(err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.InvalidToken(nil)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.InvalidToken(nil)
	}
	return sub, nil
}
