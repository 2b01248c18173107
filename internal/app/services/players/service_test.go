package players

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/palazzo-labs/statecraft/internal/app/storage/memory"
	"github.com/palazzo-labs/statecraft/internal/errors"
	"github.com/palazzo-labs/statecraft/pkg/logger"
)

func newTestService() *Service {
	log := logger.NewDefault("players-test")
	log.SetOutput(io.Discard)
	return NewService(memory.NewStore(), Config{JWTSecret: "test-secret", TokenTTL: time.Hour}, log)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	p, err := svc.Register(ctx, "giulia", "passw0rd")
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)
	require.Equal(t, "giulia", p.Username)
	require.Empty(t, p.PasswordHash)

	token, err := svc.Login(ctx, "giulia", "passw0rd")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	playerID, err := svc.Verify(token)
	require.NoError(t, err)
	require.Equal(t, p.ID, playerID)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "passw0rd")
	require.True(t, errors.IsCode(err, errors.CodeValidation))

	_, err = svc.Register(ctx, "giulia", "short")
	require.True(t, errors.IsCode(err, errors.CodeValidation))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "giulia", "passw0rd")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "giulia", "different1")
	require.True(t, errors.IsCode(err, errors.CodeConflict))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "giulia", "passw0rd")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "giulia", "wrong-password")
	require.True(t, errors.IsCode(err, errors.CodeUnauthorized))

	// unknown usernames produce the same error shape
	_, err = svc.Login(ctx, "nobody", "passw0rd")
	require.True(t, errors.IsCode(err, errors.CodeUnauthorized))
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, "giulia", "passw0rd")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "giulia", "passw0rd")
	require.NoError(t, err)

	_, err = svc.Verify(token + "x")
	require.True(t, errors.IsCode(err, errors.CodeInvalidToken))

	other := NewService(memory.NewStore(), Config{JWTSecret: "other-secret"}, nil)
	_, err = other.Verify(token)
	require.True(t, errors.IsCode(err, errors.CodeInvalidToken))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	log := logger.NewDefault("players-test")
	log.SetOutput(io.Discard)
	svc := NewService(memory.NewStore(), Config{JWTSecret: "test-secret", TokenTTL: -time.Minute}, log)
	ctx := context.Background()

	_, err := svc.Register(ctx, "giulia", "passw0rd")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "giulia", "passw0rd")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	require.True(t, errors.IsCode(err, errors.CodeInvalidToken))
}
