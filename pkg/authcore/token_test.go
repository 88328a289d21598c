package authcore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authkit/pkg/authcore"
)

func testTokenConfig() authcore.Config {
	return authcore.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "authkit-test",
		BcryptCost:    bcrypt.MinCost,
	}
}

func newTestTokenService(t *testing.T, cfg authcore.Config) (*authcore.TokenService, *authcore.MemoryStorage) {
	t.Helper()
	storage := authcore.NewMemoryStorage()
	svc, err := authcore.NewTokenService(cfg, storage, authcore.NewHasher(cfg.BcryptCost))
	require.NoError(t, err)
	return svc, storage
}

func TestNewTokenService_MissingSecrets(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.AccessSecret = ""
	_, err := authcore.NewTokenService(cfg, authcore.NewMemoryStorage(), authcore.NewHasher(bcrypt.MinCost))
	require.ErrorIs(t, err, authcore.ErrMissingSecret)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, testTokenConfig())
	user := authcore.User{
		ID:    uuid.New(),
		Email: "user@example.com",
		Role:  authcore.RoleAdmin,
	}
	sessionID := uuid.New()

	token, expiresAt, err := svc.GenerateAccessToken(user, sessionID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, authcore.RoleAdmin, claims.Role)
	assert.Equal(t, sessionID.String(), claims.SessionID)
	assert.Equal(t, "authkit-test", claims.Issuer)
}

func TestAccessToken_Expired(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	cfg.AccessTokenTTL = -time.Minute
	svc, _ := newTestTokenService(t, cfg)

	token, _, err := svc.GenerateAccessToken(authcore.User{ID: uuid.New()}, uuid.New())
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(token)
	require.ErrorIs(t, err, authcore.ErrTokenExpired)
}

func TestAccessToken_WrongKind(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, testTokenConfig())
	ctx := context.Background()

	// A refresh token must never pass access verification: different key.
	refresh, err := svc.GenerateRefreshToken(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(refresh)
	require.ErrorIs(t, err, authcore.ErrTokenInvalid)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, testTokenConfig())
	ctx := context.Background()
	userID, sessionID := uuid.New(), uuid.New()

	token, err := svc.GenerateRefreshToken(ctx, userID, sessionID)
	require.NoError(t, err)

	record, err := svc.VerifyRefreshToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, userID, record.UserID)
	assert.Equal(t, sessionID, record.SessionID)
	assert.False(t, record.Revoked)
	assert.NotEqual(t, token, record.TokenHash)
}

func TestRefreshToken_AccessTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, testTokenConfig())
	ctx := context.Background()

	access, _, err := svc.GenerateAccessToken(authcore.User{ID: uuid.New()}, uuid.New())
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(ctx, access)
	require.ErrorIs(t, err, authcore.ErrTokenInvalid)
}

func TestRefreshToken_Rotation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, testTokenConfig())
	ctx := context.Background()
	userID, sessionID := uuid.New(), uuid.New()

	first, err := svc.GenerateRefreshToken(ctx, userID, sessionID)
	require.NoError(t, err)

	record, err := svc.VerifyRefreshToken(ctx, first)
	require.NoError(t, err)

	second, err := svc.RotateRefreshToken(ctx, record)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// The rotated-out token is now revoked.
	_, err = svc.VerifyRefreshToken(ctx, first)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)

	// The replacement stays in the same session.
	newRecord, err := svc.VerifyRefreshToken(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, sessionID, newRecord.SessionID)
}

func TestRefreshToken_DoubleSpend(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, testTokenConfig())
	ctx := context.Background()

	token, err := svc.GenerateRefreshToken(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	record, err := svc.VerifyRefreshToken(ctx, token)
	require.NoError(t, err)

	_, err = svc.RotateRefreshToken(ctx, record)
	require.NoError(t, err)

	// Spending the same record again hits the conditional revoke.
	_, err = svc.RotateRefreshToken(ctx, record)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)
}

func TestRefreshToken_UnknownToken(t *testing.T) {
	t.Parallel()

	cfg := testTokenConfig()
	svc, _ := newTestTokenService(t, cfg)
	other, _ := newTestTokenService(t, cfg)
	ctx := context.Background()

	// Valid signature, but the row lives in another store.
	token, err := other.GenerateRefreshToken(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	_, err = svc.VerifyRefreshToken(ctx, token)
	require.ErrorIs(t, err, authcore.ErrTokenNotFound)
}
