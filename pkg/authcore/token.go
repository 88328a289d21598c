package authcore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/jwt"
)

const refreshTokenType = "refresh"

// AccessClaims is the payload of a stateless access token.
type AccessClaims struct {
	jwt.StandardClaims
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	SessionID string `json:"sid,omitempty"`
}

// RefreshClaims is the payload of a refresh token. The jti matches the
// stored RefreshToken record so revocation can be checked before reuse.
type RefreshClaims struct {
	jwt.StandardClaims
	TokenType string `json:"type"`
}

// Valid extends temporal validation with a token-type check so an access
// token can never be replayed on the refresh endpoint.
func (c RefreshClaims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if c.TokenType != refreshTokenType {
		return jwt.ErrInvalidToken
	}
	return nil
}

// TokenService issues and verifies the three token kinds of a login:
// short-lived access JWTs, rotating refresh JWTs persisted as bcrypt
// hashes, and opaque session tokens.
type TokenService struct {
	access  *jwt.Service
	refresh *jwt.Service
	store   RefreshTokenStore
	hasher  Hasher
	issuer  string

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService wires a token service from the auth config. Access and
// refresh tokens are signed with independent secrets.
func NewTokenService(cfg Config, store RefreshTokenStore, hasher Hasher) (*TokenService, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrMissingSecret
	}
	cfg.applyDefaults()

	access, err := jwt.NewFromString(cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("access token signer: %w", err)
	}
	refresh, err := jwt.NewFromString(cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh token signer: %w", err)
	}

	return &TokenService{
		access:     access,
		refresh:    refresh,
		store:      store,
		hasher:     hasher,
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
	}, nil
}

// GenerateAccessToken signs a stateless access token for the user.
func (s *TokenService) GenerateAccessToken(user User, sessionID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	token, err := s.access.Generate(AccessClaims{
		StandardClaims: jwt.StandardClaims{
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID.String(),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate access token: %w", err)
	}
	return token, expiresAt, nil
}

// VerifyAccessToken parses and validates an access token, returning its claims.
func (s *TokenService) VerifyAccessToken(token string) (AccessClaims, error) {
	var claims AccessClaims
	if err := s.access.Parse(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return AccessClaims{}, ErrTokenExpired
		}
		return AccessClaims{}, errors.Join(ErrTokenInvalid, err)
	}
	return claims, nil
}

// GenerateRefreshToken signs a refresh token and stores its hash bound to
// the user and session. The returned string is shown to the client once.
func (s *TokenService) GenerateRefreshToken(ctx context.Context, userID, sessionID uuid.UUID) (string, error) {
	now := time.Now()
	tokenID := uuid.New()

	token, err := s.refresh.Generate(RefreshClaims{
		StandardClaims: jwt.StandardClaims{
			ID:        tokenID.String(),
			Subject:   userID.String(),
			Issuer:    s.issuer,
			ExpiresAt: now.Add(s.refreshTTL).Unix(),
			IssuedAt:  now.Unix(),
		},
		TokenType: refreshTokenType,
	})
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	hash, err := s.hasher.HashToken(token)
	if err != nil {
		return "", err
	}
	if err := s.store.CreateRefreshToken(ctx, RefreshToken{
		ID:        tokenID,
		UserID:    userID,
		SessionID: sessionID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}

// VerifyRefreshToken checks signature, expiry, and the stored record.
// Reuse of a revoked token fails with ErrTokenRevoked; the caller is
// expected to treat that as a compromise signal.
func (s *TokenService) VerifyRefreshToken(ctx context.Context, token string) (RefreshToken, error) {
	var claims RefreshClaims
	if err := s.refresh.Parse(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return RefreshToken{}, ErrTokenExpired
		}
		return RefreshToken{}, errors.Join(ErrTokenInvalid, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return RefreshToken{}, ErrTokenInvalid
	}
	tokenID, err := uuid.Parse(claims.ID)
	if err != nil {
		return RefreshToken{}, ErrTokenInvalid
	}

	stored, err := s.store.ListActiveRefreshTokens(ctx, userID, time.Now())
	if err != nil {
		return RefreshToken{}, fmt.Errorf("list refresh tokens: %w", err)
	}
	for _, rec := range stored {
		if rec.ID != tokenID {
			continue
		}
		if !s.hasher.VerifyToken(rec.TokenHash, token) {
			return RefreshToken{}, ErrTokenInvalid
		}
		if rec.Revoked {
			// Return the record alongside the error so the caller can
			// identify who presented the spent token.
			return rec, ErrTokenRevoked
		}
		return rec, nil
	}
	return RefreshToken{}, ErrTokenNotFound
}

// RotateRefreshToken atomically revokes the used token and issues a new
// one in the same session. Double spend of the old token surfaces as
// ErrTokenRevoked from the conditional revoke.
func (s *TokenService) RotateRefreshToken(ctx context.Context, used RefreshToken) (string, error) {
	if err := s.store.RevokeRefreshToken(ctx, used.ID); err != nil {
		return "", err
	}
	return s.GenerateRefreshToken(ctx, used.UserID, used.SessionID)
}

// generateSessionToken returns a 32-byte cryptographically random hex string.
func generateSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
