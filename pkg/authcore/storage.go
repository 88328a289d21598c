package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore persists account records.
type UserStore interface {
	CreateUser(ctx context.Context, user User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetEmailVerified(ctx context.Context, id uuid.UUID, verifiedAt time.Time) error
	SetTwoFactorEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// SessionStore persists device-scoped login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByToken(ctx context.Context, token string) (Session, error)
	ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]Session, error)
	// DeleteSession is scoped to the owning user so one user cannot
	// revoke another's session by guessing an ID.
	DeleteSession(ctx context.Context, id, userID uuid.UUID) error
	DeleteUserSessions(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// RefreshTokenStore persists hashed refresh tokens.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, token RefreshToken) error
	ListActiveRefreshTokens(ctx context.Context, userID uuid.UUID, now time.Time) ([]RefreshToken, error)
	// RevokeRefreshToken flips revoked to true only if it is currently
	// false. Returns ErrTokenRevoked when the row was already revoked
	// and ErrTokenNotFound when no row exists.
	RevokeRefreshToken(ctx context.Context, id uuid.UUID) error
	RevokeUserRefreshTokens(ctx context.Context, userID uuid.UUID) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// VerificationTokenStore persists hashed single-use tokens.
type VerificationTokenStore interface {
	CreateVerificationToken(ctx context.Context, token VerificationToken) error
	ListActiveVerificationTokens(ctx context.Context, identifier string, purpose VerificationPurpose, now time.Time) ([]VerificationToken, error)
	DeleteVerificationToken(ctx context.Context, id uuid.UUID) error
	DeleteVerificationTokensByIdentifier(ctx context.Context, identifier string, purpose VerificationPurpose) error
	DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error)
}

// TwoFactorStore persists encrypted TOTP secrets and recovery code hashes.
type TwoFactorStore interface {
	UpsertTwoFactorSecret(ctx context.Context, secret TwoFactorSecret) error
	GetTwoFactorSecret(ctx context.Context, userID uuid.UUID) (TwoFactorSecret, error)
	DeleteTwoFactorSecret(ctx context.Context, userID uuid.UUID) error
	// ReplaceRecoveryCodes atomically swaps the user's full code set.
	ReplaceRecoveryCodes(ctx context.Context, userID uuid.UUID, codeHashes []string) error
	// ConsumeRecoveryCode deletes the matching hash, returning
	// ErrInvalidOTP when no unused code matches.
	ConsumeRecoveryCode(ctx context.Context, userID uuid.UUID, codeHash string) error
	CountRecoveryCodes(ctx context.Context, userID uuid.UUID) (int, error)
}

// OAuthAccountStore persists links between local users and provider identities.
type OAuthAccountStore interface {
	GetOAuthAccount(ctx context.Context, provider, providerAccountID string) (OAuthAccount, error)
	UpsertOAuthAccount(ctx context.Context, account OAuthAccount) error
	ListOAuthAccounts(ctx context.Context, userID uuid.UUID) ([]OAuthAccount, error)
	DeleteOAuthAccount(ctx context.Context, userID uuid.UUID, provider string) error
}

// Storage is the full persistence contract consumed by Service.
type Storage interface {
	UserStore
	SessionStore
	RefreshTokenStore
	VerificationTokenStore
	TwoFactorStore
	OAuthAccountStore
}
