package authcore

import (
	"time"

	"github.com/google/uuid"
)

// Role defines the access level of a user account.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
)

// TwoFactorStatus tracks the lifecycle of a user's TOTP enrollment.
type TwoFactorStatus string

const (
	TwoFactorDisabled     TwoFactorStatus = "disabled"
	TwoFactorPendingSetup TwoFactorStatus = "pending_setup"
	TwoFactorEnabled      TwoFactorStatus = "enabled"
)

// User is an account record. Accounts created through an OAuth provider
// get a random unusable password hash at creation. EmailVerifiedAt is
// zero until the address has been confirmed.
type User struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     string
	Name             string
	Role             Role
	EmailVerifiedAt  time.Time
	TwoFactorEnabled bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EmailVerified reports whether the user has confirmed their email address.
func (u User) EmailVerified() bool {
	return !u.EmailVerifiedAt.IsZero()
}

// Session is a device-scoped login record identified by an opaque token.
type Session struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	SessionToken string
	IPAddress    string
	UserAgent    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// RefreshToken is the stored form of an issued refresh token. TokenHash is
// a bcrypt digest of the SHA-256 of the token string, never the token itself.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	SessionID uuid.UUID
	TokenHash string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// VerificationPurpose distinguishes single-use token flows sharing one store.
type VerificationPurpose string

const (
	PurposeEmailVerification VerificationPurpose = "email_verification"
	PurposePasswordReset     VerificationPurpose = "password_reset"
)

// VerificationToken is a hashed single-use token for email verification or
// password reset. Identifier is the normalized email it was issued for.
type VerificationToken struct {
	ID         uuid.UUID
	Identifier string
	TokenHash  string
	Purpose    VerificationPurpose
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// TwoFactorSecret holds a user's TOTP secret encrypted at rest.
type TwoFactorSecret struct {
	UserID          uuid.UUID
	EncryptedSecret string
	Status          TwoFactorStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OAuthAccount links an external identity to a local user. AccessToken
// and RefreshToken are the provider's opaque credentials, refreshed on
// every successful login through the provider.
type OAuthAccount struct {
	UserID            uuid.UUID
	Provider          string
	ProviderAccountID string
	Email             string
	AccessToken       string
	RefreshToken      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TokenPair is returned by every successful authentication.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionToken string
	ExpiresAt    time.Time
}

// AuthResult bundles the authenticated user with their issued tokens.
// TwoFactorRequired is set instead of Tokens when the account has TOTP
// enabled and the login still needs an OTP step.
type AuthResult struct {
	User              User
	Tokens            TokenPair
	TwoFactorRequired bool
}

// TwoFactorSetup is returned when enrollment starts. RecoveryCodes are
// shown exactly once; only their hashes are persisted.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	QRCodeDataURI   string
	RecoveryCodes   []string
}

// SessionInfo is the user-facing view of an active session. Refreshable
// reports whether the session still holds a live refresh token.
type SessionInfo struct {
	ID          uuid.UUID
	IPAddress   string
	UserAgent   string
	Current     bool
	Refreshable bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// DeviceMeta carries request-scoped device attributes into session creation.
type DeviceMeta struct {
	IPAddress string
	UserAgent string
}
