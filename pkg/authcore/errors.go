package authcore

import "errors"

// General authentication errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordIncorrect  = errors.New("current password is incorrect")
)

// Token-related errors
var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenRevoked  = errors.New("token revoked")
	ErrTokenNotFound = errors.New("token not found")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
)

// Verification errors
var (
	ErrEmailAlreadyVerified = errors.New("email already verified")
)

// Two-factor errors
var (
	ErrTwoFactorNotSetup        = errors.New("two-factor authentication is not set up")
	ErrTwoFactorAlreadyEnabled  = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorNotEnabled      = errors.New("two-factor authentication is not enabled")
	ErrInvalidOTP               = errors.New("invalid one-time code")
	ErrStepUpRequired           = errors.New("recent two-factor verification required")
	ErrRecoveryCodesUnavailable = errors.New("no recovery codes available")
)

// OAuth errors
var (
	ErrInvalidAssertion      = errors.New("invalid oauth assertion")
	ErrUnsupportedProvider   = errors.New("unsupported oauth provider")
	ErrNoProviderEmail       = errors.New("oauth provider returned no email")
	ErrOAuthAccountNotFound  = errors.New("oauth account not found")
	ErrProviderAlreadyLinked = errors.New("provider already linked to another account")
)

// Configuration errors (constructor-time, fatal)
var (
	ErrMissingSecret = errors.New("missing signing secret")
	ErrMissingConfig = errors.New("missing required configuration")
)
