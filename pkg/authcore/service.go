package authcore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/sanitizer"
	"github.com/dmitrymomot/authkit/pkg/validator"
)

// Notifier delivers out-of-band messages for auth flows. Delivery
// failures are logged, never surfaced to the caller, so flows stay
// indistinguishable to an attacker probing for accounts.
type Notifier interface {
	SendVerificationCode(ctx context.Context, to, code string) error
	SendPasswordReset(ctx context.Context, to, token string) error
	SendWelcome(ctx context.Context, to, name string) error
}

type noopNotifier struct{}

func (noopNotifier) SendVerificationCode(context.Context, string, string) error { return nil }
func (noopNotifier) SendPasswordReset(context.Context, string, string) error   { return nil }
func (noopNotifier) SendWelcome(context.Context, string, string) error         { return nil }

// Service orchestrates registration, login, token lifecycle, two-factor,
// and OAuth flows over a Storage implementation.
type Service struct {
	cfg       Config
	storage   Storage
	hasher    Hasher
	tokens    *TokenService
	twoFactor *TwoFactorService
	oauth     *OAuthVerifier
	stepUp    StepUpGuard
	notifier  Notifier
	passwords validator.PasswordStrengthConfig
	log       *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNotifier sets the out-of-band message sender.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithOAuthAdapters registers provider adapters for OAuth login.
func WithOAuthAdapters(adapters ...ProviderAdapter) Option {
	return func(s *Service) { s.oauth = NewOAuthVerifier(adapters...) }
}

// WithPasswordStrength overrides the default password policy.
func WithPasswordStrength(cfg validator.PasswordStrengthConfig) Option {
	return func(s *Service) { s.passwords = cfg }
}

// New builds the auth service. Both signing secrets and the two-factor
// encryption key are required.
func New(cfg Config, storage Storage, opts ...Option) (*Service, error) {
	cfg.applyDefaults()

	hasher := NewHasher(cfg.BcryptCost)
	tokens, err := NewTokenService(cfg, storage, hasher)
	if err != nil {
		return nil, err
	}
	twoFactor, err := NewTwoFactorService(storage, storage, cfg.TwoFactorKey, cfg.Issuer)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:       cfg,
		storage:   storage,
		hasher:    hasher,
		tokens:    tokens,
		twoFactor: twoFactor,
		oauth:     NewOAuthVerifier(),
		stepUp:    NewStepUpGuard(cfg.StepUpWindow),
		notifier:  noopNotifier{},
		passwords: validator.DefaultPasswordStrength(),
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an account and emails a verification code. The email
// is normalized before uniqueness checks so dotted and cased variants
// collapse to one account.
func (s *Service) Register(ctx context.Context, email, password, name string) (User, error) {
	email = sanitizer.NormalizeEmail(email)
	if err := validator.Apply(
		validator.ValidEmail("email", email),
		validator.StrongPassword("password", password, s.passwords),
	); err != nil {
		return User{}, err
	}

	if _, err := s.storage.GetUserByEmail(ctx, email); err == nil {
		return User{}, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return User{}, err
	}

	now := time.Now()
	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.CreateUser(ctx, user); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}

	s.issueVerificationCode(ctx, email)
	s.log.InfoContext(ctx, "user registered", logger.UserID(user.ID.String()), logger.Email(email))
	return user, nil
}

// Login authenticates credentials. Unknown emails and wrong passwords
// fail identically. Accounts with two-factor enabled get an AuthResult
// with TwoFactorRequired set and no tokens.
func (s *Service) Login(ctx context.Context, email, password string, device DeviceMeta) (AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return AuthResult{}, err
	}
	if user.TwoFactorEnabled {
		return AuthResult{User: user, TwoFactorRequired: true}, nil
	}
	return s.issueTokens(ctx, user, device)
}

// LoginWithOTP completes a two-factor login with an authenticator code.
func (s *Service) LoginWithOTP(ctx context.Context, email, password, otp string, device DeviceMeta) (AuthResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return AuthResult{}, err
	}
	if err := s.twoFactor.VerifyLoginCode(ctx, user.ID, otp); err != nil {
		return AuthResult{}, err
	}
	return s.issueTokens(ctx, user, device)
}

// LoginWithRecoveryCode completes a two-factor login by consuming a
// recovery code. The remaining count is returned so the boundary can
// prompt for regeneration when it runs low.
func (s *Service) LoginWithRecoveryCode(ctx context.Context, email, password, code string, device DeviceMeta) (AuthResult, int, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return AuthResult{}, 0, err
	}
	remaining, err := s.twoFactor.UseRecoveryCode(ctx, user.ID, code)
	if err != nil {
		return AuthResult{}, 0, err
	}
	if remaining == 0 {
		s.log.WarnContext(ctx, "recovery codes exhausted", logger.UserID(user.ID.String()))
	}
	result, err := s.issueTokens(ctx, user, device)
	return result, remaining, err
}

// Refresh exchanges a refresh token for a new pair, rotating the stored
// token. Reuse of an already-rotated token revokes every token the user
// holds, since it means the token leaked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	record, err := s.tokens.VerifyRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			s.revokeTokenFamily(ctx, record.UserID)
		}
		return TokenPair{}, err
	}

	user, err := s.storage.GetUserByID(ctx, record.UserID)
	if err != nil {
		return TokenPair{}, err
	}

	newRefresh, err := s.tokens.RotateRefreshToken(ctx, record)
	if err != nil {
		if errors.Is(err, ErrTokenRevoked) {
			s.revokeTokenFamily(ctx, record.UserID)
		}
		return TokenPair{}, err
	}

	access, expiresAt, err := s.tokens.GenerateAccessToken(user, record.SessionID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
	}, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (s *Service) VerifyAccessToken(token string) (AccessClaims, error) {
	return s.tokens.VerifyAccessToken(token)
}

// Logout ends the given session and revokes the user's refresh tokens.
func (s *Service) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	if sessionID != uuid.Nil {
		if err := s.storage.DeleteSession(ctx, sessionID, userID); err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	return s.storage.RevokeUserRefreshTokens(ctx, userID)
}

// LogoutAllDevices ends every session and revokes every refresh token.
func (s *Service) LogoutAllDevices(ctx context.Context, userID uuid.UUID) error {
	if err := s.storage.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return s.storage.RevokeUserRefreshTokens(ctx, userID)
}

// ChangePassword verifies the current password, applies the new one, and
// revokes outstanding refresh tokens. Two-factor accounts must supply a
// fresh step-up proof.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string, proof *StepUpProof) error {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.stepUp.Check(user, proof); err != nil {
		return err
	}
	if !s.hasher.VerifyPassword(user.PasswordHash, current) {
		return ErrPasswordIncorrect
	}
	if err := validator.Apply(validator.StrongPassword("password", next, s.passwords)); err != nil {
		return err
	}

	hash, err := s.hasher.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.storage.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.InfoContext(ctx, "password changed", logger.UserID(userID.String()))
	return s.storage.RevokeUserRefreshTokens(ctx, userID)
}

// ForgotPassword issues a reset token when the account exists and does
// nothing otherwise. Both paths return nil.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = sanitizer.NormalizeEmail(email)
	if _, err := s.storage.GetUserByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}
	if err := s.storeVerificationToken(ctx, email, token, PurposePasswordReset, s.cfg.ResetTokenTTL); err != nil {
		return err
	}
	if err := s.notifier.SendPasswordReset(ctx, email, token); err != nil {
		s.log.ErrorContext(ctx, "send password reset", logger.Email(email), logger.Error(err))
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password,
// revoking all refresh tokens on success.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = sanitizer.NormalizeEmail(email)
	record, err := s.matchVerificationToken(ctx, email, token, PurposePasswordReset)
	if err != nil {
		return err
	}
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if err := validator.Apply(validator.StrongPassword("password", newPassword, s.passwords)); err != nil {
		return err
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.storage.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if err := s.storage.DeleteVerificationToken(ctx, record.ID); err != nil {
		return fmt.Errorf("delete verification token: %w", err)
	}
	s.log.InfoContext(ctx, "password reset", logger.UserID(user.ID.String()))
	return s.storage.RevokeUserRefreshTokens(ctx, user.ID)
}

// VerifyEmail consumes a verification code and marks the email verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	email = sanitizer.NormalizeEmail(email)
	record, err := s.matchVerificationToken(ctx, email, code, PurposeEmailVerification)
	if err != nil {
		return err
	}
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.storage.SetEmailVerified(ctx, user.ID, time.Now()); err != nil {
		return fmt.Errorf("set email verified: %w", err)
	}
	if err := s.storage.DeleteVerificationToken(ctx, record.ID); err != nil {
		return fmt.Errorf("delete verification token: %w", err)
	}
	if user.Name != "" {
		if err := s.notifier.SendWelcome(ctx, email, user.Name); err != nil {
			s.log.ErrorContext(ctx, "send welcome email", logger.Email(email), logger.Error(err))
		}
	}
	return nil
}

// ResendVerification issues a fresh code. Unknown emails succeed silently;
// already-verified accounts get an explicit error.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = sanitizer.NormalizeEmail(email)
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if user.EmailVerified() {
		return ErrEmailAlreadyVerified
	}
	s.issueVerificationCode(ctx, email)
	return nil
}

// EnableTwoFactor starts TOTP enrollment after re-checking the password.
// The account is not yet protected by a second factor here, so the
// password is the only thing tying the request to the account owner.
func (s *Service) EnableTwoFactor(ctx context.Context, userID uuid.UUID, password string) (TwoFactorSetup, error) {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if !s.hasher.VerifyPassword(user.PasswordHash, password) {
		return TwoFactorSetup{}, ErrPasswordIncorrect
	}
	return s.twoFactor.StartSetup(ctx, userID)
}

// ConfirmTwoFactorSetup verifies the first authenticator code and turns
// enrollment on.
func (s *Service) ConfirmTwoFactorSetup(ctx context.Context, userID uuid.UUID, otp string) error {
	return s.twoFactor.ConfirmSetup(ctx, userID, otp)
}

// DisableTwoFactor turns two-factor off after re-checking the password
// and a final authenticator code.
func (s *Service) DisableTwoFactor(ctx context.Context, userID uuid.UUID, password, otp string) error {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.VerifyPassword(user.PasswordHash, password) {
		return ErrPasswordIncorrect
	}
	return s.twoFactor.Disable(ctx, userID, otp)
}

// RegenerateRecoveryCodes replaces the user's recovery codes. Requires a
// fresh step-up proof.
func (s *Service) RegenerateRecoveryCodes(ctx context.Context, userID uuid.UUID, proof *StepUpProof) ([]string, error) {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.stepUp.Check(user, proof); err != nil {
		return nil, err
	}
	return s.twoFactor.RegenerateRecoveryCodes(ctx, userID)
}

// RemainingRecoveryCodes reports the user's unused recovery code count.
func (s *Service) RemainingRecoveryCodes(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.twoFactor.RemainingRecoveryCodes(ctx, userID)
}

// OAuthLogin verifies a provider assertion and signs the matching user
// in, linking or creating the account as needed.
func (s *Service) OAuthLogin(ctx context.Context, provider string, assertion OAuthAssertion, device DeviceMeta) (AuthResult, error) {
	identity, err := s.oauth.Verify(ctx, provider, assertion)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.linkOrCreate(ctx, identity, assertion)
	if err != nil {
		return AuthResult{}, err
	}
	if user.TwoFactorEnabled {
		return AuthResult{User: user, TwoFactorRequired: true}, nil
	}
	return s.issueTokens(ctx, user, device)
}

// ListOAuthAccounts returns the user's linked provider identities.
func (s *Service) ListOAuthAccounts(ctx context.Context, userID uuid.UUID) ([]OAuthAccount, error) {
	return s.storage.ListOAuthAccounts(ctx, userID)
}

// UnlinkOAuth removes a linked provider. Requires a fresh step-up proof
// for two-factor accounts.
func (s *Service) UnlinkOAuth(ctx context.Context, userID uuid.UUID, provider string, proof *StepUpProof) error {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.stepUp.Check(user, proof); err != nil {
		return err
	}
	return s.storage.DeleteOAuthAccount(ctx, userID, provider)
}

// ActiveSessions lists the user's unexpired sessions, flagging the one
// the request arrived on.
func (s *Service) ActiveSessions(ctx context.Context, userID, currentSessionID uuid.UUID) ([]SessionInfo, error) {
	sessions, err := s.storage.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	tokens, err := s.storage.ListActiveRefreshTokens(ctx, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	refreshable := make(map[uuid.UUID]bool, len(tokens))
	for _, tok := range tokens {
		if !tok.Revoked {
			refreshable[tok.SessionID] = true
		}
	}

	infos := make([]SessionInfo, len(sessions))
	for i, sess := range sessions {
		infos[i] = SessionInfo{
			ID:          sess.ID,
			IPAddress:   sess.IPAddress,
			UserAgent:   sess.UserAgent,
			Current:     sess.ID == currentSessionID,
			Refreshable: refreshable[sess.ID],
			CreatedAt:   sess.CreatedAt,
			ExpiresAt:   sess.ExpiresAt,
		}
	}
	return infos, nil
}

// RevokeSession ends a single session belonging to the user.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.storage.DeleteSession(ctx, sessionID, userID)
}

// CleanupExpired removes expired sessions, refresh tokens, and
// verification tokens. Safe to run on a schedule; idempotent.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	now := time.Now()
	var total int64

	n, err := s.storage.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		return total, fmt.Errorf("cleanup refresh tokens: %w", err)
	}
	total += n

	n, err = s.storage.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return total, fmt.Errorf("cleanup sessions: %w", err)
	}
	total += n

	n, err = s.storage.DeleteExpiredVerificationTokens(ctx, now)
	if err != nil {
		return total, fmt.Errorf("cleanup verification tokens: %w", err)
	}
	total += n

	return total, nil
}

// revokeTokenFamily kills every refresh token the user holds. Called
// when a spent token reappears, which means it leaked somewhere.
func (s *Service) revokeTokenFamily(ctx context.Context, userID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	s.log.WarnContext(ctx, "refresh token reuse detected, revoking all tokens",
		logger.UserID(userID.String()))
	if err := s.storage.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "revoke user refresh tokens", logger.Error(err))
	}
}

func (s *Service) authenticate(ctx context.Context, email, password string) (User, error) {
	email = sanitizer.NormalizeEmail(email)
	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !s.hasher.VerifyPassword(user.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user User, device DeviceMeta) (AuthResult, error) {
	sessionToken, err := generateSessionToken()
	if err != nil {
		return AuthResult{}, err
	}
	now := time.Now()
	session := Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		SessionToken: sessionToken,
		IPAddress:    device.IPAddress,
		UserAgent:    device.UserAgent,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
		CreatedAt:    now,
	}
	if err := s.storage.CreateSession(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	access, expiresAt, err := s.tokens.GenerateAccessToken(user, session.ID)
	if err != nil {
		return AuthResult{}, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(ctx, user.ID, session.ID)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.InfoContext(ctx, "user logged in",
		logger.UserID(user.ID.String()), logger.SessionID(session.ID.String()))
	return AuthResult{
		User: user,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			SessionToken: sessionToken,
			ExpiresAt:    expiresAt,
		},
	}, nil
}

func (s *Service) linkOrCreate(ctx context.Context, identity OAuthIdentity, assertion OAuthAssertion) (User, error) {
	email := sanitizer.NormalizeEmail(identity.Email)
	now := time.Now()

	account, err := s.storage.GetOAuthAccount(ctx, identity.Provider, identity.ProviderAccountID)
	switch {
	case err == nil:
		// Known link; refresh the stored provider tokens and sign in.
		account.Email = email
		account.AccessToken = assertion.AccessToken
		account.RefreshToken = assertion.RefreshToken
		account.UpdatedAt = now
		if err := s.storage.UpsertOAuthAccount(ctx, account); err != nil {
			return User{}, fmt.Errorf("refresh oauth account: %w", err)
		}
		return s.storage.GetUserByID(ctx, account.UserID)
	case errors.Is(err, ErrOAuthAccountNotFound):
	default:
		return User{}, fmt.Errorf("lookup oauth account: %w", err)
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		// Existing local account; link the provider to it.
	case errors.Is(err, ErrUserNotFound):
		// No password login exists for this user; the random hash keeps
		// the column non-empty without opening a guessable credential.
		unusable, err := generateResetToken()
		if err != nil {
			return User{}, err
		}
		hash, err := s.hasher.HashPassword(unusable)
		if err != nil {
			return User{}, err
		}
		user = User{
			ID:              uuid.New(),
			Email:           email,
			PasswordHash:    hash,
			Name:            identity.Name,
			Role:            RoleUser,
			EmailVerifiedAt: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.storage.CreateUser(ctx, user); err != nil {
			return User{}, fmt.Errorf("create user: %w", err)
		}
	default:
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := s.storage.UpsertOAuthAccount(ctx, OAuthAccount{
		UserID:            user.ID,
		Provider:          identity.Provider,
		ProviderAccountID: identity.ProviderAccountID,
		Email:             email,
		AccessToken:       assertion.AccessToken,
		RefreshToken:      assertion.RefreshToken,
		CreatedAt:         now,
		UpdatedAt:         now,
	}); err != nil {
		return User{}, fmt.Errorf("link oauth account: %w", err)
	}
	s.log.InfoContext(ctx, "oauth account linked",
		logger.UserID(user.ID.String()), logger.Provider(identity.Provider))
	return user, nil
}

// issueVerificationCode stores a hashed 6-digit code and emails it.
// Failures are logged only; callers never learn whether mail went out.
func (s *Service) issueVerificationCode(ctx context.Context, email string) {
	code, err := generateNumericCode(6)
	if err != nil {
		s.log.ErrorContext(ctx, "generate verification code", logger.Error(err))
		return
	}
	if err := s.storeVerificationToken(ctx, email, code, PurposeEmailVerification, s.cfg.VerificationCodeTTL); err != nil {
		s.log.ErrorContext(ctx, "store verification code", logger.Email(email), logger.Error(err))
		return
	}
	if err := s.notifier.SendVerificationCode(ctx, email, code); err != nil {
		s.log.ErrorContext(ctx, "send verification code", logger.Email(email), logger.Error(err))
	}
}

// storeVerificationToken replaces any prior tokens for the identifier
// and purpose with a single hashed record.
func (s *Service) storeVerificationToken(ctx context.Context, identifier, token string, purpose VerificationPurpose, ttl time.Duration) error {
	if err := s.storage.DeleteVerificationTokensByIdentifier(ctx, identifier, purpose); err != nil {
		return fmt.Errorf("delete prior tokens: %w", err)
	}
	hash, err := s.hasher.HashToken(token)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.storage.CreateVerificationToken(ctx, VerificationToken{
		ID:         uuid.New(),
		Identifier: identifier,
		TokenHash:  hash,
		Purpose:    purpose,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}); err != nil {
		return fmt.Errorf("create verification token: %w", err)
	}
	return nil
}

// matchVerificationToken scans the identifier's unexpired tokens for one
// whose hash matches. Hashed storage rules out direct lookup, and the
// delete-before-insert discipline keeps the scan to a handful of rows.
func (s *Service) matchVerificationToken(ctx context.Context, identifier, token string, purpose VerificationPurpose) (VerificationToken, error) {
	records, err := s.storage.ListActiveVerificationTokens(ctx, identifier, purpose, time.Now())
	if err != nil {
		return VerificationToken{}, fmt.Errorf("list verification tokens: %w", err)
	}
	for _, rec := range records {
		if s.hasher.VerifyToken(rec.TokenHash, token) {
			return rec, nil
		}
	}
	return VerificationToken{}, ErrTokenInvalid
}

func generateNumericCode(digits int) (string, error) {
	bound := big.NewInt(1)
	for range digits {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("generate numeric code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
