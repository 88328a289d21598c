package authcore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authkit/pkg/authcore"
	"github.com/dmitrymomot/authkit/pkg/totp"
	"github.com/dmitrymomot/authkit/pkg/validator"
)

// recordingNotifier captures outgoing messages so tests can consume the
// codes and tokens the service issues.
type recordingNotifier struct {
	mu         sync.Mutex
	codes      map[string]string
	resets     map[string]string
	welcomes   []string
	totalSends int
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		codes:  make(map[string]string),
		resets: make(map[string]string),
	}
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, to, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[to] = code
	n.totalSends++
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets[to] = token
	n.totalSends++
	return nil
}

func (n *recordingNotifier) SendWelcome(_ context.Context, to, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, to)
	n.totalSends++
	return nil
}

func (n *recordingNotifier) codeFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[email]
}

func (n *recordingNotifier) resetFor(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resets[email]
}

func (n *recordingNotifier) sends() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.totalSends
}

type stubAdapter struct {
	name     string
	identity authcore.OAuthIdentity
	err      error
}

func (a stubAdapter) Name() string { return a.name }

func (a stubAdapter) Verify(context.Context, authcore.OAuthAssertion) (authcore.OAuthIdentity, error) {
	return a.identity, a.err
}

type serviceFixture struct {
	svc      *authcore.Service
	storage  *authcore.MemoryStorage
	notifier *recordingNotifier
}

func newServiceFixture(t *testing.T, opts ...authcore.Option) serviceFixture {
	t.Helper()

	cfg := authcore.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		TwoFactorKey:  testEncryptionKey(t),
		Issuer:        "authkit-test",
		BcryptCost:    bcrypt.MinCost,
	}
	storage := authcore.NewMemoryStorage()
	notifier := newRecordingNotifier()

	opts = append([]authcore.Option{authcore.WithNotifier(notifier)}, opts...)
	svc, err := authcore.New(cfg, storage, opts...)
	require.NoError(t, err)
	return serviceFixture{svc: svc, storage: storage, notifier: notifier}
}

func (f serviceFixture) register(t *testing.T, email, password string) authcore.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), email, password, "Test User")
	require.NoError(t, err)
	return user
}

var testDevice = authcore.DeviceMeta{IPAddress: "203.0.113.7", UserAgent: "test-agent"}

func TestService_Register(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "New.User@Example.COM", "Str0ngPass!", "New User")
	require.NoError(t, err)
	assert.Equal(t, "new.user@example.com", user.Email)
	assert.Equal(t, authcore.RoleUser, user.Role)
	assert.False(t, user.EmailVerified())
	assert.True(t, user.EmailVerifiedAt.IsZero())

	// The verification code went out to the normalized address.
	assert.Len(t, f.notifier.codeFor("new.user@example.com"), 6)

	// Cased variants of the same address collide.
	_, err = f.svc.Register(ctx, "new.user@example.com", "Str0ngPass!", "Other")
	require.ErrorIs(t, err, authcore.ErrEmailAlreadyExists)
}

func TestService_Register_Validation(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "not-an-email", "Str0ngPass!", "")
	require.Error(t, err)
	assert.True(t, validator.IsValidationError(err))

	_, err = f.svc.Register(ctx, "weak@example.com", "short", "")
	require.Error(t, err)
	assert.True(t, validator.IsValidationError(err))
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "login@example.com", "Str0ngPass!")

	result, err := f.svc.Login(ctx, "login@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)
	assert.Len(t, result.Tokens.SessionToken, 64)

	claims, err := f.svc.VerifyAccessToken(result.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID.String(), claims.Subject)

	// Unknown email and wrong password are indistinguishable.
	_, badUser := f.svc.Login(ctx, "nobody@example.com", "Str0ngPass!", testDevice)
	_, badPass := f.svc.Login(ctx, "login@example.com", "WrongPass1!", testDevice)
	require.ErrorIs(t, badUser, authcore.ErrInvalidCredentials)
	require.ErrorIs(t, badPass, authcore.ErrInvalidCredentials)
	assert.Equal(t, badUser.Error(), badPass.Error())
}

func TestService_VerifyEmail(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.register(t, "verify@example.com", "Str0ngPass!")

	code := f.notifier.codeFor("verify@example.com")
	require.NotEmpty(t, code)

	require.NoError(t, f.svc.VerifyEmail(ctx, "verify@example.com", code))

	updated, err := f.storage.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, updated.EmailVerified())
	assert.WithinDuration(t, time.Now(), updated.EmailVerifiedAt, time.Minute)
	assert.Contains(t, f.notifier.welcomes, "verify@example.com")

	// Consumed codes fail on replay.
	err = f.svc.VerifyEmail(ctx, "verify@example.com", code)
	require.ErrorIs(t, err, authcore.ErrTokenInvalid)
}

func TestService_ResendVerification(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "resend@example.com", "Str0ngPass!")

	first := f.notifier.codeFor("resend@example.com")
	require.NoError(t, f.svc.ResendVerification(ctx, "resend@example.com"))
	second := f.notifier.codeFor("resend@example.com")

	// The old code was replaced, not accumulated.
	err := f.svc.VerifyEmail(ctx, "resend@example.com", first)
	if first != second {
		require.ErrorIs(t, err, authcore.ErrTokenInvalid)
	}
	require.NoError(t, f.svc.VerifyEmail(ctx, "resend@example.com", second))

	err = f.svc.ResendVerification(ctx, "resend@example.com")
	require.ErrorIs(t, err, authcore.ErrEmailAlreadyVerified)

	// Unknown addresses succeed silently.
	require.NoError(t, f.svc.ResendVerification(ctx, "ghost@example.com"))
}

func TestService_Refresh(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "refresh@example.com", "Str0ngPass!")

	result, err := f.svc.Login(ctx, "refresh@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, result.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEqual(t, result.Tokens.RefreshToken, pair.RefreshToken)

	// Replaying the rotated-out token is treated as a leak: the whole
	// family is revoked, including the freshly issued replacement.
	_, err = f.svc.Refresh(ctx, result.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)
}

func TestService_Refresh_Garbage(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	_, err := f.svc.Refresh(context.Background(), "not.a.token")
	require.ErrorIs(t, err, authcore.ErrTokenInvalid)
}

func TestService_Logout(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "logout@example.com", "Str0ngPass!")

	result, err := f.svc.Login(ctx, "logout@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	userID := result.User.ID

	sessions, err := f.svc.ActiveSessions(ctx, userID, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	require.NoError(t, f.svc.Logout(ctx, userID, sessions[0].ID))

	sessions, err = f.svc.ActiveSessions(ctx, userID, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = f.svc.Refresh(ctx, result.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)
}

func TestService_LogoutAllDevices(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "all@example.com", "Str0ngPass!")

	first, err := f.svc.Login(ctx, "all@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "all@example.com", "Str0ngPass!", authcore.DeviceMeta{UserAgent: "other"})
	require.NoError(t, err)

	require.NoError(t, f.svc.LogoutAllDevices(ctx, first.User.ID))

	sessions, err := f.svc.ActiveSessions(ctx, first.User.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)
	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)
}

func TestService_ChangePassword(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "change@example.com", "Str0ngPass!")

	result, err := f.svc.Login(ctx, "change@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	userID := result.User.ID

	err = f.svc.ChangePassword(ctx, userID, "WrongPass1!", "N3wStrong!", nil)
	require.ErrorIs(t, err, authcore.ErrPasswordIncorrect)

	require.NoError(t, f.svc.ChangePassword(ctx, userID, "Str0ngPass!", "N3wStrong!", nil))

	// Old sessions lose refresh capability immediately.
	_, err = f.svc.Refresh(ctx, result.Tokens.RefreshToken)
	require.ErrorIs(t, err, authcore.ErrTokenRevoked)

	_, err = f.svc.Login(ctx, "change@example.com", "Str0ngPass!", testDevice)
	require.ErrorIs(t, err, authcore.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "change@example.com", "N3wStrong!", testDevice)
	require.NoError(t, err)
}

func TestService_PasswordReset(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "reset@example.com", "Str0ngPass!")
	before := f.notifier.sends()

	// Unknown address: same nil result, no message.
	require.NoError(t, f.svc.ForgotPassword(ctx, "ghost@example.com"))
	assert.Equal(t, before, f.notifier.sends())

	require.NoError(t, f.svc.ForgotPassword(ctx, "reset@example.com"))
	token := f.notifier.resetFor("reset@example.com")
	require.Len(t, token, 64)

	err := f.svc.ResetPassword(ctx, "reset@example.com", "bogus-token", "N3wStrong!")
	require.ErrorIs(t, err, authcore.ErrTokenInvalid)

	require.NoError(t, f.svc.ResetPassword(ctx, "reset@example.com", token, "N3wStrong!"))

	// Single use.
	err = f.svc.ResetPassword(ctx, "reset@example.com", token, "An0therPass!")
	require.ErrorIs(t, err, authcore.ErrTokenInvalid)

	_, err = f.svc.Login(ctx, "reset@example.com", "N3wStrong!", testDevice)
	require.NoError(t, err)
}

func TestService_TwoFactorLogin(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.register(t, "2fa@example.com", "Str0ngPass!")

	// Enrollment starts only with the account password in hand.
	_, err := f.svc.EnableTwoFactor(ctx, user.ID, "WrongPass1!")
	require.ErrorIs(t, err, authcore.ErrPasswordIncorrect)
	_, err = f.svc.EnableTwoFactor(ctx, user.ID, "")
	require.ErrorIs(t, err, authcore.ErrPasswordIncorrect)

	setup, err := f.svc.EnableTwoFactor(ctx, user.ID, "Str0ngPass!")
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret)
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmTwoFactorSetup(ctx, user.ID, code))

	// Password alone no longer yields tokens.
	result, err := f.svc.Login(ctx, "2fa@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	assert.True(t, result.TwoFactorRequired)
	assert.Empty(t, result.Tokens.AccessToken)

	_, err = f.svc.LoginWithOTP(ctx, "2fa@example.com", "Str0ngPass!", "000000", testDevice)
	require.ErrorIs(t, err, authcore.ErrInvalidOTP)

	full, err := f.svc.LoginWithOTP(ctx, "2fa@example.com", "Str0ngPass!", code, testDevice)
	require.NoError(t, err)
	assert.NotEmpty(t, full.Tokens.AccessToken)

	viaRecovery, remaining, err := f.svc.LoginWithRecoveryCode(ctx, "2fa@example.com", "Str0ngPass!", setup.RecoveryCodes[0], testDevice)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)
	assert.NotEmpty(t, viaRecovery.Tokens.AccessToken)

	// Credentials are still checked before the second factor.
	_, err = f.svc.LoginWithOTP(ctx, "2fa@example.com", "WrongPass1!", code, testDevice)
	require.ErrorIs(t, err, authcore.ErrInvalidCredentials)
}

func TestService_StepUpGuardedOperations(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.register(t, "stepup@example.com", "Str0ngPass!")

	setup, err := f.svc.EnableTwoFactor(ctx, user.ID, "Str0ngPass!")
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret)
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmTwoFactorSetup(ctx, user.ID, code))

	err = f.svc.ChangePassword(ctx, user.ID, "Str0ngPass!", "N3wStrong!", nil)
	require.ErrorIs(t, err, authcore.ErrStepUpRequired)

	stale := &authcore.StepUpProof{UserID: user.ID, VerifiedAt: time.Now().Add(-time.Hour)}
	err = f.svc.ChangePassword(ctx, user.ID, "Str0ngPass!", "N3wStrong!", stale)
	require.ErrorIs(t, err, authcore.ErrStepUpRequired)

	fresh := &authcore.StepUpProof{UserID: user.ID, VerifiedAt: time.Now()}
	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "Str0ngPass!", "N3wStrong!", fresh))

	_, err = f.svc.RegenerateRecoveryCodes(ctx, user.ID, nil)
	require.ErrorIs(t, err, authcore.ErrStepUpRequired)
	codes, err := f.svc.RegenerateRecoveryCodes(ctx, user.ID, fresh)
	require.NoError(t, err)
	assert.Len(t, codes, 8)
}

func TestService_DisableTwoFactor(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.register(t, "disable@example.com", "Str0ngPass!")

	setup, err := f.svc.EnableTwoFactor(ctx, user.ID, "Str0ngPass!")
	require.NoError(t, err)
	code, err := totp.GenerateCode(setup.Secret)
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmTwoFactorSetup(ctx, user.ID, code))

	err = f.svc.DisableTwoFactor(ctx, user.ID, "WrongPass1!", code)
	require.ErrorIs(t, err, authcore.ErrPasswordIncorrect)

	require.NoError(t, f.svc.DisableTwoFactor(ctx, user.ID, "Str0ngPass!", code))

	result, err := f.svc.Login(ctx, "disable@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	assert.False(t, result.TwoFactorRequired)
	assert.NotEmpty(t, result.Tokens.AccessToken)
}

func TestService_OAuthLogin(t *testing.T) {
	t.Parallel()

	identity := authcore.OAuthIdentity{
		ProviderAccountID: "google-sub-1",
		Email:             "oauth@example.com",
		Name:              "OAuth User",
		EmailVerified:     true,
	}
	f := newServiceFixture(t, authcore.WithOAuthAdapters(stubAdapter{name: "google", identity: identity}))
	ctx := context.Background()
	assertion := authcore.OAuthAssertion{
		IDToken:      "stub-id-token",
		AccessToken:  "provider-access-1",
		RefreshToken: "provider-refresh-1",
	}

	result, err := f.svc.OAuthLogin(ctx, "google", assertion, testDevice)
	require.NoError(t, err)
	assert.Equal(t, "oauth@example.com", result.User.Email)
	assert.True(t, result.User.EmailVerified())
	assert.NotEmpty(t, result.Tokens.AccessToken)

	accounts, err := f.svc.ListOAuthAccounts(ctx, result.User.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "google", accounts[0].Provider)
	assert.Equal(t, "provider-access-1", accounts[0].AccessToken)
	assert.Equal(t, "provider-refresh-1", accounts[0].RefreshToken)

	// Same identity maps to the same user; the stored provider tokens
	// track the latest login.
	assertion.AccessToken = "provider-access-2"
	assertion.RefreshToken = "provider-refresh-2"
	again, err := f.svc.OAuthLogin(ctx, "google", assertion, testDevice)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID)

	accounts, err = f.svc.ListOAuthAccounts(ctx, result.User.ID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "provider-access-2", accounts[0].AccessToken)
	assert.Equal(t, "provider-refresh-2", accounts[0].RefreshToken)

	// OAuth-created accounts have no guessable password.
	_, err = f.svc.Login(ctx, "oauth@example.com", "Str0ngPass!", testDevice)
	require.ErrorIs(t, err, authcore.ErrInvalidCredentials)

	require.NoError(t, f.svc.UnlinkOAuth(ctx, result.User.ID, "google", nil))
	accounts, err = f.svc.ListOAuthAccounts(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestService_OAuthLogin_LinksExistingAccount(t *testing.T) {
	t.Parallel()

	identity := authcore.OAuthIdentity{
		ProviderAccountID: "google-sub-2",
		Email:             "linked@example.com",
	}
	f := newServiceFixture(t, authcore.WithOAuthAdapters(stubAdapter{name: "google", identity: identity}))
	ctx := context.Background()
	existing := f.register(t, "linked@example.com", "Str0ngPass!")

	result, err := f.svc.OAuthLogin(ctx, "google", authcore.OAuthAssertion{IDToken: "stub"}, testDevice)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, result.User.ID)

	// Password login keeps working alongside the linked provider.
	_, err = f.svc.Login(ctx, "linked@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
}

func TestService_OAuthLogin_Failures(t *testing.T) {
	t.Parallel()

	noEmail := stubAdapter{name: "google", identity: authcore.OAuthIdentity{ProviderAccountID: "sub"}}
	f := newServiceFixture(t, authcore.WithOAuthAdapters(noEmail))
	ctx := context.Background()
	assertion := authcore.OAuthAssertion{AccessToken: "stub"}

	_, err := f.svc.OAuthLogin(ctx, "github", assertion, testDevice)
	require.ErrorIs(t, err, authcore.ErrUnsupportedProvider)

	_, err = f.svc.OAuthLogin(ctx, "google", assertion, testDevice)
	require.ErrorIs(t, err, authcore.ErrNoProviderEmail)

	_, err = f.svc.OAuthLogin(ctx, "google", authcore.OAuthAssertion{}, testDevice)
	require.ErrorIs(t, err, authcore.ErrInvalidAssertion)
}

func TestService_Sessions(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	f.register(t, "sessions@example.com", "Str0ngPass!")

	first, err := f.svc.Login(ctx, "sessions@example.com", "Str0ngPass!", testDevice)
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "sessions@example.com", "Str0ngPass!", authcore.DeviceMeta{UserAgent: "phone"})
	require.NoError(t, err)

	userID := first.User.ID
	current, err := f.storage.GetSessionByToken(ctx, first.Tokens.SessionToken)
	require.NoError(t, err)

	sessions, err := f.svc.ActiveSessions(ctx, userID, current.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Current)
	assert.False(t, sessions[1].Current)
	assert.True(t, sessions[0].Refreshable)
	assert.True(t, sessions[1].Refreshable)
	assert.Equal(t, "test-agent", sessions[0].UserAgent)

	require.NoError(t, f.svc.RevokeSession(ctx, userID, sessions[1].ID))
	sessions, err = f.svc.ActiveSessions(ctx, userID, current.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	// Revoking a session that belongs to someone else fails.
	err = f.svc.RevokeSession(ctx, uuid.New(), sessions[0].ID)
	require.ErrorIs(t, err, authcore.ErrSessionNotFound)
}

func TestService_CleanupExpired(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t)
	ctx := context.Background()
	user := f.register(t, "cleanup@example.com", "Str0ngPass!")

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.storage.CreateSession(ctx, authcore.Session{
		ID: uuid.New(), UserID: user.ID, SessionToken: "expired-session", ExpiresAt: past,
	}))
	require.NoError(t, f.storage.CreateRefreshToken(ctx, authcore.RefreshToken{
		ID: uuid.New(), UserID: user.ID, TokenHash: "x", ExpiresAt: past,
	}))
	require.NoError(t, f.storage.CreateVerificationToken(ctx, authcore.VerificationToken{
		ID: uuid.New(), Identifier: "cleanup@example.com", TokenHash: "x",
		Purpose: authcore.PurposeEmailVerification, ExpiresAt: past,
	}))

	n, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	// Idempotent: a second pass finds nothing.
	n, err = f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
